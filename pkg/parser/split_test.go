package parser_test

import (
	"testing"

	. "github.com/pseudomuto/strata/pkg/parser"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		expected []string
	}{
		{
			name:     "single statement without terminator",
			sql:      "CREATE TABLE t (id INT)",
			expected: []string{"CREATE TABLE t (id INT)"},
		},
		{
			name: "multiple statements",
			sql: `CREATE TABLE t (id INT);
INSERT INTO t VALUES (1);
INSERT INTO t VALUES (2);`,
			expected: []string{
				"CREATE TABLE t (id INT)",
				"INSERT INTO t VALUES (1)",
				"INSERT INTO t VALUES (2)",
			},
		},
		{
			name:     "semicolon inside string literal",
			sql:      "INSERT INTO t VALUES ('a;b'); SELECT 1;",
			expected: []string{"INSERT INTO t VALUES ('a;b')", "SELECT 1"},
		},
		{
			name:     "doubled quotes inside string literal",
			sql:      "INSERT INTO t VALUES ('it''s;fine'); SELECT 1;",
			expected: []string{"INSERT INTO t VALUES ('it''s;fine')", "SELECT 1"},
		},
		{
			name:     "backslash is literal in standard strings",
			sql:      "INSERT INTO paths VALUES ('C:\\', 'a;b');\nSELECT 1;",
			expected: []string{"INSERT INTO paths VALUES ('C:\\', 'a;b')", "SELECT 1"},
		},
		{
			name:     "backslash escapes inside E strings",
			sql:      "INSERT INTO t VALUES (E'x\\';y'); SELECT 1;",
			expected: []string{"INSERT INTO t VALUES (E'x\\';y')", "SELECT 1"},
		},
		{
			name:     "semicolon inside quoted identifiers",
			sql:      "CREATE TABLE \"a;b\" (id INT); CREATE TABLE `c;d` (id INT);",
			expected: []string{`CREATE TABLE "a;b" (id INT)`, "CREATE TABLE `c;d` (id INT)"},
		},
		{
			name: "semicolon inside comments",
			sql: `-- create; the table
CREATE TABLE t (id INT); /* trailing; comment */`,
			expected: []string{"-- create; the table\nCREATE TABLE t (id INT)"},
		},
		{
			name: "dollar quoted body",
			sql: `CREATE FUNCTION f() RETURNS trigger AS $$
BEGIN
  NEW.x := 1;
  RETURN NEW;
END;
$$ LANGUAGE plpgsql;
SELECT 1;`,
			expected: []string{
				"CREATE FUNCTION f() RETURNS trigger AS $$\nBEGIN\n  NEW.x := 1;\n  RETURN NEW;\nEND;\n$$ LANGUAGE plpgsql",
				"SELECT 1",
			},
		},
		{
			name:     "positional placeholders and arithmetic",
			sql:      "SELECT $1 - 2 / 1 FROM t;",
			expected: []string{"SELECT $1 - 2 / 1 FROM t"},
		},
		{
			name:     "empty fragments are dropped",
			sql:      ";;  \n ; SELECT 1;; ",
			expected: []string{"SELECT 1"},
		},
		{
			name:     "comment only script",
			sql:      "-- nothing to see\n/* here */\n",
			expected: nil,
		},
		{
			name:     "empty script",
			sql:      "",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SplitStatements(tt.sql)
			require.NoError(t, err)
			require.Equal(t, tt.expected, got)
		})
	}
}

func TestSplitStatementsWithBackslashEscapes(t *testing.T) {
	sql := "INSERT INTO t VALUES ('x\\';y', \"q\\\";r\");\nINSERT INTO t VALUES ('it''s');"

	got, err := SplitStatements(sql, WithBackslashEscapes())
	require.NoError(t, err)
	require.Equal(t, []string{
		"INSERT INTO t VALUES ('x\\';y', \"q\\\";r\")",
		"INSERT INTO t VALUES ('it''s')",
	}, got)

	// Without escapes a backslash is an ordinary character.
	got, err = SplitStatements("INSERT INTO t VALUES ('x\\'); SELECT 1;")
	require.NoError(t, err)
	require.Equal(t, []string{"INSERT INTO t VALUES ('x\\')", "SELECT 1"}, got)
}

func TestHasDirective(t *testing.T) {
	sql := `-- strata:no-split
  -- strata:NO-TRANSACTION
CREATE TABLE t (id INT);`

	require.True(t, HasDirective(sql, NoSplit))
	require.True(t, HasDirective(sql, NoTransaction))
	require.False(t, HasDirective(sql, "checkpoint"))
	require.False(t, HasDirective("SELECT '-- strata:no-split'", NoSplit))
	require.False(t, HasDirective("", NoSplit))
}
