package database_test

import (
	"testing"

	"github.com/pkg/errors"
	. "github.com/pseudomuto/strata/pkg/database"
	"github.com/stretchr/testify/require"
)

func TestLookupDialect(t *testing.T) {
	tests := []struct {
		name     string
		expected *Dialect
	}{
		{name: "sqlite", expected: SQLite},
		{name: "sqlite3", expected: SQLite},
		{name: "postgres", expected: Postgres},
		{name: "PostgreSQL", expected: Postgres},
		{name: "mysql", expected: MySQL},
		{name: "duckdb", expected: DuckDB},
		{name: " clickhouse ", expected: ClickHouse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := LookupDialect(tt.name)
			require.NoError(t, err)
			require.Same(t, tt.expected, d)
		})
	}

	_, err := LookupDialect("oracle")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnknownDialect))
	require.Contains(t, err.Error(), "clickhouse, duckdb, mysql, postgres, sqlite")
}

func TestDialectNames(t *testing.T) {
	require.Equal(t, []string{"clickhouse", "duckdb", "mysql", "postgres", "sqlite"}, DialectNames())
}

func TestTransactionalDDL(t *testing.T) {
	require.True(t, SQLite.TransactionalDDL)
	require.True(t, Postgres.TransactionalDDL)
	require.True(t, DuckDB.TransactionalDDL)
	require.False(t, MySQL.TransactionalDDL)
	require.False(t, ClickHouse.TransactionalDDL)
}

func TestRebind(t *testing.T) {
	query := "INSERT INTO t (a, b, c) VALUES (?, ?, ?)"

	require.Equal(t, "INSERT INTO t (a, b, c) VALUES ($1, $2, $3)", Postgres.Rebind(query))
	require.Equal(t, query, SQLite.Rebind(query))
	require.Equal(t, query, MySQL.Rebind(query))
	require.Equal(t, query, ClickHouse.Rebind(query))
	require.Equal(t, "SELECT 1", Postgres.Rebind("SELECT 1"))
}

func TestQuoteIdent(t *testing.T) {
	require.Equal(t, `"strata_history"`, SQLite.QuoteIdent("strata_history"))
	require.Equal(t, `"public"."strata_history"`, Postgres.QuoteIdent("public.strata_history"))
	require.Equal(t, "`ops`.`strata_history`", ClickHouse.QuoteIdent("ops.strata_history"))
	require.Equal(t, "`strata_history`", MySQL.QuoteIdent("strata_history"))
}

func TestDialectStatements(t *testing.T) {
	for _, d := range []*Dialect{SQLite, Postgres, MySQL, DuckDB, ClickHouse} {
		t.Run(d.Name, func(t *testing.T) {
			history := d.CreateHistoryTable("strata_history")
			require.Contains(t, history, "CREATE TABLE IF NOT EXISTS "+d.QuoteIdent("strata_history"))
			for _, col := range []string{
				"installed_rank", "version", "description", "kind", "checksum",
				"installed_by", "installed_on", "execution_time", "success",
			} {
				require.Contains(t, history, col)
			}

			lock := d.CreateLockTable("strata_lock")
			require.Contains(t, lock, d.QuoteIdent("strata_lock"))
			require.Contains(t, lock, "owner")
			require.Contains(t, lock, "locked_at")
			require.Contains(t, lock, "heartbeat_at")
			require.Contains(t, d.TouchLock("strata_lock"), "heartbeat_at")

			require.Contains(t, d.UpdateChecksum("strata_history"), "checksum")
			require.Equal(t, d.Name, d.String())
		})
	}

	require.Equal(t, `UPDATE "h" SET checksum = $1 WHERE installed_rank = $2`, Postgres.UpdateChecksum("h"))
	require.Contains(t, ClickHouse.CreateHistoryTable("h"), "ENGINE = MergeTree()")
	require.Contains(t, ClickHouse.UpdateChecksum("h"), "ALTER TABLE `h` UPDATE")
	require.Equal(t, `UPDATE "l" SET heartbeat_at = $1 WHERE id = $2 AND owner = $3`, Postgres.TouchLock("l"))
	require.Equal(t, "UPDATE `l` SET heartbeat_at = ? WHERE id = ? AND owner = ?", MySQL.TouchLock("l"))
}
