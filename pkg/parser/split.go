package parser

import (
	"bufio"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
	"github.com/pkg/errors"
)

const (
	// DirectivePrefix starts every strata directive comment.
	DirectivePrefix = "-- strata:"

	// NoSplit marks a script that must be sent to the database as a single
	// statement.
	NoSplit = "no-split"

	// NoTransaction marks a script that must run outside of a transaction.
	NoTransaction = "no-transaction"
)

var (
	// scriptLexer recognizes just enough of SQL to find statement boundaries.
	// Strings, quoted identifiers, comments and $$ bodies are single tokens so
	// that semicolons inside them are never treated as terminators. Backslash
	// is a literal character except inside E'...' strings.
	scriptLexer = newScriptLexer(false)

	// escapingLexer also treats backslash as an escape inside ordinary strings
	// and double quoted text, as MySQL and ClickHouse do.
	escapingLexer = newScriptLexer(true)
)

// SplitOption configures SplitStatements.
type SplitOption func(*splitOptions)

type splitOptions struct {
	backslashEscapes bool
}

// WithBackslashEscapes makes backslash escape the next character inside
// string literals, so '\'' does not end the string.
func WithBackslashEscapes() SplitOption {
	return func(o *splitOptions) { o.backslashEscapes = true }
}

func newScriptLexer(backslashEscapes bool) *lexer.StatefulDefinition {
	str, quoted := `'([^']|'')*'`, `"([^"]|"")*"`
	if backslashEscapes {
		str, quoted = `'([^'\\]|\\.|'')*'`, `"([^"\\]|\\.|"")*"`
	}

	return lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Comment", Pattern: `--[^\r\n]*`},
		{Name: "MultilineComment", Pattern: `/\*[^*]*\*+([^/*][^*]*\*+)*/`},
		{Name: "EscapeString", Pattern: `[Ee]'([^'\\]|\\.|'')*'`},
		{Name: "String", Pattern: str},
		{Name: "QuotedIdent", Pattern: quoted},
		{Name: "BacktickIdent", Pattern: "`([^`]|``)*`"},
		{Name: "DollarQuoted", Pattern: `\$\$(?s:.*?)\$\$`},
		{Name: "Semicolon", Pattern: `;`},
		{Name: "Whitespace", Pattern: `\s+`},
		{Name: "Word", Pattern: "[^;'\"`$\\-/\\s]+"},
		{Name: "Punct", Pattern: `.`},
	})
}

// SplitStatements splits a SQL script into individual statements at
// top-level semicolons.
//
// Comments are kept with the statement they precede. Fragments made only of
// comments and whitespace are dropped, and each statement is trimmed of
// surrounding whitespace. The terminating semicolon is not included.
//
// Returns an error if the script cannot be tokenized.
func SplitStatements(sql string, opts ...SplitOption) ([]string, error) {
	var o splitOptions
	for _, opt := range opts {
		opt(&o)
	}

	def := scriptLexer
	if o.backslashEscapes {
		def = escapingLexer
	}

	lex, err := def.LexString("", sql)
	if err != nil {
		return nil, errors.Wrap(err, "failed to tokenize script")
	}

	symbols := def.Symbols()
	semicolon := symbols["Semicolon"]
	ignorable := map[lexer.TokenType]bool{
		symbols["Comment"]:          true,
		symbols["MultilineComment"]: true,
		symbols["Whitespace"]:       true,
	}

	var (
		statements []string
		current    strings.Builder
		meaningful bool
	)

	flush := func() {
		if meaningful {
			statements = append(statements, strings.TrimSpace(current.String()))
		}
		current.Reset()
		meaningful = false
	}

	for {
		tok, err := lex.Next()
		if err != nil {
			return nil, errors.Wrap(err, "failed to tokenize script")
		}

		if tok.EOF() {
			break
		}

		if tok.Type == semicolon {
			flush()
			continue
		}

		if !ignorable[tok.Type] {
			meaningful = true
		}
		current.WriteString(tok.Value)
	}

	flush()
	return statements, nil
}

// HasDirective reports whether the script contains a line of the form
// "-- strata:<name>". Leading and trailing whitespace on the line is ignored
// and the name is matched case-insensitively.
func HasDirective(sql, name string) bool {
	scanner := bufio.NewScanner(strings.NewReader(sql))
	scanner.Buffer(make([]byte, 0, 64*1024), len(sql)+1)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, DirectivePrefix) {
			continue
		}

		if strings.EqualFold(strings.TrimSpace(line[len(DirectivePrefix):]), name) {
			return true
		}
	}

	return false
}
