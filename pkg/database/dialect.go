package database

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/pseudomuto/strata/pkg/utils"
)

const (
	// QuestionPlaceholder binds parameters with ? (sqlite, mysql, clickhouse, duckdb).
	QuestionPlaceholder Placeholder = iota

	// DollarPlaceholder binds parameters with $1, $2, ... (postgres).
	DollarPlaceholder
)

// ErrUnknownDialect is returned when a dialect name is not registered.
var ErrUnknownDialect = errors.New("unknown dialect")

type (
	// Placeholder is the parameter binding style of a dialect.
	Placeholder int

	// Dialect describes the capabilities and SQL flavour of a backend.
	//
	// Dialects are values, not behaviour hierarchies: everything that differs
	// between backends is data on this struct and the rest of strata only
	// asks questions of it.
	Dialect struct {
		// Name is the dialect name used in configuration.
		Name string

		// DriverName is the database/sql driver name.
		DriverName string

		// TransactionalDDL reports whether structural changes roll back with
		// the enclosing transaction. When false, a failing script may leave
		// earlier statements applied.
		TransactionalDDL bool

		// BackslashEscapes reports whether backslash escapes the next character
		// inside string literals.
		BackslashEscapes bool

		// Quote is the identifier quote character.
		Quote byte

		// Placeholder is the parameter binding style.
		Placeholder Placeholder

		historyDDL     string
		lockDDL        string
		touchLock      string
		updateChecksum string
	}
)

var (
	// SQLite is backed by modernc.org/sqlite.
	SQLite = &Dialect{
		Name:             "sqlite",
		DriverName:       "sqlite",
		TransactionalDDL: true,
		Quote:            '"',
		Placeholder:      QuestionPlaceholder,
		historyDDL: `CREATE TABLE IF NOT EXISTS %s (
    installed_rank INTEGER NOT NULL PRIMARY KEY,
    version VARCHAR(50) UNIQUE,
    description VARCHAR(200) NOT NULL,
    kind VARCHAR(20) NOT NULL,
    checksum BIGINT NOT NULL,
    installed_by VARCHAR(100) NOT NULL,
    installed_on TIMESTAMP NOT NULL,
    execution_time BIGINT NOT NULL,
    success BOOLEAN NOT NULL
)`,
		lockDDL:        relationalLockDDL,
		touchLock:      relationalTouchLock,
		updateChecksum: relationalUpdateChecksum,
	}

	// Postgres is backed by github.com/lib/pq.
	Postgres = &Dialect{
		Name:             "postgres",
		DriverName:       "postgres",
		TransactionalDDL: true,
		Quote:            '"',
		Placeholder:      DollarPlaceholder,
		historyDDL: `CREATE TABLE IF NOT EXISTS %s (
    installed_rank BIGINT NOT NULL PRIMARY KEY,
    version VARCHAR(50) UNIQUE,
    description VARCHAR(200) NOT NULL,
    kind VARCHAR(20) NOT NULL,
    checksum BIGINT NOT NULL,
    installed_by VARCHAR(100) NOT NULL,
    installed_on TIMESTAMPTZ NOT NULL,
    execution_time BIGINT NOT NULL,
    success BOOLEAN NOT NULL
)`,
		lockDDL: `CREATE TABLE IF NOT EXISTS %s (
    id VARCHAR(32) NOT NULL PRIMARY KEY,
    owner VARCHAR(64) NOT NULL,
    locked_at TIMESTAMPTZ NOT NULL,
    heartbeat_at TIMESTAMPTZ NOT NULL
)`,
		touchLock:      relationalTouchLock,
		updateChecksum: relationalUpdateChecksum,
	}

	// MySQL is backed by github.com/go-sql-driver/mysql. MySQL commits DDL
	// implicitly, so scripts are not wrapped in transactions.
	MySQL = &Dialect{
		Name:             "mysql",
		DriverName:       "mysql",
		TransactionalDDL: false,
		BackslashEscapes: true,
		Quote:            '`',
		Placeholder:      QuestionPlaceholder,
		historyDDL: `CREATE TABLE IF NOT EXISTS %s (
    installed_rank BIGINT NOT NULL PRIMARY KEY,
    version VARCHAR(50) UNIQUE,
    description VARCHAR(200) NOT NULL,
    kind VARCHAR(20) NOT NULL,
    checksum BIGINT NOT NULL,
    installed_by VARCHAR(100) NOT NULL,
    installed_on TIMESTAMP(3) NOT NULL,
    execution_time BIGINT NOT NULL,
    success BOOLEAN NOT NULL
)`,
		lockDDL: `CREATE TABLE IF NOT EXISTS %s (
    id VARCHAR(32) NOT NULL PRIMARY KEY,
    owner VARCHAR(64) NOT NULL,
    locked_at TIMESTAMP(3) NOT NULL,
    heartbeat_at TIMESTAMP(3) NOT NULL
)`,
		touchLock:      relationalTouchLock,
		updateChecksum: relationalUpdateChecksum,
	}

	// DuckDB is backed by github.com/marcboeker/go-duckdb/v2.
	DuckDB = &Dialect{
		Name:             "duckdb",
		DriverName:       "duckdb",
		TransactionalDDL: true,
		Quote:            '"',
		Placeholder:      QuestionPlaceholder,
		historyDDL: `CREATE TABLE IF NOT EXISTS %s (
    installed_rank BIGINT NOT NULL PRIMARY KEY,
    version VARCHAR UNIQUE,
    description VARCHAR NOT NULL,
    kind VARCHAR NOT NULL,
    checksum BIGINT NOT NULL,
    installed_by VARCHAR NOT NULL,
    installed_on TIMESTAMP NOT NULL,
    execution_time BIGINT NOT NULL,
    success BOOLEAN NOT NULL
)`,
		lockDDL:        relationalLockDDL,
		touchLock:      relationalTouchLock,
		updateChecksum: relationalUpdateChecksum,
	}

	// ClickHouse is backed by github.com/ClickHouse/clickhouse-go/v2. ClickHouse
	// has no transactions and enforces no unique constraints, so the history
	// store serializes writers through the lock table instead.
	ClickHouse = &Dialect{
		Name:             "clickhouse",
		DriverName:       "clickhouse",
		TransactionalDDL: false,
		BackslashEscapes: true,
		Quote:            '`',
		Placeholder:      QuestionPlaceholder,
		historyDDL: `CREATE TABLE IF NOT EXISTS %s (
    installed_rank Int64,
    version Nullable(String),
    description String,
    kind String,
    checksum Int64,
    installed_by String,
    installed_on DateTime64(3, 'UTC'),
    execution_time Int64,
    success Bool
) ENGINE = MergeTree() ORDER BY installed_rank`,
		lockDDL: `CREATE TABLE IF NOT EXISTS %s (
    id String,
    owner String,
    locked_at DateTime64(3, 'UTC'),
    heartbeat_at DateTime64(3, 'UTC')
) ENGINE = MergeTree() ORDER BY (id, locked_at)`,
		touchLock:      `ALTER TABLE %s UPDATE heartbeat_at = ? WHERE id = ? AND owner = ? SETTINGS mutations_sync = 2`,
		updateChecksum: `ALTER TABLE %s UPDATE checksum = ? WHERE installed_rank = ? SETTINGS mutations_sync = 2`,
	}

	dialects = map[string]*Dialect{
		SQLite.Name:     SQLite,
		Postgres.Name:   Postgres,
		MySQL.Name:      MySQL,
		DuckDB.Name:     DuckDB,
		ClickHouse.Name: ClickHouse,
	}
)

const (
	relationalLockDDL = `CREATE TABLE IF NOT EXISTS %s (
    id VARCHAR(32) NOT NULL PRIMARY KEY,
    owner VARCHAR(64) NOT NULL,
    locked_at TIMESTAMP NOT NULL,
    heartbeat_at TIMESTAMP NOT NULL
)`

	relationalTouchLock = `UPDATE %s SET heartbeat_at = ? WHERE id = ? AND owner = ?`

	relationalUpdateChecksum = `UPDATE %s SET checksum = ? WHERE installed_rank = ?`
)

// LookupDialect returns the dialect registered under name. The lookup is case
// insensitive and accepts "postgresql" and "sqlite3" as aliases.
func LookupDialect(name string) (*Dialect, error) {
	switch n := strings.ToLower(strings.TrimSpace(name)); n {
	case "postgresql":
		return Postgres, nil
	case "sqlite3":
		return SQLite, nil
	default:
		if d, ok := dialects[n]; ok {
			return d, nil
		}
	}

	return nil, errors.Wrapf(ErrUnknownDialect, "%q (supported: %s)", name, strings.Join(DialectNames(), ", "))
}

// DialectNames returns the names of all supported dialects, sorted.
func DialectNames() []string {
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// QuoteIdent quotes a possibly qualified identifier for this dialect.
func (d *Dialect) QuoteIdent(name string) string {
	return utils.QuoteIdentifier(name, d.Quote)
}

// Rebind rewrites ? placeholders into the dialect's binding style. Queries
// are expected to be strata's own statements, which never contain a literal
// question mark.
func (d *Dialect) Rebind(query string) string {
	if d.Placeholder != DollarPlaceholder {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)

	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] != '?' {
			b.WriteByte(query[i])
			continue
		}

		n++
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
	}

	return b.String()
}

// CreateHistoryTable returns the DDL creating the history table.
func (d *Dialect) CreateHistoryTable(table string) string {
	return fmt.Sprintf(d.historyDDL, d.QuoteIdent(table))
}

// CreateLockTable returns the DDL creating the lock table.
func (d *Dialect) CreateLockTable(table string) string {
	return fmt.Sprintf(d.lockDDL, d.QuoteIdent(table))
}

// TouchLock returns the statement refreshing the heartbeat of a held lock.
// Parameters: heartbeat_at, id, owner.
func (d *Dialect) TouchLock(table string) string {
	return d.Rebind(fmt.Sprintf(d.touchLock, d.QuoteIdent(table)))
}

// UpdateChecksum returns the statement overwriting the checksum of the record
// with a given rank. Parameters: checksum, installed_rank.
func (d *Dialect) UpdateChecksum(table string) string {
	return d.Rebind(fmt.Sprintf(d.updateChecksum, d.QuoteIdent(table)))
}

// String returns the dialect name.
func (d *Dialect) String() string { return d.Name }
