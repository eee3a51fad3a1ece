// Package database defines the narrow driver boundary strata runs against and
// the dialects it ships with.
//
// The rest of strata only depends on the Driver interface:
//
//	type Driver interface {
//	    Exec(ctx, query, args...) error
//	    Query(ctx, query, args...) (Rows, error)
//	    Begin(ctx) (Tx, error)
//	    Dialect() *Dialect
//	    Close() error
//	}
//
// DB implements it on top of database/sql. Open picks the database/sql
// driver for the configured dialect:
//
//	sqlite      modernc.org/sqlite              transactional DDL
//	postgres    github.com/lib/pq               transactional DDL
//	duckdb      github.com/marcboeker/go-duckdb transactional DDL
//	mysql       github.com/go-sql-driver/mysql  DDL auto-commits
//	clickhouse  github.com/ClickHouse/clickhouse-go/v2  no transactions
//
// Dialect.TransactionalDDL is the capability flag the executor checks once
// per script. When it is false each statement commits on its own and a
// failing script may leave earlier statements applied.
//
// Tests can wrap any *sql.DB, including one created by go-sqlmock, with New.
package database
