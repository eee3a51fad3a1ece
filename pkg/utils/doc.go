// Package utils provides common utility functions used throughout the strata codebase.
//
// # Identifier Utilities (identifier.go)
//
// The identifier utilities quote table names for the target dialect. Postgres,
// SQLite and DuckDB quote identifiers with double quotes while MySQL and
// ClickHouse use backticks, so callers pass the quote character of their
// dialect:
//
//	// Simple identifier
//	name := utils.QuoteIdentifier("strata_history", '"')
//	// Result: "strata_history"
//
//	// Qualified identifier
//	qualified := utils.QuoteIdentifier("ops.strata_history", '`')
//	// Result: `ops`.`strata_history`

package utils
