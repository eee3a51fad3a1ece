// Package parser provides the lexical layer of strata, built on
// github.com/alecthomas/participle/v2.
//
// It deliberately stops short of understanding SQL. It knows two things:
//
//   - The grammar of migration artifact names, for example
//     V1.2__add_users.sql, R__refresh_views.sql or U1.2__add_users.sql.
//   - Enough SQL lexing (strings, quoted identifiers, comments and $$ bodies)
//     to split a script into statements at top-level semicolons.
//
// Basic usage:
//
//	name, err := parser.ParseArtifactName("V1.2__add_users")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(name.Prefix, name.Version, name.Description) // V 1.2 add_users
//
//	stmts, err := parser.SplitStatements(`
//	    CREATE TABLE users (id INT, note TEXT DEFAULT 'a;b');
//	    INSERT INTO users VALUES (1, 'x');
//	`)
//	// stmts[0] == "CREATE TABLE users (id INT, note TEXT DEFAULT 'a;b')"
//
// Scripts can carry directives as line comments of the form
// "-- strata:<name>". Two directives are understood by the executor:
//
//   - "-- strata:no-split" runs the whole script as a single statement, which
//     is needed for trigger or procedure bodies containing semicolons.
//   - "-- strata:no-transaction" runs the script outside of a transaction even
//     when the dialect supports transactional DDL.
package parser
