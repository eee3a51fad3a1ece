// Package project manages strata project directories.
//
// # Project Structure
//
// A strata project follows this standard layout:
//
//	project-root/
//	├── strata.yaml          # Database and migration settings
//	└── db/
//	    └── migrations/      # Migration scripts
//
// Initialize creates the missing parts of this layout and never overwrites
// existing files, so it is safe to run on an existing project.
//
// # Scripts
//
// NewScript writes an empty script with a valid name to the first configured
// location:
//
//	V<next>__<description>.sql   versioned (the default)
//	R__<description>.sql         repeatable
//	U<version>__<description>.sql undo
//
// Versioned scripts get the next major version after the highest existing
// one, or a UTC timestamp version when ScriptOptions.Timestamp is set.
//
// # Usage Example
//
//	proj := project.New(".")
//	if err := proj.Initialize(project.InitOptions{Dialect: "postgres", URL: "${DATABASE_URL}"}); err != nil {
//		log.Fatal("Failed to initialize project:", err)
//	}
//
//	path, err := proj.NewScript(ctx, project.ScriptOptions{
//		Kind:        migrator.Repeatable,
//		Description: "active users view",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Println(path) // db/migrations/R__active_users_view.sql
package project
