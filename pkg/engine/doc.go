// Package engine exposes the migration operations to front ends.
//
// An Engine binds the script sources, the target database and the history
// table together. Every operation loads the scripts first, then prepares the
// history table and holds the advisory lock for its whole duration, so
// concurrent invocations against the same database are serialized.
//
//	eng := engine.New(engine.Config{
//		Sources: []migrator.Source{migrator.NewDirSource("db/migrations")},
//		DB:      db,
//	})
//
//	plan, err := eng.Plan(ctx)
//	if err != nil {
//		return err
//	}
//	fmt.Println(plan.Len(), "pending")
//
//	result, err := eng.Migrate(ctx)
//	if errors.Is(err, executor.ErrScriptFailed) {
//		fmt.Println("failed:", result.FirstFailure.Name)
//	}
//
// The operations are:
//
//	Plan, DryRun  pending scripts, nothing is executed
//	Migrate       validate, plan and apply
//	Validate      compare local scripts with the history table
//	Repair        remove failed records and/or realign checksums
//	Baseline      mark a version as applied without executing it
//	Info          per-script state of records and local scripts
package engine
