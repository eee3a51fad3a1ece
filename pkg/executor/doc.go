// Package executor applies execution plans to a target database.
//
// The executor runs the scripts of a planner.ExecutionPlan strictly in order,
// records every attempt in the history table and halts at the first failure.
//
// # Core Components
//
//   - Executor: applies a plan and records the outcome of each script
//   - Config: the driver, history store, hooks and logger to use
//   - ExecutionResult: the outcome of one script
//   - RunResult: the outcome of a whole run
//   - Hook: a callback fired at a lifecycle Event
//
// # Statements
//
// Scripts are split into statements with parser.SplitStatements. A script
// containing the directive
//
//	-- strata:no-split
//
// is sent to the database as a single statement, which is required for
// procedural bodies some drivers cannot split themselves.
//
// # Transactions
//
// When the dialect supports transactional DDL, each script runs in its own
// transaction together with its success record, so a script is either fully
// applied and recorded or not applied at all. A failed script is rolled back
// and its failure record is written outside of the aborted transaction.
//
// Dialects without transactional DDL (MySQL, ClickHouse) auto-commit every
// statement. A failure there may leave earlier statements of the script
// applied; ExecutionResult.Partial reports it. Scripts may opt out of the
// transaction on any dialect with
//
//	-- strata:no-transaction
//
// # Hooks
//
// Hooks fire synchronously in configuration order:
//
//	BeforeMigrate
//	  BeforeEachMigrate
//	  AfterEachMigrate | AfterEachMigrateError
//	AfterMigrate | AfterMigrateError
//
// An error from a Before hook aborts the run before the next script starts.
// Errors from After hooks are logged and otherwise ignored.
//
// # Usage Example
//
//	exec := executor.New(executor.Config{
//		DB:          db,
//		Store:       history.NewStore(db, history.Options{}),
//		InstalledBy: "deploy",
//		Hooks: []executor.Hook{{
//			Event: executor.AfterEachMigrate,
//			Fn: func(ctx context.Context, _ executor.Event, s *migrator.Script) error {
//				fmt.Println("applied", s.Name)
//				return nil
//			},
//		}},
//	})
//
//	result, err := exec.Apply(ctx, plan)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	for _, r := range result.Results {
//		switch r.Status {
//		case executor.StatusSuccess:
//			fmt.Printf("✓ %s completed in %v\n", r.Script.Name, r.ExecutionTime)
//		case executor.StatusFailed:
//			fmt.Printf("✗ %s failed: %v\n", r.Script.Name, r.Error)
//		}
//	}
//
// The executor does not acquire the advisory lock. Callers hold it for the
// duration of Apply, see history.Store.WithLock.
package executor
