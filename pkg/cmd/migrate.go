package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/pseudomuto/strata/pkg/engine"
	"github.com/pseudomuto/strata/pkg/executor"
	"github.com/urfave/cli/v3"
)

// migrate creates the migrate command for applying pending scripts.
//
// The command validates the history against the local scripts, then applies
// pending versioned scripts in version order followed by new or changed
// repeatable scripts. Execution halts at the first failing script; the
// failure is recorded and must be resolved with repair before the next run.
//
// Command flags:
//   - --dry-run: Show what would be executed without applying changes
//
// Example usage:
//
//	# Apply all pending scripts
//	strata migrate
//
//	# Show what would be executed without applying
//	strata migrate --dry-run
//
//	# Apply against a database that is not in strata.yaml
//	strata migrate --dialect postgres --url postgres://localhost/app
func migrate(s *Session) *cli.Command {
	return &cli.Command{
		Name:    "migrate",
		Aliases: []string{"apply"},
		Usage:   "Apply pending migrations",
		Description: `Apply all pending scripts to the configured database.

Versioned scripts are applied in ascending version order, followed by every
repeatable script that is new or changed. Each script runs in its own
transaction where the dialect supports transactional DDL.

The command automatically handles:
- Creation of the history table on first run
- Detection of already applied scripts to avoid duplicate execution
- Validation of applied scripts against their local checksums
- An advisory lock so concurrent runs apply each script once

When a script fails, execution stops and a failed record is written. Fix the
script, run 'strata repair --remove-failed' and migrate again.`,
		Before: s.requireConfig,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Show what would be executed without applying changes",
				Value: false,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runMigrate(ctx, cmd, s)
		},
	}
}

func runMigrate(ctx context.Context, cmd *cli.Command, s *Session) error {
	dryRun := cmd.Bool("dry-run")

	s.Logger.Info("Starting migration execution",
		"dialect", s.Config.Database.Dialect,
		"locations", s.Config.Locations,
		"dry_run", dryRun,
	)

	return s.withEngine(ctx, func(eng *engine.Engine) error {
		w := output(cmd)

		if dryRun {
			plan, err := eng.DryRun(ctx)
			if err != nil {
				return err
			}

			printPlan(w, plan)
			return nil
		}

		result, err := eng.Migrate(ctx)
		if result != nil {
			reportResults(w, result)
		}

		return err
	})
}

func reportResults(w io.Writer, result *executor.RunResult) {
	if len(result.Results) == 0 && result.Success {
		fmt.Fprintln(w, "Schema is up to date. No migration necessary.")
		return
	}

	for _, r := range result.Results {
		switch r.Status {
		case executor.StatusSuccess:
			fmt.Fprintf(w, "  ✅ %s %s (%d statements, %s)\n",
				scriptLabel(r.Script),
				r.Script.Description,
				r.TotalStatements,
				formatDuration(r.ExecutionTime),
			)

		case executor.StatusFailed:
			fmt.Fprintf(w, "  ❌ %s %s failed after %s (%d/%d statements)\n",
				scriptLabel(r.Script),
				r.Script.Description,
				formatDuration(r.ExecutionTime),
				r.StatementsApplied,
				r.TotalStatements,
			)

			if r.Partial {
				fmt.Fprintln(w, "     Applied statements could not be rolled back.")
			}
		}
	}

	fmt.Fprintln(w)

	if !result.Success {
		fmt.Fprintf(w, "Applied %d migration(s) before the failure. Fix the script and run 'strata repair --remove-failed'.\n",
			result.MigrationsApplied)
		return
	}

	fmt.Fprintf(w, "Successfully applied %d migration(s) in %s\n",
		result.MigrationsApplied, formatDuration(result.TotalTime))
}
