package cmd

import (
	"context"
	"fmt"

	"github.com/pseudomuto/strata/pkg/engine"
	"github.com/urfave/cli/v3"
)

// validate creates the validate command, which compares the local scripts
// with the history table. It fails when an applied script was changed, a
// pending script is below the highest applied version (without
// --out-of-order), or an applied script is missing and missing_severity is
// error.
func validate(s *Session) *cli.Command {
	return &cli.Command{
		Name:   "validate",
		Usage:  "Validate applied scripts against the local scripts",
		Before: s.requireConfig,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return s.withEngine(ctx, func(eng *engine.Engine) error {
				report, err := eng.Validate(ctx)
				if err != nil {
					return err
				}

				w := output(cmd)
				for _, entry := range report.Issues() {
					level := "warning"
					if report.IsFatal(entry) {
						level = "error"
					}

					fmt.Fprintf(w, "  %-7s  %-20s  %s %s\n", level, entry.Status, entry.Kind, entry.Label())
				}

				if err := report.Err(); err != nil {
					return err
				}

				fmt.Fprintf(w, "Successfully validated %d script(s)\n", len(report.Entries))
				return nil
			})
		},
	}
}
