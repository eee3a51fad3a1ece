package cmd

import (
	"context"
	"fmt"

	"github.com/pseudomuto/strata/pkg/engine"
	"github.com/urfave/cli/v3"
)

// repair creates the repair command.
//
// Command flags:
//   - --remove-failed: Delete every failed history record
//   - --realign: Store the local checksum of every changed applied script
//
// Example usage:
//
//	# After fixing a failed script
//	strata repair --remove-failed
//
//	# Acknowledge intentional edits of applied scripts
//	strata repair --realign
func repair(s *Session) *cli.Command {
	return &cli.Command{
		Name:  "repair",
		Usage: "Repair the history table",
		Description: `Remove failed history records so the scripts can be retried, and/or realign
stored checksums with the local scripts after intentional edits.

At least one of --remove-failed and --realign is required.`,
		Before: s.requireConfig,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "remove-failed",
				Usage: "Delete failed history records",
			},
			&cli.BoolFlag{
				Name:  "realign",
				Usage: "Overwrite stored checksums with the local ones",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return s.withEngine(ctx, func(eng *engine.Engine) error {
				result, err := eng.Repair(ctx, engine.RepairOptions{
					RemoveFailed:     cmd.Bool("remove-failed"),
					RealignChecksums: cmd.Bool("realign"),
				})
				if err != nil {
					return err
				}

				w := output(cmd)
				for _, rec := range result.Removed {
					fmt.Fprintf(w, "  Removed failed record %d: %s %s\n", rec.InstalledRank, rec.Version, rec.Description)
				}

				for _, r := range result.Realigned {
					fmt.Fprintf(w, "  Realigned checksum of record %d\n", r.InstalledRank)
				}

				fmt.Fprintf(w, "Repair complete: %d record(s) removed, %d checksum(s) realigned\n",
					len(result.Removed), len(result.Realigned))
				return nil
			})
		},
	}
}
