package cmd

import (
	"context"

	"github.com/pseudomuto/strata/pkg/engine"
	"github.com/urfave/cli/v3"
)

// planCmd creates the plan command, which prints the scripts migrate would
// apply without changing the database beyond creating the history table.
//
// Example usage:
//
//	strata plan
//
// Example output:
//
//	Schema version: 1
//	Pending scripts: 3
//
//	  V2   add email
//	  V10  add index
//	  R    active users view
func planCmd(s *Session) *cli.Command {
	return &cli.Command{
		Name:    "plan",
		Aliases: []string{"dry-run"},
		Usage:   "Show the scripts migrate would apply",
		Before:  s.requireConfig,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return s.withEngine(ctx, func(eng *engine.Engine) error {
				plan, err := eng.Plan(ctx)
				if err != nil {
					return err
				}

				printPlan(output(cmd), plan)
				return nil
			})
		},
	}
}
