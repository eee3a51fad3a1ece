package cmd

import (
	"context"
	"fmt"

	"github.com/pseudomuto/strata/pkg/engine"
	"github.com/pseudomuto/strata/pkg/migrator"
	"github.com/urfave/cli/v3"
)

// baseline creates the baseline command, which marks an existing database as
// being at a version without running any script.
//
// Example usage:
//
//	strata baseline --version 3 --description "imported from legacy schema"
func baseline(s *Session) *cli.Command {
	return &cli.Command{
		Name:  "baseline",
		Usage: "Mark the database as being at a version",
		Description: `Record a baseline so that every versioned script at or below the given
version is treated as applied. Only allowed while the history table holds no
versioned records.`,
		Before: s.requireConfig,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "version",
				Usage:    "the baseline version",
				Required: true,
				Config: cli.StringConfig{
					TrimSpace: true,
				},
			},
			&cli.StringFlag{
				Name:  "description",
				Usage: "the baseline description",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			version, err := migrator.ParseVersion(cmd.String("version"))
			if err != nil {
				return err
			}

			return s.withEngine(ctx, func(eng *engine.Engine) error {
				rec, err := eng.Baseline(ctx, version, cmd.String("description"))
				if err != nil {
					return err
				}

				fmt.Fprintf(output(cmd), "Baselined schema at version %s (%s)\n", rec.Version, rec.Description)
				return nil
			})
		},
	}
}
