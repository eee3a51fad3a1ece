package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/pseudomuto/strata/pkg/migrator"
	"github.com/pseudomuto/strata/pkg/project"
	"github.com/urfave/cli/v3"
)

// newCmd creates the new command, which writes an empty, correctly named
// script into the first configured location.
//
// Example usage:
//
//	strata new create users                  # V<next>__create_users.sql
//	strata new --timestamp add events table  # V20240305193015__add_events_table.sql
//	strata new --kind repeatable active users view
//	strata new --kind undo drop events table # U<highest>__drop_events_table.sql
func newCmd(s *Session) *cli.Command {
	return &cli.Command{
		Name:      "new",
		Usage:     "Create a new migration script",
		ArgsUsage: "<description>",
		Before:    s.requireConfig,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "kind",
				Aliases: []string{"k"},
				Usage:   "versioned, repeatable or undo",
				Value:   string(migrator.Versioned),
			},
			&cli.StringFlag{
				Name:  "version",
				Usage: "explicit version instead of the next one",
				Config: cli.StringConfig{
					TrimSpace: true,
				},
			},
			&cli.BoolFlag{
				Name:  "timestamp",
				Usage: "use a UTC timestamp version (yyyyMMddHHmmss)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() == 0 {
				return errors.New("a description is required")
			}

			kind, err := migrator.ParseKind(cmd.String("kind"))
			if err != nil || kind == migrator.Baseline {
				return errors.Errorf("invalid kind %q (expected versioned, repeatable or undo)", cmd.String("kind"))
			}

			path, err := project.NewScript(ctx, s.Config, project.ScriptOptions{
				Kind:        kind,
				Description: strings.Join(cmd.Args().Slice(), " "),
				Version:     cmd.String("version"),
				Timestamp:   cmd.Bool("timestamp"),
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(output(cmd), "Created %s\n", path)
			return nil
		},
	}
}
