package cmd

import (
	"context"
	"fmt"

	"github.com/pseudomuto/strata/pkg/project"
	"github.com/urfave/cli/v3"
)

// initCmd creates the init command for creating a strata project.
//
// The command writes strata.yaml and the db/migrations directory into the
// project directory. Existing files are left untouched, so running it twice
// is harmless. The global --dialect and --url flags are written into a newly
// created strata.yaml.
//
// Example usage:
//
//	# Initialize a sqlite project in the current directory
//	strata init
//
//	# Initialize a postgres project reading the url from the environment
//	strata init --dialect postgres --url '${DATABASE_URL}'
func initCmd(s *Session) *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Initialize a new strata project",
		Description: `Create strata.yaml and the db/migrations directory.

Existing files are never overwritten. The global --dialect and --url flags are
written into the generated strata.yaml.`,
		Before: s.prepare,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			proj := project.New(s.Dir)

			err := proj.Initialize(project.InitOptions{
				Dialect: cmd.String("dialect"),
				URL:     cmd.String("url"),
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(output(cmd), "Initialized strata project in %s\n", proj.Root())
			return nil
		},
	}
}
