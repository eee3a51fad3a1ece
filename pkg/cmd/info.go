package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/gosuri/uitable"
	"github.com/pseudomuto/strata/pkg/engine"
	"github.com/pseudomuto/strata/pkg/migrator"
	"github.com/urfave/cli/v3"
)

var categories = map[migrator.Kind]string{
	migrator.Versioned:  "Versioned",
	migrator.Repeatable: "Repeatable",
	migrator.Undo:       "Undo",
	migrator.Baseline:   "Baseline",
}

// infoCmd creates the info command, which lists every script and history
// record with its state.
//
// Example usage:
//
//	strata info
//
// Example output:
//
//	CATEGORY    VERSION  DESCRIPTION        INSTALLED ON    STATE
//	Versioned   1        create users       2 hours ago     Success
//	Versioned   2        add email          2 hours ago     Failed
//	Repeatable           active users view                  Pending
func infoCmd(s *Session) *cli.Command {
	return &cli.Command{
		Name:   "info",
		Usage:  "Show the state of every script",
		Before: s.requireConfig,
		Description: `List every history record and every local script with its state:
Success, Failed, Pending, Baseline, Below Baseline, Above Target, Ignored,
Missing, Outdated, Superseded or Undo.`,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return s.withEngine(ctx, func(eng *engine.Engine) error {
				entries, err := eng.Info(ctx)
				if err != nil {
					return err
				}

				printInfo(output(cmd), entries)
				return nil
			})
		},
	}
}

func printInfo(w io.Writer, entries []*engine.InfoEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No scripts found.")
		return
	}

	table := uitable.New()
	table.MaxColWidth = 50
	table.Wrap = true

	table.AddRow("CATEGORY", "VERSION", "DESCRIPTION", "INSTALLED ON", "STATE")
	for _, entry := range entries {
		var installedOn string
		if entry.Record != nil {
			installedOn = humanize.Time(entry.Record.InstalledOn)
		}

		table.AddRow(categories[entry.Kind], entry.Version.String(), entry.Description, installedOn, string(entry.State))
	}

	fmt.Fprintln(w, table)
}
