package cmd

import (
	"testing"

	"github.com/pseudomuto/strata/pkg/cmd/testutil"
	"github.com/urfave/cli/v3"
)

// runStrata runs the strata application in dir with all commands registered.
func runStrata(t *testing.T, dir string, args ...string) (*testutil.Output, error) {
	t.Helper()

	s := NewSession(nil)
	app := NewApp(s, &Version{Version: "test"}, []*cli.Command{
		baseline(s),
		infoCmd(s),
		initCmd(s),
		migrate(s),
		newCmd(s),
		planCmd(s),
		repair(s),
		validate(s),
	})

	return testutil.RunApp(t, app, append([]string{"--dir", dir}, args...)...)
}
