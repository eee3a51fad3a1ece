package testutil

import (
	"bytes"
	"context"
	"testing"

	"github.com/urfave/cli/v3"
)

// Output captures what a command wrote.
type Output struct {
	Stdout bytes.Buffer
	Stderr bytes.Buffer
}

// RunApp executes the root command app with args, capturing its output. The
// program name is prepended to args.
func RunApp(t *testing.T, app *cli.Command, args ...string) (*Output, error) {
	t.Helper()

	return RunAppWithContext(context.Background(), t, app, args...)
}

// RunAppWithContext executes the root command app with a custom context
func RunAppWithContext(ctx context.Context, t *testing.T, app *cli.Command, args ...string) (*Output, error) {
	t.Helper()

	out := new(Output)
	app.Writer = &out.Stdout
	app.ErrWriter = &out.Stderr

	fullArgs := append([]string{app.Name}, args...)
	return out, app.Run(ctx, fullArgs)
}
