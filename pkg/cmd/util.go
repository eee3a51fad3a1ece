package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pseudomuto/strata/pkg/database"
	"github.com/pseudomuto/strata/pkg/engine"
	"github.com/pseudomuto/strata/pkg/migrator"
	"github.com/pseudomuto/strata/pkg/planner"
	"github.com/urfave/cli/v3"
)

// withEngine connects to the configured database and calls fn with an engine
// for it. The connection is closed when fn returns.
func (s *Session) withEngine(ctx context.Context, fn func(*engine.Engine) error) error {
	cfg := s.Config

	target, err := cfg.TargetVersion()
	if err != nil {
		return err
	}

	severity, err := cfg.Severity()
	if err != nil {
		return err
	}

	db, err := database.Open(ctx, cfg.DatabaseOptions())
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	s.Logger.Debug("Connected to database", "dialect", db.Dialect())

	return fn(engine.New(engine.Config{
		Sources:         cfg.Sources(),
		DB:              db,
		History:         cfg.HistoryOptions(),
		OutOfOrder:      cfg.OutOfOrder,
		Target:          target,
		MissingSeverity: severity,
		InstalledBy:     cfg.InstalledBy,
		Logger:          s.Logger,
	}))
}

// output returns the writer for user facing output.
func output(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}

	return os.Stdout
}

// scriptLabel identifies a script in command output: V<version>, U<version>
// or R for repeatables.
func scriptLabel(s *migrator.Script) string {
	switch s.Kind {
	case migrator.Repeatable:
		return "R"
	case migrator.Undo:
		return "U" + s.Version.String()
	default:
		return "V" + s.Version.String()
	}
}

// printPlan writes the scripts of plan, one per line, in execution order.
func printPlan(w io.Writer, plan *planner.ExecutionPlan) {
	version := "<< Empty Schema >>"
	if plan.Highest != nil {
		version = plan.Highest.String()
	}

	fmt.Fprintf(w, "Schema version: %s\n", version)
	if plan.Baseline != nil {
		fmt.Fprintf(w, "Baseline: %s\n", plan.Baseline)
	}

	if plan.Empty() {
		fmt.Fprintln(w, "Schema is up to date. No migration necessary.")
		return
	}

	fmt.Fprintf(w, "Pending scripts: %d\n\n", plan.Len())

	labels := make([]string, len(plan.Scripts))
	width := 0
	for i, script := range plan.Scripts {
		labels[i] = scriptLabel(script)
		width = max(width, len(labels[i]))
	}

	for i, script := range plan.Scripts {
		fmt.Fprintf(w, "  %-*s  %s\n", width, labels[i], script.Description)
	}
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
