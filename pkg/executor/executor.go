package executor

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/pseudomuto/strata/pkg/database"
	"github.com/pseudomuto/strata/pkg/history"
	"github.com/pseudomuto/strata/pkg/migrator"
	"github.com/pseudomuto/strata/pkg/parser"
	"github.com/pseudomuto/strata/pkg/planner"
)

const (
	// BeforeMigrate fires once before the first script of a run.
	BeforeMigrate Event = "beforeMigrate"

	// BeforeEachMigrate fires before every script.
	BeforeEachMigrate Event = "beforeEachMigrate"

	// AfterEachMigrate fires after every successfully applied script.
	AfterEachMigrate Event = "afterEachMigrate"

	// AfterEachMigrateError fires after a script fails.
	AfterEachMigrateError Event = "afterEachMigrateError"

	// AfterMigrate fires once after a successful run.
	AfterMigrate Event = "afterMigrate"

	// AfterMigrateError fires once after a failed run.
	AfterMigrateError Event = "afterMigrateError"
)

const (
	// StatusSuccess indicates the script was applied and recorded.
	StatusSuccess ExecutionStatus = "success"

	// StatusFailed indicates the script failed. A failure record was written.
	StatusFailed ExecutionStatus = "failed"
)

// ErrScriptFailed wraps the backend error of a failed script.
var ErrScriptFailed = errors.New("script failed")

type (
	// Event names a point in the run lifecycle at which hooks fire.
	Event string

	// HookFunc is invoked synchronously for an event. script is nil for the
	// run level events (BeforeMigrate, AfterMigrate, AfterMigrateError).
	HookFunc func(ctx context.Context, event Event, script *migrator.Script) error

	// Hook binds a HookFunc to an Event. Hooks for the same event fire in the
	// order they were configured.
	Hook struct {
		Event Event
		Fn    HookFunc
	}

	// Config contains configuration options for creating a new Executor.
	Config struct {
		// DB is the target database.
		DB database.Driver

		// Store records every attempt in the history table.
		Store *history.Store

		// InstalledBy is written to every history record.
		InstalledBy string

		// Hooks are fired around the run and every script.
		Hooks []Hook

		// Logger defaults to slog.Default().
		Logger *slog.Logger
	}

	// Executor applies execution plans, one script at a time.
	//
	// Example usage:
	//
	//	exec := executor.New(executor.Config{DB: db, Store: store})
	//	result, err := exec.Apply(ctx, plan)
	//	if err != nil {
	//		return err
	//	}
	//
	//	if !result.Success {
	//		fmt.Printf("%s failed: %v\n", result.FirstFailure.Name, result.Err())
	//	}
	Executor struct {
		db          database.Driver
		store       *history.Store
		installedBy string
		hooks       []Hook
		logger      *slog.Logger
	}

	// ExecutionStatus represents the outcome of a script execution.
	ExecutionStatus string

	// ExecutionResult contains the result of executing a single script.
	ExecutionResult struct {
		// Script is the script that was executed.
		Script *migrator.Script

		// Status indicates the outcome of the execution.
		Status ExecutionStatus

		// Error is the failure cause, wrapping ErrScriptFailed.
		Error error

		// ExecutionTime records how long the script took.
		ExecutionTime time.Duration

		// StatementsApplied is the number of statements that took effect. It is
		// zero after a rolled back transaction.
		StatementsApplied int

		// TotalStatements is the number of statements in the script.
		TotalStatements int

		// Partial is set when a failed script left some statements applied
		// because the dialect cannot run DDL in a transaction.
		Partial bool

		// Record is the history record written for this attempt.
		Record *history.Record
	}

	// RunResult summarizes one Apply call.
	RunResult struct {
		// MigrationsApplied counts the scripts applied successfully.
		MigrationsApplied int

		// TotalTime is the wall time of the run.
		TotalTime time.Duration

		// Success is false when a script or a Before hook failed.
		Success bool

		// FirstFailure is the script that halted the run, if any.
		FirstFailure *migrator.Script

		// Results holds one entry per attempted script, in order.
		Results []*ExecutionResult
	}
)

// New creates a new Executor with the provided configuration.
func New(config Config) *Executor {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{
		db:          config.DB,
		store:       config.Store,
		installedBy: config.InstalledBy,
		hooks:       config.Hooks,
		logger:      logger,
	}
}

// Apply runs every script of plan in order and stops at the first failure.
//
// Each attempt, successful or not, is written to the history table. On
// dialects with transactional DDL a script and its success record are
// committed together; a failed script is rolled back and its failure record
// is written afterwards.
//
// The returned error is reserved for conditions that prevent a faithful
// record of the run: a Before hook failing, the history table being
// unwritable, or the context being cancelled before the run starts. A script
// failure is reported through RunResult, not the error.
func (e *Executor) Apply(ctx context.Context, plan *planner.ExecutionPlan) (*RunResult, error) {
	start := time.Now()
	result := &RunResult{Success: true}
	defer func() { result.TotalTime = time.Since(start) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := e.fire(ctx, BeforeMigrate, nil); err != nil {
		result.Success = false
		return result, err
	}

	for _, script := range plan.Scripts {
		if err := e.fire(ctx, BeforeEachMigrate, script); err != nil {
			result.Success = false
			result.FirstFailure = script
			_ = e.fire(ctx, AfterMigrateError, nil)
			return result, err
		}

		res, err := e.execute(ctx, script)
		if res != nil {
			result.Results = append(result.Results, res)
		}

		if err != nil {
			result.Success = false
			result.FirstFailure = script
			return result, err
		}

		if res.Status == StatusFailed {
			result.Success = false
			result.FirstFailure = script
			e.logger.Error("Migration failed",
				"script", script.Name,
				"applied", res.StatementsApplied,
				"total", res.TotalStatements,
				"partial", res.Partial,
				"error", res.Error,
			)
			_ = e.fire(ctx, AfterEachMigrateError, script)
			break
		}

		result.MigrationsApplied++
		e.logger.Info("Migration applied",
			"script", script.Name,
			"rank", res.Record.InstalledRank,
			"duration", res.ExecutionTime,
		)
		_ = e.fire(ctx, AfterEachMigrate, script)
	}

	if result.Success {
		_ = e.fire(ctx, AfterMigrate, nil)
	} else {
		_ = e.fire(ctx, AfterMigrateError, nil)
	}

	return result, nil
}

// execute applies a single script. A non-nil error means the attempt could
// not be recorded.
func (e *Executor) execute(ctx context.Context, script *migrator.Script) (*ExecutionResult, error) {
	started := time.Now()
	content := string(script.Content)

	statements := []string{content}
	if !parser.HasDirective(content, parser.NoSplit) {
		var opts []parser.SplitOption
		if e.db.Dialect().BackslashEscapes {
			opts = append(opts, parser.WithBackslashEscapes())
		}

		var err error
		if statements, err = parser.SplitStatements(content, opts...); err != nil {
			return e.recordFailure(ctx, script, started, 0, 0, false, err)
		}
	}

	transactional := e.db.Dialect().TransactionalDDL && !parser.HasDirective(content, parser.NoTransaction)
	if !transactional {
		applied, err := runStatements(ctx, e.db, statements)
		if err != nil {
			return e.recordFailure(ctx, script, started, applied, len(statements), applied > 0, err)
		}

		rec := e.newRecord(script, started, true)
		if _, err := e.store.Record(ctx, nil, rec); err != nil {
			return nil, errors.Wrapf(err, "%s was applied but could not be recorded", script.Name)
		}

		return e.success(script, rec, len(statements)), nil
	}

	tx, err := e.db.Begin(ctx)
	if err != nil {
		return e.recordFailure(ctx, script, started, 0, len(statements), false, err)
	}

	if _, err := runStatements(ctx, tx, statements); err != nil {
		_ = tx.Rollback()
		return e.recordFailure(ctx, script, started, 0, len(statements), false, err)
	}

	rec := e.newRecord(script, started, true)
	if _, err := e.store.Record(ctx, tx, rec); err != nil {
		_ = tx.Rollback()
		return nil, errors.Wrapf(err, "failed to record %s", script.Name)
	}

	if err := tx.Commit(); err != nil {
		return e.recordFailure(ctx, script, started, 0, len(statements), false, err)
	}

	return e.success(script, rec, len(statements)), nil
}

func runStatements(ctx context.Context, conn database.Conn, statements []string) (int, error) {
	for i, stmt := range statements {
		if err := conn.Exec(ctx, stmt); err != nil {
			return i, errors.Wrapf(err, "statement %d of %d", i+1, len(statements))
		}
	}

	return len(statements), nil
}

func (e *Executor) recordFailure(
	ctx context.Context,
	script *migrator.Script,
	started time.Time,
	applied, total int,
	partial bool,
	cause error,
) (*ExecutionResult, error) {
	rec := e.newRecord(script, started, false)

	// The run context may be the reason the script failed.
	if _, err := e.store.Record(context.WithoutCancel(ctx), nil, rec); err != nil {
		return nil, errors.Wrapf(err, "%s failed (%v) and the failure could not be recorded", script.Name, cause)
	}

	return &ExecutionResult{
		Script:            script,
		Status:            StatusFailed,
		Error:             errors.Wrapf(ErrScriptFailed, "%s: %v", script.Name, cause),
		ExecutionTime:     rec.ExecutionTime,
		StatementsApplied: applied,
		TotalStatements:   total,
		Partial:           partial,
		Record:            rec,
	}, nil
}

func (e *Executor) success(script *migrator.Script, rec *history.Record, total int) *ExecutionResult {
	return &ExecutionResult{
		Script:            script,
		Status:            StatusSuccess,
		ExecutionTime:     rec.ExecutionTime,
		StatementsApplied: total,
		TotalStatements:   total,
		Record:            rec,
	}
}

func (e *Executor) newRecord(script *migrator.Script, started time.Time, success bool) *history.Record {
	return &history.Record{
		Version:       script.Version,
		Description:   script.Description,
		Kind:          script.Kind,
		Checksum:      script.Checksum,
		InstalledBy:   e.installedBy,
		ExecutionTime: time.Since(started),
		Success:       success,
	}
}

// fire runs the hooks registered for event. Errors from Before hooks are
// returned; errors from After hooks are logged and dropped.
func (e *Executor) fire(ctx context.Context, event Event, script *migrator.Script) error {
	for _, hook := range e.hooks {
		if hook.Event != event {
			continue
		}

		if err := hook.Fn(ctx, event, script); err != nil {
			if event == BeforeMigrate || event == BeforeEachMigrate {
				return errors.Wrapf(err, "%s hook failed", event)
			}

			e.logger.Warn("Hook failed", "event", event, "error", err)
		}
	}

	return nil
}

// Err returns the error of the first failed script, or nil.
func (r *RunResult) Err() error {
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			return res.Error
		}
	}

	return nil
}
