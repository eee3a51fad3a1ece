package engine

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/pseudomuto/strata/pkg/database"
	"github.com/pseudomuto/strata/pkg/executor"
	"github.com/pseudomuto/strata/pkg/history"
	"github.com/pseudomuto/strata/pkg/migrator"
	"github.com/pseudomuto/strata/pkg/planner"
	"github.com/pseudomuto/strata/pkg/validator"
)

type (
	// Config describes a target database and where its scripts live.
	Config struct {
		// Sources are scanned for scripts on every operation.
		Sources []migrator.Source

		// DB is the target database.
		DB database.Driver

		// History configures the history and lock tables.
		History history.Options

		// OutOfOrder allows applying versions lower than the highest applied
		// version.
		OutOfOrder bool

		// Target, when set, is the highest version migrate applies.
		Target *migrator.Version

		// MissingSeverity controls applied scripts that are no longer present
		// locally. Defaults to validator.SeverityWarn.
		MissingSeverity validator.Severity

		// InstalledBy is written to every history record.
		InstalledBy string

		// Hooks are fired by Migrate.
		Hooks []executor.Hook

		// Logger defaults to slog.Default().
		Logger *slog.Logger
	}

	// Engine runs the migration operations against one database.
	Engine struct {
		cfg    Config
		store  *history.Store
		logger *slog.Logger
	}

	// RepairOptions select what Repair changes. At least one must be set.
	RepairOptions struct {
		// RemoveFailed deletes every failed record.
		RemoveFailed bool

		// RealignChecksums overwrites the stored checksum of every applied
		// versioned script whose local content changed.
		RealignChecksums bool
	}
)

// New creates an Engine from cfg.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.History.Logger == nil {
		cfg.History.Logger = logger
	}

	return &Engine{
		cfg:    cfg,
		store:  history.NewStore(cfg.DB, cfg.History),
		logger: logger,
	}
}

// Store returns the history store used by the engine.
func (e *Engine) Store() *history.Store { return e.store }

// Plan returns the scripts Migrate would apply without applying them.
func (e *Engine) Plan(ctx context.Context) (*planner.ExecutionPlan, error) {
	var plan *planner.ExecutionPlan

	err := e.run(ctx, func(ctx context.Context, catalog *migrator.Catalog, records *history.Records) error {
		var err error
		plan, err = planner.Plan(catalog, records, e.plannerOptions())
		return err
	})

	return plan, err
}

// DryRun is an alias of Plan.
func (e *Engine) DryRun(ctx context.Context) (*planner.ExecutionPlan, error) {
	return e.Plan(ctx)
}

// Migrate validates the history, plans and applies every pending script.
//
// Validation failures and unresolved prior failures abort before anything is
// executed. When a script fails the run halts and the returned error wraps
// executor.ErrScriptFailed; the result is returned alongside it.
func (e *Engine) Migrate(ctx context.Context) (*executor.RunResult, error) {
	var result *executor.RunResult

	err := e.run(ctx, func(ctx context.Context, catalog *migrator.Catalog, records *history.Records) error {
		// Pending versions below the highest applied one are reported by the
		// planner as ErrOutOfOrderDetected.
		opts := e.validatorOptions()
		opts.OutOfOrder = true

		report := validator.Validate(catalog, records, opts)
		if err := report.Err(); err != nil {
			return err
		}
		e.logWarnings(report)

		plan, err := planner.Plan(catalog, records, e.plannerOptions())
		if err != nil {
			return err
		}

		if plan.Empty() {
			e.logger.Info("Schema is up to date", "version", records.Highest())
		} else {
			e.logger.Info("Starting migration execution", "scripts", plan.Len(), "version", records.Highest())
		}

		exec := executor.New(executor.Config{
			DB:          e.cfg.DB,
			Store:       e.store,
			InstalledBy: e.cfg.InstalledBy,
			Hooks:       e.cfg.Hooks,
			Logger:      e.logger,
		})

		result, err = exec.Apply(ctx, plan)
		if err != nil {
			return err
		}

		return result.Err()
	})

	return result, err
}

// Validate compares the local scripts with the history table. The returned
// report is never nil when err is nil; use Report.Err to gate on it.
func (e *Engine) Validate(ctx context.Context) (*validator.Report, error) {
	var report *validator.Report

	err := e.run(ctx, func(_ context.Context, catalog *migrator.Catalog, records *history.Records) error {
		report = validator.Validate(catalog, records, e.validatorOptions())
		return nil
	})

	return report, err
}

// Repair removes failed records and/or realigns checksums of applied
// versioned scripts with their local content. Nothing is repaired unless
// requested.
func (e *Engine) Repair(ctx context.Context, opts RepairOptions) (*history.RepairResult, error) {
	if !opts.RemoveFailed && !opts.RealignChecksums {
		return nil, errors.New("nothing to repair: select removal of failed records and/or checksum realignment")
	}

	var result *history.RepairResult

	err := e.run(ctx, func(ctx context.Context, catalog *migrator.Catalog, records *history.Records) error {
		req := history.RepairRequest{RemoveFailed: opts.RemoveFailed}

		if opts.RealignChecksums {
			report := validator.Validate(catalog, records, validator.Options{OutOfOrder: true})
			for _, entry := range report.ByStatus(validator.ChecksumMismatch) {
				if entry.Kind != migrator.Versioned {
					continue
				}

				req.Realign = append(req.Realign, history.Realignment{
					InstalledRank: entry.Record.InstalledRank,
					Checksum:      entry.Script.Checksum,
				})
			}
		}

		var err error
		result, err = e.store.Repair(ctx, req)
		return err
	})

	return result, err
}

// Baseline marks version as applied without running any script. Scripts at
// or below version are never applied afterwards.
func (e *Engine) Baseline(ctx context.Context, version *migrator.Version, description string) (*history.Record, error) {
	if err := e.store.Ensure(ctx); err != nil {
		return nil, err
	}

	var rec *history.Record
	err := e.store.WithLock(ctx, func(ctx context.Context) error {
		var err error
		rec, err = e.store.Baseline(ctx, version, description, e.cfg.InstalledBy)
		return err
	})

	if err == nil {
		e.logger.Info("Baselined schema", "version", version, "rank", rec.InstalledRank)
	}

	return rec, err
}

// run loads the catalog, prepares the history table and calls fn while
// holding the lock. The catalog is loaded first so invalid scripts fail
// before the database is touched.
func (e *Engine) run(
	ctx context.Context,
	fn func(context.Context, *migrator.Catalog, *history.Records) error,
) error {
	catalog, err := migrator.LoadCatalog(ctx, e.cfg.Sources...)
	if err != nil {
		return err
	}

	e.logger.Debug("Loaded scripts", "count", catalog.Len(), "sources", len(e.cfg.Sources))

	if err := e.store.Ensure(ctx); err != nil {
		return err
	}

	return e.store.WithLock(ctx, func(ctx context.Context) error {
		records, err := e.store.All(ctx)
		if err != nil {
			return err
		}

		return fn(ctx, catalog, records)
	})
}

func (e *Engine) plannerOptions() planner.Options {
	return planner.Options{OutOfOrder: e.cfg.OutOfOrder, Target: e.cfg.Target}
}

func (e *Engine) validatorOptions() validator.Options {
	return validator.Options{OutOfOrder: e.cfg.OutOfOrder, MissingSeverity: e.cfg.MissingSeverity}
}

func (e *Engine) logWarnings(report *validator.Report) {
	for _, entry := range report.Warnings() {
		switch entry.Status {
		case validator.MissingLocally:
			e.logger.Warn("Applied script not found locally", "kind", entry.Kind, "script", entry.Label())
		case validator.ChecksumMismatch:
			e.logger.Info("Repeatable script changed", "script", entry.Label())
		}
	}
}
