package engine

import (
	"context"

	"github.com/pseudomuto/strata/pkg/history"
	"github.com/pseudomuto/strata/pkg/migrator"
)

const (
	// StatePending is a script the next migrate applies.
	StatePending State = "Pending"

	// StateSuccess is an applied script matching its local counterpart.
	StateSuccess State = "Success"

	// StateFailed is a failed attempt awaiting repair.
	StateFailed State = "Failed"

	// StateBaseline is the baseline marker.
	StateBaseline State = "Baseline"

	// StateBelowBaseline is a local script at or below the baseline version.
	StateBelowBaseline State = "Below Baseline"

	// StateAboveTarget is a local script above the configured target.
	StateAboveTarget State = "Above Target"

	// StateIgnored is a pending version lower than the highest applied
	// version while out of order mode is off.
	StateIgnored State = "Ignored"

	// StateMissing is an applied script no longer present locally.
	StateMissing State = "Missing"

	// StateOutdated is the current record of a repeatable script whose local
	// content changed. The next migrate re-applies it.
	StateOutdated State = "Outdated"

	// StateSuperseded is an older record of a repeatable script.
	StateSuperseded State = "Superseded"

	// StateUndo is an undo script. Undo scripts are catalogued only.
	StateUndo State = "Undo"
)

type (
	// State is the info state of a script or history record.
	State string

	// InfoEntry describes one history record or local script.
	InfoEntry struct {
		Kind        migrator.Kind
		Version     *migrator.Version
		Description string
		State       State

		// Record is nil for scripts that were never attempted.
		Record *history.Record

		// Script is nil for records without a local counterpart.
		Script *migrator.Script
	}
)

// Info lists every history record in rank order, followed by the local
// scripts without a record: versioned scripts ascending, repeatable scripts
// by description and undo scripts.
func (e *Engine) Info(ctx context.Context) ([]*InfoEntry, error) {
	var entries []*InfoEntry

	err := e.run(ctx, func(_ context.Context, catalog *migrator.Catalog, records *history.Records) error {
		entries = e.info(catalog, records)
		return nil
	})

	return entries, err
}

func (e *Engine) info(catalog *migrator.Catalog, records *history.Records) []*InfoEntry {
	var (
		entries  []*InfoEntry
		attempts = make(map[string]bool)
	)

	for _, rec := range records.All() {
		entry := &InfoEntry{
			Kind:        rec.Kind,
			Version:     rec.Version,
			Description: rec.Description,
			Record:      rec,
		}

		switch rec.Kind {
		case migrator.Versioned:
			attempts[rec.Version.Canonical()] = true
			entry.Script = catalog.ByVersion(rec.Version)
		case migrator.Repeatable:
			entry.Script = catalog.ByDescription(rec.Description)
		}

		entry.State = recordState(entry, records)
		entries = append(entries, entry)
	}

	var baseline *migrator.Version
	if b := records.Baseline(); b != nil {
		baseline = b.Version
	}
	highest := records.Highest()

	for _, script := range catalog.Versioned() {
		if attempts[script.Version.Canonical()] {
			continue
		}

		entry := scriptEntry(script)
		switch {
		case baseline != nil && !baseline.Less(script.Version):
			entry.State = StateBelowBaseline
		case e.cfg.Target != nil && e.cfg.Target.Less(script.Version):
			entry.State = StateAboveTarget
		case !e.cfg.OutOfOrder && highest != nil && script.Version.Less(highest):
			entry.State = StateIgnored
		default:
			entry.State = StatePending
		}

		entries = append(entries, entry)
	}

	for _, script := range catalog.Repeatable() {
		if records.Latest(script.Description) == nil {
			entry := scriptEntry(script)
			entry.State = StatePending
			entries = append(entries, entry)
		}
	}

	for _, script := range catalog.Undo() {
		entry := scriptEntry(script)
		entry.State = StateUndo
		entries = append(entries, entry)
	}

	return entries
}

func recordState(entry *InfoEntry, records *history.Records) State {
	rec := entry.Record

	switch {
	case !rec.Success:
		return StateFailed
	case rec.Kind == migrator.Baseline:
		return StateBaseline
	case rec.Kind == migrator.Repeatable && records.Latest(rec.Description) != rec:
		return StateSuperseded
	case entry.Script == nil:
		return StateMissing
	case rec.Kind == migrator.Repeatable && entry.Script.Checksum != rec.Checksum:
		return StateOutdated
	default:
		return StateSuccess
	}
}

func scriptEntry(script *migrator.Script) *InfoEntry {
	return &InfoEntry{
		Kind:        script.Kind,
		Version:     script.Version,
		Description: script.Description,
		Script:      script,
	}
}
