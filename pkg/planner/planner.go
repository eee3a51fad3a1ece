// Package planner decides which scripts a migration run applies.
//
// Plan compares the catalog with the history ledger and returns an
// ExecutionPlan: pending versioned scripts in ascending version order,
// followed by new or changed repeatable scripts ordered by description.
//
//	plan, err := planner.Plan(catalog, records, planner.Options{})
//	switch {
//	case errors.Is(err, planner.ErrPriorFailureUnresolved):
//	    // run `strata repair --remove-failed` after fixing the script
//	case errors.Is(err, planner.ErrOutOfOrderDetected):
//	    // enable out of order mode or renumber the new script
//	}
//
// Planning never touches the database.
package planner

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/pseudomuto/strata/pkg/history"
	"github.com/pseudomuto/strata/pkg/migrator"
)

var (
	// ErrOutOfOrderDetected is returned when a pending versioned script is
	// lower than the highest applied version and out of order mode is off.
	ErrOutOfOrderDetected = errors.New("out of order migration detected")

	// ErrPriorFailureUnresolved is returned when the ledger contains a failed
	// attempt that has not been repaired.
	ErrPriorFailureUnresolved = errors.New("prior failure unresolved")
)

type (
	// Options control planning.
	Options struct {
		// OutOfOrder allows pending versions lower than the highest applied
		// version. They are planned in ascending order like any other.
		OutOfOrder bool

		// Target, when set, excludes versioned scripts above it.
		Target *migrator.Version
	}

	// ExecutionPlan is the ordered list of scripts one run applies.
	ExecutionPlan struct {
		// Scripts holds pending versioned scripts (ascending), then pending
		// repeatable scripts (by description).
		Scripts []*migrator.Script

		// Baseline is the baseline version below which scripts are skipped.
		Baseline *migrator.Version

		// Highest is the highest applied version when the plan was built.
		Highest *migrator.Version
	}
)

// Plan builds the execution plan for catalog given the current history.
//
// A script is pending when:
//   - versioned: it has no successful record, is above the baseline (if any)
//     and at or below the target (if set)
//   - repeatable: the current record for its description is missing or has a
//     different checksum
//
// Undo scripts are never planned.
//
// Returns ErrPriorFailureUnresolved if any record failed, and
// ErrOutOfOrderDetected if out of order mode is off and a pending version is
// lower than the highest applied version.
func Plan(catalog *migrator.Catalog, records *history.Records, opts Options) (*ExecutionPlan, error) {
	if failed := records.Failed(); len(failed) > 0 {
		rec := failed[0]
		return nil, errors.Wrapf(
			ErrPriorFailureUnresolved,
			"%s %q failed (rank %d); fix the script and run repair",
			describe(rec.Kind, rec.Version), rec.Description, rec.InstalledRank,
		)
	}

	plan := &ExecutionPlan{Highest: records.Highest()}
	if b := records.Baseline(); b != nil {
		plan.Baseline = b.Version
	}

	var outOfOrder []string
	for _, script := range catalog.Versioned() {
		if !IsPending(script, records, plan.Baseline, opts.Target) {
			continue
		}

		if !opts.OutOfOrder && plan.Highest != nil && script.Version.Less(plan.Highest) {
			outOfOrder = append(outOfOrder, script.Version.String())
		}

		plan.Scripts = append(plan.Scripts, script)
	}

	if len(outOfOrder) > 0 {
		return nil, errors.Wrapf(
			ErrOutOfOrderDetected,
			"version(s) %s are lower than applied version %s",
			strings.Join(outOfOrder, ", "), plan.Highest,
		)
	}

	for _, script := range catalog.Repeatable() {
		if latest := records.Latest(script.Description); latest == nil || latest.Checksum != script.Checksum {
			plan.Scripts = append(plan.Scripts, script)
		}
	}

	return plan, nil
}

// IsPending reports whether a versioned script still needs to be applied:
// it has no successful record, is above baseline and not above target. Nil
// baseline and target impose no bound.
func IsPending(script *migrator.Script, records *history.Records, baseline, target *migrator.Version) bool {
	switch {
	case records.IsApplied(script.Version):
		return false
	case baseline != nil && !baseline.Less(script.Version):
		return false
	case target != nil && target.Less(script.Version):
		return false
	default:
		return true
	}
}

// Len returns the number of planned scripts.
func (p *ExecutionPlan) Len() int { return len(p.Scripts) }

// Empty reports whether there is nothing to apply.
func (p *ExecutionPlan) Empty() bool { return len(p.Scripts) == 0 }

// Versioned returns the planned versioned scripts.
func (p *ExecutionPlan) Versioned() []*migrator.Script {
	return p.filter(migrator.Versioned)
}

// Repeatable returns the planned repeatable scripts.
func (p *ExecutionPlan) Repeatable() []*migrator.Script {
	return p.filter(migrator.Repeatable)
}

func (p *ExecutionPlan) filter(kind migrator.Kind) []*migrator.Script {
	var out []*migrator.Script
	for _, s := range p.Scripts {
		if s.Kind == kind {
			out = append(out, s)
		}
	}

	return out
}

func describe(kind migrator.Kind, v *migrator.Version) string {
	if v == nil {
		return string(kind)
	}

	return string(kind) + " " + v.String()
}
