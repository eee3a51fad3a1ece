// Package validator compares the local catalog with the history ledger.
//
// Validation is read only. It reports, per script identity, one of:
//
//	OK                 applied and unchanged
//	ChecksumMismatch   applied, but the local script changed since
//	MissingLocally     applied, but no longer present locally
//	PendingOutOfOrder  not applied and lower than the highest applied version
//
// The report itself never fails. Callers that gate execution on validation
// use Report.Err, which returns a *ValidationError for fatal entries:
//
//	report := validator.Validate(catalog, records, validator.Options{})
//	if err := report.Err(); err != nil {
//	    if errors.Is(err, validator.ErrChecksumMismatch) {
//	        // a script was edited after it was applied
//	    }
//	    return err
//	}
package validator

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/pseudomuto/strata/pkg/history"
	"github.com/pseudomuto/strata/pkg/migrator"
	"github.com/pseudomuto/strata/pkg/planner"
)

const (
	// OK means the applied script matches its local counterpart.
	OK Status = "ok"

	// ChecksumMismatch means the local script changed after it was applied.
	ChecksumMismatch Status = "checksum_mismatch"

	// MissingLocally means an applied script no longer exists locally.
	MissingLocally Status = "missing_locally"

	// PendingOutOfOrder means a pending version is lower than the highest
	// applied version while out of order mode is off.
	PendingOutOfOrder Status = "pending_out_of_order"
)

const (
	// SeverityIgnore never fails on missing scripts.
	SeverityIgnore Severity = "ignore"

	// SeverityWarn reports missing scripts without failing.
	SeverityWarn Severity = "warn"

	// SeverityError fails on missing scripts.
	SeverityError Severity = "error"
)

var (
	// ErrChecksumMismatch matches a ValidationError containing checksum
	// mismatches.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrPendingOutOfOrder matches a ValidationError containing out of order
	// pending versions.
	ErrPendingOutOfOrder = errors.New("pending out of order")

	// ErrMissingLocally matches a ValidationError containing applied scripts
	// missing locally.
	ErrMissingLocally = errors.New("missing locally")
)

type (
	// Status is the validation outcome of a single script identity.
	Status string

	// Severity controls whether MissingLocally entries are fatal.
	Severity string

	// Options control validation.
	Options struct {
		// OutOfOrder disables PendingOutOfOrder entries.
		OutOfOrder bool

		// MissingSeverity is the severity of MissingLocally entries.
		// Defaults to SeverityWarn.
		MissingSeverity Severity
	}

	// Entry is the validation result for one script identity.
	Entry struct {
		Kind        migrator.Kind
		Version     *migrator.Version
		Description string
		Status      Status

		// Record is the ledger row compared, nil for pending entries.
		Record *history.Record

		// Script is the local script, nil for missing entries.
		Script *migrator.Script
	}

	// Report is the outcome of a validation run.
	Report struct {
		Entries []*Entry

		missingSeverity Severity
	}

	// ValidationError lists the fatal entries of a report.
	ValidationError struct {
		Entries []*Entry
	}
)

// ParseSeverity converts a configuration value to a Severity. An empty string
// yields SeverityWarn.
func ParseSeverity(s string) (Severity, error) {
	switch sev := Severity(strings.ToLower(strings.TrimSpace(s))); sev {
	case "":
		return SeverityWarn, nil
	case SeverityIgnore, SeverityWarn, SeverityError:
		return sev, nil
	default:
		return "", errors.Errorf("invalid missing severity %q (expected ignore, warn or error)", s)
	}
}

// Validate compares catalog against records.
//
//   - Every successful versioned record is compared with the local script of
//     the same version.
//   - The current record of every repeatable script is compared with the local
//     script of the same description. A changed repeatable is reported as a
//     ChecksumMismatch but is not fatal: it is simply due for a re-run.
//   - Baseline records are neither compared nor reported missing.
//   - Pending versions lower than the highest applied version are reported
//     when out of order mode is off.
func Validate(catalog *migrator.Catalog, records *history.Records, opts Options) *Report {
	report := &Report{missingSeverity: opts.MissingSeverity}
	if report.missingSeverity == "" {
		report.missingSeverity = SeverityWarn
	}

	for _, rec := range records.All() {
		if !rec.Success || rec.Kind != migrator.Versioned {
			continue
		}

		report.add(rec, catalog.ByVersion(rec.Version))
	}

	for _, rec := range records.Repeatables() {
		report.add(rec, catalog.ByDescription(rec.Description))
	}

	if opts.OutOfOrder {
		return report
	}

	highest := records.Highest()
	if highest == nil {
		return report
	}

	var baseline *migrator.Version
	if b := records.Baseline(); b != nil {
		baseline = b.Version
	}

	for _, script := range catalog.Versioned() {
		if planner.IsPending(script, records, baseline, nil) && script.Version.Less(highest) {
			report.Entries = append(report.Entries, &Entry{
				Kind:        script.Kind,
				Version:     script.Version,
				Description: script.Description,
				Status:      PendingOutOfOrder,
				Script:      script,
			})
		}
	}

	return report
}

func (r *Report) add(rec *history.Record, script *migrator.Script) {
	entry := &Entry{
		Kind:        rec.Kind,
		Version:     rec.Version,
		Description: rec.Description,
		Status:      OK,
		Record:      rec,
		Script:      script,
	}

	switch {
	case script == nil:
		entry.Status = MissingLocally
	case script.Checksum != rec.Checksum:
		entry.Status = ChecksumMismatch
	}

	r.Entries = append(r.Entries, entry)
}

// ByStatus returns the entries with the given status.
func (r *Report) ByStatus(status Status) []*Entry {
	var out []*Entry
	for _, e := range r.Entries {
		if e.Status == status {
			out = append(out, e)
		}
	}

	return out
}

// Issues returns every entry that is not OK.
func (r *Report) Issues() []*Entry {
	var out []*Entry
	for _, e := range r.Entries {
		if e.Status != OK {
			out = append(out, e)
		}
	}

	return out
}

// Warnings returns the non-fatal issues that should be surfaced to the user:
// outdated repeatables and, under SeverityWarn, missing scripts.
func (r *Report) Warnings() []*Entry {
	var out []*Entry
	for _, e := range r.Issues() {
		if !r.IsFatal(e) && (e.Status != MissingLocally || r.missingSeverity == SeverityWarn) {
			out = append(out, e)
		}
	}

	return out
}

// IsFatal reports whether an entry fails validation.
func (r *Report) IsFatal(e *Entry) bool {
	switch e.Status {
	case ChecksumMismatch:
		return e.Kind != migrator.Repeatable
	case PendingOutOfOrder:
		return true
	case MissingLocally:
		return r.missingSeverity == SeverityError
	default:
		return false
	}
}

// Err returns a *ValidationError listing the fatal entries, or nil.
func (r *Report) Err() error {
	var fatal []*Entry
	for _, e := range r.Entries {
		if r.IsFatal(e) {
			fatal = append(fatal, e)
		}
	}

	if len(fatal) == 0 {
		return nil
	}

	return &ValidationError{Entries: fatal}
}

// Error summarizes the fatal entries.
func (e *ValidationError) Error() string {
	var parts []string
	for _, status := range []Status{ChecksumMismatch, PendingOutOfOrder, MissingLocally} {
		var ids []string
		for _, entry := range e.Entries {
			if entry.Status == status {
				ids = append(ids, entry.Label())
			}
		}

		if len(ids) > 0 {
			parts = append(parts, fmt.Sprintf("%s: %s", strings.ReplaceAll(string(status), "_", " "), strings.Join(ids, ", ")))
		}
	}

	return "validation failed: " + strings.Join(parts, "; ")
}

// Is makes errors.Is match the sentinel of every status present.
func (e *ValidationError) Is(target error) bool {
	for _, entry := range e.Entries {
		switch {
		case entry.Status == ChecksumMismatch && target == ErrChecksumMismatch,
			entry.Status == PendingOutOfOrder && target == ErrPendingOutOfOrder,
			entry.Status == MissingLocally && target == ErrMissingLocally:
			return true
		}
	}

	return false
}

// Label returns the version for versioned entries and the description
// otherwise.
func (e *Entry) Label() string {
	if e.Version != nil {
		return e.Version.String()
	}

	return e.Description
}
