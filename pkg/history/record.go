package history

import (
	"slices"
	"time"

	"github.com/pseudomuto/strata/pkg/migrator"
)

type (
	// Record is a single row of the history table: one attempt to apply a
	// script, or a baseline marker.
	//
	// Records are appended by the executor after every attempt, successful or
	// not, and never modified afterwards except through Store.Repair.
	Record struct {
		// InstalledRank is the position of the record in the ledger. Ranks are
		// assigned by the store and strictly increase.
		InstalledRank int64

		// Version is nil for repeatable scripts.
		Version *migrator.Version

		// Description of the script.
		Description string

		// Kind is Versioned, Repeatable or Baseline.
		Kind migrator.Kind

		// Checksum of the script content at the time it was applied.
		Checksum uint32

		// InstalledBy is an informational label for who applied the script.
		InstalledBy string

		// InstalledOn is when the attempt finished.
		InstalledOn time.Time

		// ExecutionTime is how long the script took. Persisted in milliseconds.
		ExecutionTime time.Duration

		// Success reports whether the attempt succeeded.
		Success bool
	}

	// Records is the ordered contents of the history table with query helpers
	// for the planner and validator.
	//
	// Example usage:
	//
	//	records, err := store.All(ctx)
	//	if err != nil {
	//	    return err
	//	}
	//
	//	if failed := records.Failed(); len(failed) > 0 {
	//	    fmt.Printf("%d failed migrations need repair\n", len(failed))
	//	}
	//
	//	fmt.Println("schema version:", records.Highest())
	Records struct {
		records []*Record
	}
)

// NewRecords creates a Records set, ordered by installed rank.
func NewRecords(records []*Record) *Records {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b *Record) int {
		switch {
		case a.InstalledRank < b.InstalledRank:
			return -1
		case a.InstalledRank > b.InstalledRank:
			return 1
		default:
			return 0
		}
	})

	return &Records{records: sorted}
}

// All returns every record ordered by installed rank.
func (r *Records) All() []*Record { return r.records }

// Len returns the number of records.
func (r *Records) Len() int { return len(r.records) }

// Applied returns the successful versioned and baseline records, ordered by
// rank.
func (r *Records) Applied() []*Record {
	var out []*Record
	for _, rec := range r.records {
		if rec.Success && (rec.Kind == migrator.Versioned || rec.Kind == migrator.Baseline) {
			out = append(out, rec)
		}
	}

	return out
}

// Failed returns every record with success = false.
func (r *Records) Failed() []*Record {
	var out []*Record
	for _, rec := range r.records {
		if !rec.Success {
			out = append(out, rec)
		}
	}

	return out
}

// Highest returns the highest applied version, counting baselines. Returns
// nil when nothing has been applied.
func (r *Records) Highest() *migrator.Version {
	var highest *migrator.Version
	for _, rec := range r.Applied() {
		if highest == nil || highest.Less(rec.Version) {
			highest = rec.Version
		}
	}

	return highest
}

// Baseline returns the most recent successful baseline record, or nil.
func (r *Records) Baseline() *Record {
	for _, rec := range slices.Backward(r.records) {
		if rec.Kind == migrator.Baseline && rec.Success {
			return rec
		}
	}

	return nil
}

// ByVersion returns the successful versioned record for v, or nil.
func (r *Records) ByVersion(v *migrator.Version) *Record {
	for _, rec := range r.records {
		if rec.Kind == migrator.Versioned && rec.Success && rec.Version.Equal(v) {
			return rec
		}
	}

	return nil
}

// IsApplied reports whether version v was applied successfully.
func (r *Records) IsApplied(v *migrator.Version) bool {
	return r.ByVersion(v) != nil
}

// Latest returns the current record of a repeatable script: the successful
// record with the highest rank for the description. Returns nil if the script
// never succeeded.
func (r *Records) Latest(description string) *Record {
	for _, rec := range slices.Backward(r.records) {
		if rec.Kind == migrator.Repeatable && rec.Success && rec.Description == description {
			return rec
		}
	}

	return nil
}

// Repeatables returns the current record of every repeatable script, ordered
// by rank.
func (r *Records) Repeatables() []*Record {
	var out []*Record
	for _, rec := range r.records {
		if rec.Kind == migrator.Repeatable && rec.Success && r.Latest(rec.Description) == rec {
			out = append(out, rec)
		}
	}

	return out
}

// MaxRank returns the highest installed rank, or 0 when empty.
func (r *Records) MaxRank() int64 {
	if len(r.records) == 0 {
		return 0
	}

	return r.records[len(r.records)-1].InstalledRank
}
