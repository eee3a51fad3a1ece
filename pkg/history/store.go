package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/pseudomuto/strata/pkg/consts"
	"github.com/pseudomuto/strata/pkg/database"
	"github.com/pseudomuto/strata/pkg/migrator"
)

var (
	// ErrHistoryCorrupt is returned when the history table exists but does
	// not have the expected shape, or holds rows strata cannot read.
	ErrHistoryCorrupt = errors.New("history table corrupt")

	// ErrBaselineNotAllowed is returned when a baseline is requested for a
	// ledger that already has versioned or baseline records.
	ErrBaselineNotAllowed = errors.New("baseline not allowed")

	// Columns is the exact column set of the history table.
	Columns = []string{
		"installed_rank",
		"version",
		"description",
		"kind",
		"checksum",
		"installed_by",
		"installed_on",
		"execution_time",
		"success",
	}
)

type (
	// Options configure a Store. Zero values fall back to the defaults in
	// pkg/consts.
	Options struct {
		// Table is the history table name.
		Table string

		// LockTable is the advisory lock table name.
		LockTable string

		// LockTimeout bounds how long WithLock waits for the lock.
		LockTimeout time.Duration

		// PollInterval is the delay between lock attempts.
		PollInterval time.Duration

		// StaleAfter is how long a lock row may go without a heartbeat before it
		// is considered abandoned and removed. Holders refresh the heartbeat
		// every StaleAfter/3. Negative disables both.
		StaleAfter time.Duration

		// Clock returns the current time. Defaults to time.Now.
		Clock func() time.Time

		// Logger defaults to slog.Default().
		Logger *slog.Logger
	}

	// Store is the ledger of applied scripts, kept in a table inside the
	// target database.
	//
	// Example usage:
	//
	//	store := history.NewStore(db, history.Options{})
	//	if err := store.Ensure(ctx); err != nil {
	//	    return err
	//	}
	//
	//	err := store.WithLock(ctx, func(ctx context.Context) error {
	//	    records, err := store.All(ctx)
	//	    if err != nil {
	//	        return err
	//	    }
	//	    fmt.Println("current version:", records.Highest())
	//	    return nil
	//	})
	Store struct {
		db   database.Driver
		opts Options
	}

	// Realignment overwrites the stored checksum of one record.
	Realignment struct {
		InstalledRank int64
		Checksum      uint32
	}

	// RepairRequest describes an explicit repair of the ledger.
	RepairRequest struct {
		// RemoveFailed deletes every record with success = false.
		RemoveFailed bool

		// Realign overwrites stored checksums, acknowledging intentional edits
		// of already applied scripts.
		Realign []Realignment
	}

	// RepairResult reports what a repair changed.
	RepairResult struct {
		Removed   []*Record
		Realigned []Realignment
	}
)

// NewStore creates a Store on top of the given driver.
func NewStore(db database.Driver, opts Options) *Store {
	if opts.Table == "" {
		opts.Table = consts.DefaultHistoryTable
	}
	if opts.LockTable == "" {
		opts.LockTable = consts.DefaultLockTable
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = consts.DefaultLockTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = consts.DefaultLockPollInterval
	}
	if opts.StaleAfter == 0 {
		opts.StaleAfter = consts.DefaultLockStaleAfter
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Store{db: db, opts: opts}
}

// Table returns the history table name.
func (s *Store) Table() string { return s.opts.Table }

// Ensure creates the history and lock tables when they are missing.
//
// When the history table already exists its column set is verified. A table
// with missing or unexpected columns fails with ErrHistoryCorrupt and is left
// untouched.
//
// Two runs creating the table at the same moment can make the loser's DDL fail
// (Postgres reports a duplicate pg_type key), so a failed attempt is retried
// once after PollInterval.
func (s *Store) Ensure(ctx context.Context) error {
	err := s.ensure(ctx)
	if err == nil || errors.Is(err, ErrHistoryCorrupt) {
		return err
	}

	s.opts.Logger.Debug("Retrying history table setup", "table", s.opts.Table, "err", err)

	select {
	case <-ctx.Done():
		return err
	case <-time.After(s.opts.PollInterval):
	}

	return s.ensure(ctx)
}

func (s *Store) ensure(ctx context.Context) error {
	dialect := s.db.Dialect()

	cols, err := s.columns(ctx)
	if err != nil {
		s.opts.Logger.Debug("Creating history table", "table", s.opts.Table)
		if err := s.db.Exec(ctx, dialect.CreateHistoryTable(s.opts.Table)); err != nil {
			return errors.Wrapf(err, "failed to create history table %s", s.opts.Table)
		}

		if cols, err = s.columns(ctx); err != nil {
			return errors.Wrapf(err, "failed to inspect history table %s", s.opts.Table)
		}
	}

	if err := verifyColumns(cols); err != nil {
		return errors.Wrapf(err, "table %s", s.opts.Table)
	}

	if err := s.db.Exec(ctx, dialect.CreateLockTable(s.opts.LockTable)); err != nil {
		return errors.Wrapf(err, "failed to create lock table %s", s.opts.LockTable)
	}

	return nil
}

func (s *Store) columns(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, fmt.Sprintf("SELECT * FROM %s WHERE 1 = 0", s.quotedTable()))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return rows.Columns()
}

func verifyColumns(cols []string) error {
	got := make([]string, len(cols))
	for i, c := range cols {
		got[i] = strings.ToLower(c)
	}
	slices.Sort(got)

	want := slices.Clone(Columns)
	slices.Sort(want)

	if !slices.Equal(got, want) {
		return errors.Wrapf(ErrHistoryCorrupt, "expected columns %v, found %v", Columns, cols)
	}

	return nil
}

// Record appends rec to the ledger and returns its installed rank.
//
// The rank is computed as one more than the current maximum using conn, so
// passing a transaction makes the rank assignment and the insert atomic with
// the script it records. A nil conn uses the store's driver directly. Callers
// must hold the lock (see WithLock) to keep ranks gap free.
func (s *Store) Record(ctx context.Context, conn database.Conn, rec *Record) (int64, error) {
	if conn == nil {
		conn = s.db
	}

	if rec.InstalledOn.IsZero() {
		rec.InstalledOn = s.opts.Clock()
	}
	rec.InstalledOn = rec.InstalledOn.UTC().Truncate(time.Millisecond)

	rank, err := s.nextRank(ctx, conn)
	if err != nil {
		return 0, err
	}

	var version any
	if rec.Version != nil {
		version = rec.Version.String()
	}

	query := s.db.Dialect().Rebind(fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		s.quotedTable(), strings.Join(Columns, ", "),
	))

	err = conn.Exec(ctx, query,
		rank,
		version,
		rec.Description,
		string(rec.Kind),
		int64(rec.Checksum),
		rec.InstalledBy,
		rec.InstalledOn,
		rec.ExecutionTime.Milliseconds(),
		rec.Success,
	)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to record %s %s", rec.Kind, rec.Description)
	}

	rec.InstalledRank = rank
	return rank, nil
}

func (s *Store) nextRank(ctx context.Context, conn database.Conn) (int64, error) {
	rows, err := conn.Query(ctx, fmt.Sprintf("SELECT COALESCE(MAX(installed_rank), 0) FROM %s", s.quotedTable()))
	if err != nil {
		return 0, errors.Wrap(err, "failed to read installed rank")
	}
	defer func() { _ = rows.Close() }()

	var rank int64
	if rows.Next() {
		if err := rows.Scan(&rank); err != nil {
			return 0, errors.Wrap(err, "failed to scan installed rank")
		}
	}

	if err := rows.Err(); err != nil {
		return 0, errors.Wrap(err, "failed to read installed rank")
	}

	return rank + 1, nil
}

// All returns every record ordered by installed rank.
func (s *Store) All(ctx context.Context) (*Records, error) {
	rows, err := s.db.Query(ctx, fmt.Sprintf(
		"SELECT %s FROM %s ORDER BY installed_rank",
		strings.Join(Columns, ", "), s.quotedTable(),
	))
	if err != nil {
		return nil, errors.Wrap(err, "failed to load history")
	}
	defer func() { _ = rows.Close() }()

	var records []*Record
	for rows.Next() {
		var (
			rec         Record
			version     sql.NullString
			kind        string
			checksum    int64
			executionMs int64
		)

		err := rows.Scan(
			&rec.InstalledRank,
			&version,
			&rec.Description,
			&kind,
			&checksum,
			&rec.InstalledBy,
			&rec.InstalledOn,
			&executionMs,
			&rec.Success,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan history row")
		}

		if rec.Kind, err = migrator.ParseKind(kind); err != nil {
			return nil, errors.Wrapf(ErrHistoryCorrupt, "rank %d: %v", rec.InstalledRank, err)
		}

		if version.Valid && version.String != "" {
			if rec.Version, err = migrator.ParseVersion(version.String); err != nil {
				return nil, errors.Wrapf(ErrHistoryCorrupt, "rank %d: %v", rec.InstalledRank, err)
			}
		}

		rec.Checksum = uint32(checksum)
		rec.ExecutionTime = time.Duration(executionMs) * time.Millisecond
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate history rows")
	}

	return NewRecords(records), nil
}

// Repair applies an explicit repair request: failed records are deleted
// and/or stored checksums are overwritten. Nothing is repaired implicitly.
func (s *Store) Repair(ctx context.Context, req RepairRequest) (*RepairResult, error) {
	result := &RepairResult{}

	if req.RemoveFailed {
		records, err := s.All(ctx)
		if err != nil {
			return nil, err
		}

		if failed := records.Failed(); len(failed) > 0 {
			query := fmt.Sprintf("DELETE FROM %s WHERE success = false", s.quotedTable())
			if err := s.db.Exec(ctx, query); err != nil {
				return nil, errors.Wrap(err, "failed to remove failed records")
			}

			result.Removed = failed
			s.opts.Logger.Info("Removed failed history records", "count", len(failed))
		}
	}

	update := s.db.Dialect().UpdateChecksum(s.opts.Table)
	for _, r := range req.Realign {
		if err := s.db.Exec(ctx, update, int64(r.Checksum), r.InstalledRank); err != nil {
			return nil, errors.Wrapf(err, "failed to realign checksum of rank %d", r.InstalledRank)
		}

		result.Realigned = append(result.Realigned, r)
		s.opts.Logger.Info("Realigned history checksum", "rank", r.InstalledRank, "checksum", r.Checksum)
	}

	return result, nil
}

// Baseline records version as applied without running anything. Every
// versioned script at or below the baseline is treated as applied from then
// on.
//
// Baselining is only allowed on a ledger without versioned or baseline
// records; otherwise ErrBaselineNotAllowed is returned. Repeatable records do
// not prevent a baseline.
func (s *Store) Baseline(ctx context.Context, version *migrator.Version, description, installedBy string) (*Record, error) {
	if version == nil {
		return nil, errors.Wrap(ErrBaselineNotAllowed, "a version is required")
	}

	records, err := s.All(ctx)
	if err != nil {
		return nil, err
	}

	for _, rec := range records.All() {
		if rec.Kind == migrator.Versioned || rec.Kind == migrator.Baseline {
			return nil, errors.Wrapf(
				ErrBaselineNotAllowed,
				"history already contains %s record %s (rank %d)",
				rec.Kind, rec.Version, rec.InstalledRank,
			)
		}
	}

	if description == "" {
		description = "<< Baseline >>"
	}

	rec := &Record{
		Version:     version,
		Description: description,
		Kind:        migrator.Baseline,
		InstalledBy: installedBy,
		Success:     true,
	}

	if _, err := s.Record(ctx, nil, rec); err != nil {
		return nil, err
	}

	return rec, nil
}

func (s *Store) quotedTable() string {
	return s.db.Dialect().QuoteIdent(s.opts.Table)
}
