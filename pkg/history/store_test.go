package history_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pkg/errors"
	"github.com/pseudomuto/strata/pkg/database"
	. "github.com/pseudomuto/strata/pkg/history"
	"github.com/pseudomuto/strata/pkg/migrator"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

func openSQLite(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(context.Background(), database.Options{
		Dialect: "sqlite",
		URL:     filepath.Join(t.TempDir(), "history.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func newStore(t *testing.T, db database.Driver) *Store {
	t.Helper()

	store := NewStore(db, Options{
		LockTimeout:  200 * time.Millisecond,
		PollInterval: 10 * time.Millisecond,
		Clock:        func() time.Time { return fixedNow },
	})
	require.NoError(t, store.Ensure(context.Background()))

	return store
}

func TestEnsure(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	store := NewStore(db, Options{})

	require.Equal(t, "strata_history", store.Table())
	require.NoError(t, store.Ensure(ctx))

	// Idempotent.
	require.NoError(t, store.Ensure(ctx))

	records, err := store.All(ctx)
	require.NoError(t, err)
	require.Zero(t, records.Len())
}

func TestEnsureCorruptTable(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	require.NoError(t, db.Exec(ctx, "CREATE TABLE strata_history (installed_rank INTEGER, version TEXT)"))

	err := NewStore(db, Options{}).Ensure(ctx)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrHistoryCorrupt))

	// The table is left untouched.
	rows, err := db.Query(ctx, "SELECT * FROM strata_history")
	require.NoError(t, err)
	cols, err := rows.Columns()
	require.NoError(t, err)
	require.NoError(t, rows.Close())
	require.Equal(t, []string{"installed_rank", "version"}, cols)
}

func TestEnsureRetriesConcurrentCreate(t *testing.T) {
	ctx := context.Background()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = mockDB.Close() }()

	store := NewStore(database.New(mockDB, database.Postgres), Options{PollInterval: time.Millisecond})
	columns := []string{
		"installed_rank", "version", "description", "kind", "checksum",
		"installed_by", "installed_on", "execution_time", "success",
	}

	// Another run creates the table between our check and our DDL.
	mock.ExpectQuery(`SELECT \* FROM "strata_history" WHERE 1 = 0`).WillReturnError(errors.New(`relation "strata_history" does not exist`))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "strata_history"`).
		WillReturnError(errors.New(`duplicate key value violates unique constraint "pg_type_typname_nsp_index"`))
	mock.ExpectQuery(`SELECT \* FROM "strata_history" WHERE 1 = 0`).WillReturnRows(sqlmock.NewRows(columns))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "strata_lock"`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.Ensure(ctx))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureGivesUpAfterRetry(t *testing.T) {
	ctx := context.Background()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = mockDB.Close() }()

	store := NewStore(database.New(mockDB, database.Postgres), Options{PollInterval: time.Millisecond})
	for range 2 {
		mock.ExpectQuery(`SELECT \* FROM "strata_history"`).WillReturnError(errors.New("permission denied"))
		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "strata_history"`).WillReturnError(errors.New("permission denied"))
	}

	err = store.Ensure(ctx)
	require.ErrorContains(t, err, "failed to create history table")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordAndAll(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, openSQLite(t))

	first := &Record{
		Version:       migrator.MustParseVersion("1.2"),
		Description:   "create users",
		Kind:          migrator.Versioned,
		Checksum:      0xfedcba98,
		InstalledBy:   "ci",
		ExecutionTime: 1500 * time.Millisecond,
		Success:       true,
	}
	rank, err := store.Record(ctx, nil, first)
	require.NoError(t, err)
	require.Equal(t, int64(1), rank)
	require.Equal(t, int64(1), first.InstalledRank)

	second := &Record{
		Description: "views",
		Kind:        migrator.Repeatable,
		Checksum:    42,
		Success:     false,
	}
	rank, err = store.Record(ctx, nil, second)
	require.NoError(t, err)
	require.Equal(t, int64(2), rank)

	records, err := store.All(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, records.Len())

	got := records.All()[0]
	require.Equal(t, int64(1), got.InstalledRank)
	require.Equal(t, "1.2", got.Version.String())
	require.Equal(t, "create users", got.Description)
	require.Equal(t, migrator.Versioned, got.Kind)
	require.Equal(t, uint32(0xfedcba98), got.Checksum)
	require.Equal(t, "ci", got.InstalledBy)
	require.True(t, fixedNow.Equal(got.InstalledOn), "installed_on %s", got.InstalledOn)
	require.Equal(t, 1500*time.Millisecond, got.ExecutionTime)
	require.True(t, got.Success)

	got = records.All()[1]
	require.Nil(t, got.Version)
	require.Equal(t, migrator.Repeatable, got.Kind)
	require.False(t, got.Success)
}

func TestRecordWithinTransaction(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	store := newStore(t, db)

	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	_, err = store.Record(ctx, tx, &Record{Description: "views", Kind: migrator.Repeatable, Success: true})
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	records, err := store.All(ctx)
	require.NoError(t, err)
	require.Zero(t, records.Len())

	tx, err = db.Begin(ctx)
	require.NoError(t, err)
	rank, err := store.Record(ctx, tx, &Record{Description: "views", Kind: migrator.Repeatable, Success: true})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	require.Equal(t, int64(1), rank)
}

func TestRecordUniqueVersion(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, openSQLite(t))

	rec := func() *Record {
		return &Record{Version: migrator.MustParseVersion("1"), Description: "init", Kind: migrator.Versioned, Success: true}
	}

	_, err := store.Record(ctx, nil, rec())
	require.NoError(t, err)
	_, err = store.Record(ctx, nil, rec())
	require.Error(t, err)
}

func TestRepair(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, openSQLite(t))

	for _, rec := range []*Record{
		{Version: migrator.MustParseVersion("1"), Description: "one", Kind: migrator.Versioned, Checksum: 1, Success: true},
		{Version: migrator.MustParseVersion("2"), Description: "two", Kind: migrator.Versioned, Checksum: 2, Success: false},
		{Description: "views", Kind: migrator.Repeatable, Checksum: 3, Success: false},
	} {
		_, err := store.Record(ctx, nil, rec)
		require.NoError(t, err)
	}

	t.Run("noop", func(t *testing.T) {
		result, err := store.Repair(ctx, RepairRequest{})
		require.NoError(t, err)
		require.Empty(t, result.Removed)
		require.Empty(t, result.Realigned)

		records, err := store.All(ctx)
		require.NoError(t, err)
		require.Equal(t, 3, records.Len())
	})

	t.Run("remove failed and realign", func(t *testing.T) {
		result, err := store.Repair(ctx, RepairRequest{
			RemoveFailed: true,
			Realign:      []Realignment{{InstalledRank: 1, Checksum: 0xffffffff}},
		})
		require.NoError(t, err)
		require.Len(t, result.Removed, 2)
		require.Len(t, result.Realigned, 1)

		records, err := store.All(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, records.Len())
		require.Empty(t, records.Failed())
		require.Equal(t, uint32(0xffffffff), records.All()[0].Checksum)
	})

	t.Run("ranks keep increasing", func(t *testing.T) {
		rank, err := store.Record(ctx, nil, &Record{
			Version: migrator.MustParseVersion("2"), Description: "two", Kind: migrator.Versioned, Success: true,
		})
		require.NoError(t, err)
		require.Equal(t, int64(2), rank)
	})
}

func TestBaseline(t *testing.T) {
	ctx := context.Background()

	t.Run("empty ledger", func(t *testing.T) {
		store := newStore(t, openSQLite(t))

		rec, err := store.Baseline(ctx, migrator.MustParseVersion("5"), "", "ops")
		require.NoError(t, err)
		require.Equal(t, int64(1), rec.InstalledRank)
		require.Equal(t, "<< Baseline >>", rec.Description)

		records, err := store.All(ctx)
		require.NoError(t, err)
		require.Equal(t, "5", records.Highest().String())
		require.Equal(t, migrator.Baseline, records.Baseline().Kind)
		require.Equal(t, "ops", records.Baseline().InstalledBy)

		_, err = store.Baseline(ctx, migrator.MustParseVersion("6"), "again", "")
		require.True(t, errors.Is(err, ErrBaselineNotAllowed))
	})

	t.Run("repeatable records allowed", func(t *testing.T) {
		store := newStore(t, openSQLite(t))
		_, err := store.Record(ctx, nil, &Record{Description: "views", Kind: migrator.Repeatable, Success: true})
		require.NoError(t, err)

		_, err = store.Baseline(ctx, migrator.MustParseVersion("1"), "legacy", "")
		require.NoError(t, err)
	})

	t.Run("versioned records refused", func(t *testing.T) {
		store := newStore(t, openSQLite(t))
		_, err := store.Record(ctx, nil, &Record{
			Version: migrator.MustParseVersion("1"), Description: "init", Kind: migrator.Versioned, Success: true,
		})
		require.NoError(t, err)

		_, err = store.Baseline(ctx, migrator.MustParseVersion("3"), "legacy", "")
		require.True(t, errors.Is(err, ErrBaselineNotAllowed))
	})

	t.Run("version required", func(t *testing.T) {
		store := newStore(t, openSQLite(t))
		_, err := store.Baseline(ctx, nil, "legacy", "")
		require.True(t, errors.Is(err, ErrBaselineNotAllowed))
	})
}

func TestAllCorruptRow(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	store := newStore(t, db)

	require.NoError(t, db.Exec(ctx,
		`INSERT INTO strata_history VALUES (1, NULL, 'x', 'snapshot', 0, '', ?, 0, 1)`, fixedNow))

	_, err := store.All(ctx)
	require.True(t, errors.Is(err, ErrHistoryCorrupt))
}

func TestStoreDriverErrors(t *testing.T) {
	ctx := context.Background()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = mockDB.Close() }()

	store := NewStore(database.New(mockDB, database.Postgres), Options{})

	t.Run("create fails", func(t *testing.T) {
		mock.ExpectQuery(`SELECT \* FROM "strata_history" WHERE 1 = 0`).WillReturnError(errors.New("no such table"))
		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "strata_history"`).WillReturnError(errors.New("permission denied"))

		err := store.Ensure(ctx)
		require.ErrorContains(t, err, "permission denied")
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insert uses dollar placeholders", func(t *testing.T) {
		mock.ExpectQuery(`SELECT COALESCE\(MAX\(installed_rank\), 0\) FROM "strata_history"`).
			WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(7))
		mock.ExpectExec(`INSERT INTO "strata_history" \(.+\) VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7, \$8, \$9\)`).
			WithArgs(int64(8), "3", "add index", "versioned", int64(10), "", sqlmock.AnyArg(), int64(0), true).
			WillReturnResult(sqlmock.NewResult(0, 1))

		rank, err := store.Record(ctx, nil, &Record{
			Version:     migrator.MustParseVersion("3"),
			Description: "add index",
			Kind:        migrator.Versioned,
			Checksum:    10,
			Success:     true,
		})
		require.NoError(t, err)
		require.Equal(t, int64(8), rank)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("load fails", func(t *testing.T) {
		mock.ExpectQuery(`SELECT installed_rank`).WillReturnError(errors.New("connection reset"))

		_, err := store.All(ctx)
		require.ErrorContains(t, err, "connection reset")
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
