package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// lockID is the key of the single lock row.
const lockID = "strata"

// ErrLockTimeout is returned when the advisory lock could not be acquired
// within the configured timeout. Another run is most likely in progress.
var ErrLockTimeout = errors.New("timed out waiting for migration lock")

// WithLock runs fn while holding the advisory lock.
//
// The lock is a row in the lock table. Acquisition inserts a row carrying a
// random owner token and then checks that the oldest row for the lock belongs
// to this owner, which also covers backends without unique constraints.
// Attempts are repeated every PollInterval until LockTimeout elapses, at which
// point ErrLockTimeout is returned. While fn runs the holder refreshes the
// row's heartbeat every StaleAfter/3. Rows whose heartbeat is older than
// StaleAfter are treated as left behind by a crashed run and removed.
//
// The lock is released on every path, including when ctx is cancelled.
//
// Example usage:
//
//	err := store.WithLock(ctx, func(ctx context.Context) error {
//	    return runMigrations(ctx)
//	})
//	if errors.Is(err, history.ErrLockTimeout) {
//	    log.Println("another migration is running, try again later")
//	}
func (s *Store) WithLock(ctx context.Context, fn func(context.Context) error) (err error) {
	owner := uuid.NewString()
	if err := s.acquire(ctx, owner); err != nil {
		return err
	}

	s.opts.Logger.Debug("Acquired migration lock", "owner", owner, "table", s.opts.LockTable)

	defer func() {
		if rerr := s.release(context.WithoutCancel(ctx), owner); rerr != nil {
			s.opts.Logger.Error("Failed to release migration lock", "owner", owner, "err", rerr)
			if err == nil {
				err = rerr
			}
			return
		}

		s.opts.Logger.Debug("Released migration lock", "owner", owner)
	}()

	stop := s.heartbeat(ctx, owner)
	defer stop()

	return fn(ctx)
}

// heartbeat keeps the lock row fresh until the returned func is called.
func (s *Store) heartbeat(ctx context.Context, owner string) func() {
	if s.opts.StaleAfter < 0 {
		return func() {}
	}

	interval := max(s.opts.StaleAfter/3, time.Millisecond)
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.touch(ctx, owner); err != nil && ctx.Err() == nil {
					s.opts.Logger.Warn("Failed to refresh migration lock", "owner", owner, "err", err)
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func (s *Store) touch(ctx context.Context, owner string) error {
	query := s.db.Dialect().TouchLock(s.opts.LockTable)
	if err := s.db.Exec(ctx, query, s.opts.Clock().UTC(), lockID, owner); err != nil {
		return errors.Wrap(err, "failed to refresh migration lock")
	}

	return nil
}

func (s *Store) acquire(ctx context.Context, owner string) error {
	timeout := time.NewTimer(s.opts.LockTimeout)
	defer timeout.Stop()

	for attempt := 1; ; attempt++ {
		s.clearStale(ctx)

		lastErr := s.tryAcquire(ctx, owner)
		if lastErr == nil {
			return nil
		}

		s.opts.Logger.Debug("Migration lock busy", "attempt", attempt, "err", lastErr)

		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "waiting for migration lock")
		case <-timeout.C:
			return errors.Wrapf(ErrLockTimeout, "after %s (%d attempts): %v", s.opts.LockTimeout, attempt, lastErr)
		case <-time.After(s.opts.PollInterval):
		}
	}
}

func (s *Store) tryAcquire(ctx context.Context, owner string) error {
	dialect := s.db.Dialect()

	insert := dialect.Rebind(fmt.Sprintf(
		"INSERT INTO %s (id, owner, locked_at, heartbeat_at) VALUES (?, ?, ?, ?)",
		s.quotedLockTable(),
	))
	now := s.opts.Clock().UTC()
	if err := s.db.Exec(ctx, insert, lockID, owner, now, now); err != nil {
		return errors.Wrap(err, "lock is held")
	}

	holder, err := s.holder(ctx)
	if err == nil && holder == owner {
		return nil
	}

	if rerr := s.release(context.WithoutCancel(ctx), owner); rerr != nil {
		s.opts.Logger.Warn("Failed to withdraw lock attempt", "owner", owner, "err", rerr)
	}

	if err != nil {
		return err
	}

	return errors.Errorf("lock is held by %s", holder)
}

func (s *Store) holder(ctx context.Context) (string, error) {
	query := s.db.Dialect().Rebind(fmt.Sprintf(
		"SELECT owner FROM %s WHERE id = ? ORDER BY locked_at, owner LIMIT 1",
		s.quotedLockTable(),
	))

	rows, err := s.db.Query(ctx, query, lockID)
	if err != nil {
		return "", errors.Wrap(err, "failed to read lock holder")
	}
	defer func() { _ = rows.Close() }()

	var owner string
	if rows.Next() {
		if err := rows.Scan(&owner); err != nil {
			return "", errors.Wrap(err, "failed to scan lock holder")
		}
	}

	return owner, rows.Err()
}

func (s *Store) clearStale(ctx context.Context) {
	if s.opts.StaleAfter < 0 {
		return
	}

	query := s.db.Dialect().Rebind(fmt.Sprintf(
		"DELETE FROM %s WHERE id = ? AND heartbeat_at < ?",
		s.quotedLockTable(),
	))

	cutoff := s.opts.Clock().UTC().Add(-s.opts.StaleAfter)
	if err := s.db.Exec(ctx, query, lockID, cutoff); err != nil {
		s.opts.Logger.Warn("Failed to clear stale migration locks", "err", err)
	}
}

func (s *Store) release(ctx context.Context, owner string) error {
	query := s.db.Dialect().Rebind(fmt.Sprintf("DELETE FROM %s WHERE owner = ?", s.quotedLockTable()))
	if err := s.db.Exec(ctx, query, owner); err != nil {
		return errors.Wrap(err, "failed to release migration lock")
	}

	return nil
}

func (s *Store) quotedLockTable() string {
	return s.db.Dialect().QuoteIdent(s.opts.LockTable)
}
