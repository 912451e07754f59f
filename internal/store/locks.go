package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rcliao/cips/internal/model"
)

// TryAcquireLock attempts an atomic create-if-absent of the lock record
// for a branch. If the branch is held by a dead process (per alive),
// the stale record is reclaimed and re-created inside the same
// transaction, so no other process can slip between reap and create.
//
// Returns true when the caller now holds the branch. Re-acquiring a
// branch already held by the same session handle succeeds (idempotent).
func (s *SQLiteStore) TryAcquireLock(ctx context.Context, lock model.SessionLock, alive func(pid int) bool) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("%w: begin: %v", model.ErrStorage, err)
	}
	defer tx.Rollback()

	var handle string
	var pid int
	err = tx.QueryRowContext(ctx,
		`SELECT session_handle, owner_pid FROM session_locks WHERE ns = ? AND branch = ?`,
		lock.NS, lock.Branch).Scan(&handle, &pid)
	switch {
	case err == sql.ErrNoRows:
		// Free slot.
	case err != nil:
		return false, fmt.Errorf("%w: read lock: %v", model.ErrStorage, err)
	case handle == lock.SessionHandle:
		return true, tx.Commit()
	case alive(pid):
		return false, nil
	default:
		// Stale lock: owner died without deregistering.
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM session_locks WHERE ns = ? AND branch = ?`,
			lock.NS, lock.Branch); err != nil {
			return false, fmt.Errorf("%w: reclaim lock: %v", model.ErrStorage, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO session_locks (ns, branch, session_handle, owner_pid, registered_at)
		 VALUES (?, ?, ?, ?, ?)`,
		lock.NS, lock.Branch, lock.SessionHandle, lock.OwnerPID,
		lock.RegisteredAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			// Lost the race to another process.
			return false, nil
		}
		return false, fmt.Errorf("%w: create lock: %v", model.ErrStorage, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("%w: commit lock: %v", model.ErrStorage, err)
	}
	return true, nil
}

// ReleaseLock removes a session's lock on a branch. Removing a lock
// that is absent or owned by a different session is a no-op.
func (s *SQLiteStore) ReleaseLock(ctx context.Context, ns, branch, sessionHandle string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM session_locks WHERE ns = ? AND branch = ? AND session_handle = ?`,
		ns, branch, sessionHandle)
	if err != nil {
		return fmt.Errorf("%w: release lock: %v", model.ErrStorage, err)
	}
	return nil
}

// LiveLocks returns all locks whose owner process is running, reaping
// dead ones in the same transaction for bookkeeping.
func (s *SQLiteStore) LiveLocks(ctx context.Context, ns string, alive func(pid int) bool) ([]model.SessionLock, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %v", model.ErrStorage, err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT ns, branch, session_handle, owner_pid, registered_at
		 FROM session_locks WHERE ns = ? ORDER BY registered_at`, ns)
	if err != nil {
		return nil, fmt.Errorf("%w: list locks: %v", model.ErrStorage, err)
	}

	var live []model.SessionLock
	var dead []string
	for rows.Next() {
		var l model.SessionLock
		var registeredAt string
		if err := rows.Scan(&l.NS, &l.Branch, &l.SessionHandle, &l.OwnerPID, &registeredAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%w: scan lock: %v", model.ErrStorage, err)
		}
		l.RegisteredAt, _ = time.Parse(time.RFC3339Nano, registeredAt)
		if alive(l.OwnerPID) {
			live = append(live, l)
		} else {
			dead = append(dead, l.Branch)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: lock rows: %v", model.ErrStorage, err)
	}

	for _, branch := range dead {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM session_locks WHERE ns = ? AND branch = ?`, ns, branch); err != nil {
			return nil, fmt.Errorf("%w: reap lock: %v", model.ErrStorage, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit reap: %v", model.ErrStorage, err)
	}
	return live, nil
}
