package store

import (
	"context"
	"testing"
	"time"

	"github.com/rcliao/cips/internal/model"
)

func alwaysAlive(pid int) bool { return true }
func neverAlive(pid int) bool  { return false }

func testLock(branch, handle string, pid int) model.SessionLock {
	return model.SessionLock{
		NS: "proj", Branch: branch, SessionHandle: handle,
		OwnerPID: pid, RegisteredAt: time.Now().UTC(),
	}
}

func TestTryAcquireLockFreeSlot(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	ok, err := s.TryAcquireLock(ctx, testLock("main", "s1", 100), alwaysAlive)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !ok {
		t.Error("expected to acquire a free slot")
	}
}

func TestTryAcquireLockHeldByLiveProcess(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.TryAcquireLock(ctx, testLock("main", "s1", 100), alwaysAlive)
	ok, err := s.TryAcquireLock(ctx, testLock("main", "s2", 200), alwaysAlive)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if ok {
		t.Error("should not steal a live lock")
	}
}

func TestTryAcquireLockIdempotentForSameSession(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.TryAcquireLock(ctx, testLock("main", "s1", 100), alwaysAlive)
	ok, err := s.TryAcquireLock(ctx, testLock("main", "s1", 100), alwaysAlive)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !ok {
		t.Error("re-acquiring own lock should succeed")
	}
}

func TestTryAcquireLockReclaimsStale(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.TryAcquireLock(ctx, testLock("main", "dead", 100), alwaysAlive)

	// Owner pid is no longer running: the slot is reclaimable.
	ok, err := s.TryAcquireLock(ctx, testLock("main", "s2", 200), neverAlive)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !ok {
		t.Error("expected to reclaim a stale lock")
	}

	locks, _ := s.LiveLocks(ctx, "proj", alwaysAlive)
	if len(locks) != 1 || locks[0].SessionHandle != "s2" {
		t.Errorf("locks = %+v", locks)
	}
}

func TestReleaseLockIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.TryAcquireLock(ctx, testLock("main", "s1", 100), alwaysAlive)

	if err := s.ReleaseLock(ctx, "proj", "main", "s1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	// Already removed: no-op.
	if err := s.ReleaseLock(ctx, "proj", "main", "s1"); err != nil {
		t.Errorf("second release: %v", err)
	}
	// Foreign handle: no-op, does not remove another session's lock.
	s.TryAcquireLock(ctx, testLock("main", "s2", 200), alwaysAlive)
	if err := s.ReleaseLock(ctx, "proj", "main", "intruder"); err != nil {
		t.Errorf("foreign release: %v", err)
	}
	locks, _ := s.LiveLocks(ctx, "proj", alwaysAlive)
	if len(locks) != 1 {
		t.Errorf("foreign release removed a lock: %+v", locks)
	}
}

func TestLiveLocksReapsDead(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.TryAcquireLock(ctx, testLock("main", "s1", 100), alwaysAlive)
	s.TryAcquireLock(ctx, testLock("alpha", "s2", 200), alwaysAlive)

	deadIs100 := func(pid int) bool { return pid != 100 }
	live, err := s.LiveLocks(ctx, "proj", deadIs100)
	if err != nil {
		t.Fatalf("live locks: %v", err)
	}
	if len(live) != 1 || live[0].Branch != "alpha" {
		t.Errorf("live = %+v", live)
	}

	// The dead entry was reaped: the slot is free for a plain insert.
	ok, _ := s.TryAcquireLock(ctx, testLock("main", "s3", 300), alwaysAlive)
	if !ok {
		t.Error("reaped slot should be acquirable")
	}
}
