// Package registry assigns non-conflicting branch identities to
// concurrently running sessions of the same project.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/rcliao/cips/internal/model"
	"github.com/rcliao/cips/internal/store"
)

// branchNames is the candidate order: main for the single-session case,
// then the phonetic alphabet for parallel sessions.
var branchNames = []string{
	"main",
	"alpha", "bravo", "charlie", "delta", "echo",
	"foxtrot", "golf", "hotel", "india", "juliet",
}

// maxSynthesized bounds the branch-N fallback so register always
// terminates.
const maxSynthesized = 64

// LockStore is the subset of the store the registry needs.
type LockStore interface {
	TryAcquireLock(ctx context.Context, lock model.SessionLock, alive func(pid int) bool) (bool, error)
	ReleaseLock(ctx context.Context, ns, branch, sessionHandle string) error
	LiveLocks(ctx context.Context, ns string, alive func(pid int) bool) ([]model.SessionLock, error)
}

// Registry tracks which branch identities are held by live sessions.
type Registry struct {
	store    LockStore
	liveness Liveness
	extra    []string // config-supplied names tried after the built-ins
	pid      int
}

// New creates a registry over the given lock store.
func New(s LockStore, liveness Liveness, extraBranches []string) *Registry {
	if liveness == nil {
		liveness = ProcessLiveness{}
	}
	return &Registry{store: s, liveness: liveness, extra: extraBranches, pid: os.Getpid()}
}

// NewSessionHandle synthesizes a handle when the host did not supply
// one (e.g. invoked outside a hook that exports it).
func NewSessionHandle() string {
	return uuid.NewString()
}

// Register assigns a free branch to the session and returns its name.
// Candidates are tried in fixed priority order; a candidate held by a
// dead process is reclaimed atomically. Registration never blocks
// session start: on storage failure it degrades to "main" and logs a
// warning, accepting a possible main collision over an aborted session.
func (r *Registry) Register(ctx context.Context, ns, sessionHandle string) string {
	branch, err := r.register(ctx, ns, sessionHandle)
	if err != nil {
		slog.Warn("session registry degraded, falling back to main",
			"ns", ns, "error", err)
		return "main"
	}
	return branch
}

func (r *Registry) register(ctx context.Context, ns, sessionHandle string) (string, error) {
	lock := model.SessionLock{
		NS:            ns,
		SessionHandle: sessionHandle,
		OwnerPID:      r.pid,
		RegisteredAt:  time.Now().UTC(),
	}

	candidates := append(append([]string{}, branchNames...), r.extra...)
	for _, name := range candidates {
		lock.Branch = name
		ok, err := r.store.TryAcquireLock(ctx, lock, r.liveness.IsAlive)
		if err != nil {
			return "", err
		}
		if ok {
			return name, nil
		}
	}
	return r.synthesize(ctx, lock, len(candidates))
}

// synthesize falls back to branch-N names when every predefined
// candidate is held by a live session. Uniqueness is guaranteed among
// currently-live locks only; a name may be reused once its holder
// exits.
func (r *Registry) synthesize(ctx context.Context, lock model.SessionLock, start int) (string, error) {
	for i := start; i < start+maxSynthesized; i++ {
		lock.Branch = fmt.Sprintf("branch-%d", i)
		ok, err := r.store.TryAcquireLock(ctx, lock, r.liveness.IsAlive)
		if err != nil {
			return "", err
		}
		if ok {
			return lock.Branch, nil
		}
	}
	return "", model.ErrRegistryExhausted
}

// Deregister removes the session's lock. Idempotent: releasing an
// already-released or foreign lock is a no-op.
func (r *Registry) Deregister(ctx context.Context, ns, branch, sessionHandle string) error {
	return r.store.ReleaseLock(ctx, ns, branch, sessionHandle)
}

// ListActive returns all locks held by running processes, reaping dead
// entries as a side effect.
func (r *Registry) ListActive(ctx context.Context, ns string) ([]model.SessionLock, error) {
	return r.store.LiveLocks(ctx, ns, r.liveness.IsAlive)
}

var _ LockStore = (*store.SQLiteStore)(nil)
