package resolver

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rcliao/cips/internal/model"
	"github.com/rcliao/cips/internal/store"
)

func newTestResolver(t *testing.T) (*Resolver, *store.SQLiteStore) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(s), s
}

func TestResolveLatest(t *testing.T) {
	ctx := context.Background()
	r, s := newTestResolver(t)

	root, _ := s.Serialize(ctx, store.SerializeParams{NS: "proj", Branch: "main"})
	newest, _ := s.Serialize(ctx, store.SerializeParams{NS: "proj", Branch: "alpha", Parent: root})

	for _, ref := range []string{"latest", "last", "recent", "LATEST"} {
		got, err := r.Resolve(ctx, "proj", ref)
		if err != nil {
			t.Fatalf("resolve %q: %v", ref, err)
		}
		if got.ID != newest.ID {
			t.Errorf("resolve %q = %s, want %s", ref, got.ID, newest.ID)
		}
	}
}

func TestResolveGeneration(t *testing.T) {
	ctx := context.Background()
	r, s := newTestResolver(t)

	root, _ := s.Serialize(ctx, store.SerializeParams{NS: "proj", Branch: "main"})
	child, _ := s.Serialize(ctx, store.SerializeParams{NS: "proj", Branch: "main", Parent: root})

	for _, ref := range []string{"gen:1", "g:1", "g1"} {
		got, err := r.Resolve(ctx, "proj", ref)
		if err != nil {
			t.Fatalf("resolve %q: %v", ref, err)
		}
		if got.ID != child.ID {
			t.Errorf("resolve %q = %s, want %s", ref, got.ID, child.ID)
		}
	}

	if _, err := r.Resolve(ctx, "proj", "gen:42"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveBranch(t *testing.T) {
	ctx := context.Background()
	r, s := newTestResolver(t)

	root, _ := s.Serialize(ctx, store.SerializeParams{NS: "proj", Branch: "main"})
	onAlpha, _ := s.Serialize(ctx, store.SerializeParams{NS: "proj", Branch: "alpha", Parent: root})

	got, err := r.Resolve(ctx, "proj", "branch:alpha")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.ID != onAlpha.ID {
		t.Errorf("branch:alpha = %s, want %s", got.ID, onAlpha.ID)
	}

	if _, err := r.Resolve(ctx, "proj", "branch:nope"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestResolvePrefix(t *testing.T) {
	ctx := context.Background()
	r, s := newTestResolver(t)

	inst, _ := s.Serialize(ctx, store.SerializeParams{NS: "proj", Branch: "main"})

	got, err := r.Resolve(ctx, "proj", inst.ID[:8])
	if err != nil {
		t.Fatalf("resolve prefix: %v", err)
	}
	if got.ID != inst.ID {
		t.Errorf("prefix resolved to %s", got.ID)
	}

	// Lowercase prefixes match too (ids are uppercase base32).
	lower := make([]byte, 8)
	for i := 0; i < 8; i++ {
		c := inst.ID[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		lower[i] = c
	}
	if got, err := r.Resolve(ctx, "proj", string(lower)); err != nil || got.ID != inst.ID {
		t.Errorf("lowercase prefix failed: %v", err)
	}
}

func TestResolveAmbiguousPrefixIsError(t *testing.T) {
	ctx := context.Background()
	r, s := newTestResolver(t)

	// ULIDs minted in the same millisecond share a long timestamp
	// prefix, so two back-to-back instances collide on a short one.
	a, _ := s.Serialize(ctx, store.SerializeParams{NS: "proj", Branch: "main"})
	b, _ := s.Serialize(ctx, store.SerializeParams{NS: "proj", Branch: "alpha", Parent: a})

	shared := 0
	for shared < len(a.ID) && a.ID[shared] == b.ID[shared] {
		shared++
	}
	if shared < idPrefixMinLen {
		t.Skipf("ids diverge at %d, no shared prefix to test", shared)
	}

	_, err := r.Resolve(ctx, "proj", a.ID[:shared])
	if !errors.Is(err, model.ErrAmbiguous) {
		t.Errorf("expected ErrAmbiguous, got %v", err)
	}
}

func TestResolveSessionHandle(t *testing.T) {
	ctx := context.Background()
	r, s := newTestResolver(t)

	inst, _ := s.Serialize(ctx, store.SerializeParams{
		NS: "proj", Branch: "main", SessionHandle: "8f14e45f-ceea-4672-8213-151627046ab1",
	})

	got, err := r.Resolve(ctx, "proj", "8f14e45f-ceea-4672-8213-151627046ab1")
	if err != nil {
		t.Fatalf("resolve handle: %v", err)
	}
	if got.ID != inst.ID {
		t.Errorf("handle resolved to %s", got.ID)
	}
}

func TestResolveNeverGuesses(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestResolver(t)

	for _, ref := range []string{"", "nonsense-handle", "gen:7", "branch:x", "ZZZZZZ"} {
		if _, err := r.Resolve(ctx, "proj", ref); !errors.Is(err, model.ErrNotFound) {
			t.Errorf("resolve %q: expected ErrNotFound, got %v", ref, err)
		}
	}
}
