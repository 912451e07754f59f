package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rcliao/cips/internal/model"
)

func TestAncestorsOf(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	root, _ := s.Serialize(ctx, SerializeParams{NS: "proj", Branch: "main"})
	mid, _ := s.Serialize(ctx, SerializeParams{NS: "proj", Branch: "main", Parent: root})
	leaf, _ := s.Serialize(ctx, SerializeParams{NS: "proj", Branch: "alpha", Parent: mid})

	anc, err := s.AncestorsOf(ctx, "proj", leaf.ID)
	if err != nil {
		t.Fatalf("ancestors: %v", err)
	}
	if !anc[root.ID] || !anc[mid.ID] {
		t.Errorf("missing ancestors: %v", anc)
	}
	if anc[leaf.ID] {
		t.Error("instance should not be its own ancestor")
	}

	rootAnc, _ := s.AncestorsOf(ctx, "proj", root.ID)
	if len(rootAnc) != 0 {
		t.Errorf("root ancestors = %v", rootAnc)
	}
}

func TestAncestorsAcrossConfluence(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	root, _ := s.Serialize(ctx, SerializeParams{NS: "proj", Branch: "main"})
	a, _ := s.Serialize(ctx, SerializeParams{NS: "proj", Branch: "alpha", Parent: root})
	b, _ := s.Serialize(ctx, SerializeParams{NS: "proj", Branch: "bravo", Parent: root})

	conf := &model.Instance{
		ID: "01CONFLUENCETESTAAAAAAAAAA", NS: "proj", Branch: "main", Generation: 2,
		Parents: []model.ParentRef{
			{InstanceID: a.ID, Branch: "alpha"},
			{InstanceID: b.ID, Branch: "bravo"},
		},
		CreatedAt: time.Now().UTC(),
	}
	if err := s.SaveConfluence(ctx, conf); err != nil {
		t.Fatalf("save confluence: %v", err)
	}

	anc, _ := s.AncestorsOf(ctx, "proj", conf.ID)
	for _, want := range []string{root.ID, a.ID, b.ID} {
		if !anc[want] {
			t.Errorf("confluence missing ancestor %s", want)
		}
	}
}

func TestLatestPrefersMainOnTie(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// Identical created_at on two branches: main wins the tie.
	ts := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	alpha := &model.Instance{ID: "01AAAAAAAAAAAAAAAAAAAAAAAA", NS: "proj", Branch: "alpha", CreatedAt: ts}
	main := &model.Instance{ID: "01BBBBBBBBBBBBBBBBBBBBBBBB", NS: "proj", Branch: "main", CreatedAt: ts}
	if err := s.writeInstance(ctx, alpha); err != nil {
		t.Fatal(err)
	}
	if err := s.writeInstance(ctx, main); err != nil {
		t.Fatal(err)
	}

	got, err := s.Latest(ctx, "proj")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if got.Branch != "main" {
		t.Errorf("tie went to %s, want main", got.Branch)
	}
}

func TestLatestMostRecentWins(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	root, _ := s.Serialize(ctx, SerializeParams{NS: "proj", Branch: "main"})
	newer, _ := s.Serialize(ctx, SerializeParams{NS: "proj", Branch: "alpha", Parent: root})

	got, _ := s.Latest(ctx, "proj")
	if got.ID != newer.ID {
		t.Errorf("latest = %s, want %s", got.ID, newer.ID)
	}
}

func TestLatestEmptyProject(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Latest(context.Background(), "empty"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestByGeneration(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	root, _ := s.Serialize(ctx, SerializeParams{NS: "proj", Branch: "main"})
	s.Serialize(ctx, SerializeParams{NS: "proj", Branch: "alpha", Parent: root})
	onMain, _ := s.Serialize(ctx, SerializeParams{NS: "proj", Branch: "main", Parent: root})

	// Generation 1 exists on both alpha and main: main preferred.
	got, err := s.ByGeneration(ctx, "proj", 1)
	if err != nil {
		t.Fatalf("by generation: %v", err)
	}
	if got.ID != onMain.ID {
		t.Errorf("gen 1 = %s on %s, want main's %s", got.ID, got.Branch, onMain.ID)
	}

	// Idempotent: unchanged storage, identical result.
	again, _ := s.ByGeneration(ctx, "proj", 1)
	if again.ID != got.ID {
		t.Errorf("repeated resolve differs: %s vs %s", again.ID, got.ID)
	}

	if _, err := s.ByGeneration(ctx, "proj", 99); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestIDsByPrefix(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	inst, _ := s.Serialize(ctx, SerializeParams{NS: "proj", Branch: "main"})

	ids, err := s.IDsByPrefix(ctx, "proj", inst.ID[:6], 2)
	if err != nil {
		t.Fatalf("prefix: %v", err)
	}
	if len(ids) != 1 || ids[0] != inst.ID {
		t.Errorf("ids = %v", ids)
	}

	none, _ := s.IDsByPrefix(ctx, "proj", "ZZZZ", 2)
	if len(none) != 0 {
		t.Errorf("expected no match, got %v", none)
	}
}

func TestBySessionHandle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first, _ := s.Serialize(ctx, SerializeParams{NS: "proj", Branch: "main", SessionHandle: "sess-x"})
	second, _ := s.Serialize(ctx, SerializeParams{NS: "proj", Branch: "main", Parent: first, SessionHandle: "sess-x"})

	got, err := s.BySessionHandle(ctx, "proj", "sess-x")
	if err != nil {
		t.Fatalf("by handle: %v", err)
	}
	if got.ID != second.ID {
		t.Errorf("expected most recent instance for handle, got %s", got.ID)
	}

	if _, err := s.BySessionHandle(ctx, "proj", "sess-unknown"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTree(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	root, _ := s.Serialize(ctx, SerializeParams{NS: "proj", Branch: "main"})
	a, _ := s.Serialize(ctx, SerializeParams{NS: "proj", Branch: "alpha", Parent: root})
	b, _ := s.Serialize(ctx, SerializeParams{NS: "proj", Branch: "bravo", Parent: root})

	conf := &model.Instance{
		ID: "01TREETESTCONFAAAAAAAAAAAA", NS: "proj", Branch: "main", Generation: 2,
		Parents: []model.ParentRef{
			{InstanceID: a.ID, Branch: "alpha"},
			{InstanceID: b.ID, Branch: "bravo"},
		},
		CreatedAt: time.Now().UTC(),
	}
	s.SaveConfluence(ctx, conf)

	nodes, err := s.Tree(ctx, "proj")
	if err != nil {
		t.Fatalf("tree: %v", err)
	}
	if len(nodes) != 4 {
		t.Fatalf("nodes = %d", len(nodes))
	}
	// Ordered by generation: root first, confluence last.
	if nodes[0].ID != root.ID || len(nodes[0].Parents) != 0 {
		t.Errorf("first node = %+v", nodes[0])
	}
	last := nodes[len(nodes)-1]
	if last.ID != conf.ID || len(last.Parents) != 2 {
		t.Errorf("last node = %+v", last)
	}
}
