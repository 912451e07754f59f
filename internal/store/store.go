// Package store persists instances, branches, and session locks.
package store

import (
	"context"

	"github.com/rcliao/cips/internal/model"
)

// SerializeParams holds parameters for creating a new instance.
type SerializeParams struct {
	NS            string
	Branch        string
	Memories      []model.MemoryRecord
	Achievements  []string
	Parent        *model.Instance // nil for a root instance
	SessionHandle string
	Summary       string
}

// Store defines the instance storage interface.
type Store interface {
	// Serialize writes a new instance and moves the branch pointer to it.
	// Generation derives from the parent (0 for a root instance).
	Serialize(ctx context.Context, p SerializeParams) (*model.Instance, error)

	// SaveConfluence persists a fully-formed merge instance and its branch
	// pointer update in one transaction.
	SaveConfluence(ctx context.Context, inst *model.Instance) error

	// Get retrieves an instance by full id, memories included.
	Get(ctx context.Context, ns, id string) (*model.Instance, error)

	// GetLatest retrieves the instance a branch pointer names.
	GetLatest(ctx context.Context, ns, branch string) (*model.Instance, error)

	// List returns instance summaries, most recent first.
	List(ctx context.Context, ns string, limit int) ([]model.InstanceSummary, error)

	// Branches returns all branch pointers for a namespace.
	Branches(ctx context.Context, ns string) ([]model.Branch, error)

	// AncestorsOf returns the transitive ancestor ids of an instance.
	AncestorsOf(ctx context.Context, ns, id string) (map[string]bool, error)

	Close() error
}
