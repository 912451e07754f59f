package store

import (
	"context"
	"fmt"

	"github.com/rcliao/cips/internal/model"
)

// ProjectIndex returns the aggregate counters for a namespace.
func (s *SQLiteStore) ProjectIndex(ctx context.Context, ns string) (*model.ProjectIndex, error) {
	idx := &model.ProjectIndex{NS: ns}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(message_count), 0), COALESCE(MAX(generation), 0)
		FROM instances WHERE ns = ?`, ns).
		Scan(&idx.InstanceCount, &idx.MemoryCount, &idx.MaxGeneration)
	if err != nil {
		return nil, fmt.Errorf("%w: index counters: %v", model.ErrStorage, err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM branches WHERE ns = ?`, ns).Scan(&idx.BranchCount)
	if err != nil {
		return nil, fmt.Errorf("%w: branch count: %v", model.ErrStorage, err)
	}

	return idx, nil
}
