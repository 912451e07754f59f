package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rcliao/cips/internal/model"
)

// AncestorsOf returns every transitive ancestor id of an instance,
// following parent edges. The instance itself is not included.
func (s *SQLiteStore) AncestorsOf(ctx context.Context, ns, id string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		WITH RECURSIVE anc(id) AS (
			SELECT parent_id FROM instance_parents WHERE instance_id = ?
			UNION
			SELECT p.parent_id FROM instance_parents p JOIN anc a ON p.instance_id = a.id
		)
		SELECT id FROM anc`, id)
	if err != nil {
		return nil, fmt.Errorf("%w: ancestors: %v", model.ErrStorage, err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var aid string
		if err := rows.Scan(&aid); err != nil {
			return nil, fmt.Errorf("%w: scan ancestor: %v", model.ErrStorage, err)
		}
		out[aid] = true
	}
	return out, rows.Err()
}

// Latest returns the most recently written instance across all branches
// of a namespace, preferring main on an exact timestamp tie.
func (s *SQLiteStore) Latest(ctx context.Context, ns string) (*model.Instance, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM instances WHERE ns = ?
		 ORDER BY created_at DESC,
		          CASE WHEN branch = 'main' THEN 0 ELSE 1 END,
		          id DESC
		 LIMIT 1`, ns).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("no instances in project: %w", model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: latest: %v", model.ErrStorage, err)
	}
	return s.Get(ctx, ns, id)
}

// ByGeneration returns the instance at a given generation, picking main
// when several branches share it, else the most recently written.
func (s *SQLiteStore) ByGeneration(ctx context.Context, ns string, gen int) (*model.Instance, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM instances WHERE ns = ? AND generation = ?
		 ORDER BY CASE WHEN branch = 'main' THEN 0 ELSE 1 END,
		          created_at DESC, id DESC
		 LIMIT 1`, ns, gen).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("generation %d: %w", gen, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: by generation: %v", model.ErrStorage, err)
	}
	return s.Get(ctx, ns, id)
}

// IDsByPrefix returns the instance ids in a namespace that start with
// the given prefix, capped at limit.
func (s *SQLiteStore) IDsByPrefix(ctx context.Context, ns, prefix string, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM instances WHERE ns = ? AND id LIKE ? || '%' LIMIT ?`,
		ns, prefix, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: prefix search: %v", model.ErrStorage, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scan id: %v", model.ErrStorage, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// BySessionHandle returns the most recent instance that recorded the
// given opaque session handle.
func (s *SQLiteStore) BySessionHandle(ctx context.Context, ns, handle string) (*model.Instance, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM instances WHERE ns = ? AND session_handle = ?
		 ORDER BY created_at DESC, id DESC LIMIT 1`, ns, handle).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session handle %s: %w", handle, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: by handle: %v", model.ErrStorage, err)
	}
	return s.Get(ctx, ns, id)
}

// TreeNode is one instance plus its parent edges, for lineage rendering.
type TreeNode struct {
	model.InstanceSummary
	Parents []model.ParentRef
}

// Tree returns every instance in a namespace with parent edges,
// ordered by generation then creation time.
func (s *SQLiteStore) Tree(ctx context.Context, ns string) ([]TreeNode, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, branch, generation, message_count, summary, created_at
		 FROM instances WHERE ns = ?
		 ORDER BY generation, created_at, id`, ns)
	if err != nil {
		return nil, fmt.Errorf("%w: tree: %v", model.ErrStorage, err)
	}
	defer rows.Close()

	var nodes []TreeNode
	for rows.Next() {
		var n TreeNode
		var summary sql.NullString
		var createdAt string
		if err := rows.Scan(&n.ID, &n.Branch, &n.Generation, &n.MessageCount, &summary, &createdAt); err != nil {
			return nil, fmt.Errorf("%w: scan node: %v", model.ErrStorage, err)
		}
		n.Summary = summary.String
		n.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: tree rows: %v", model.ErrStorage, err)
	}

	for i := range nodes {
		prows, err := s.db.QueryContext(ctx,
			`SELECT parent_id, parent_branch FROM instance_parents
			 WHERE instance_id = ? ORDER BY seq`, nodes[i].ID)
		if err != nil {
			return nil, fmt.Errorf("%w: tree parents: %v", model.ErrStorage, err)
		}
		for prows.Next() {
			var p model.ParentRef
			if err := prows.Scan(&p.InstanceID, &p.Branch); err != nil {
				prows.Close()
				return nil, fmt.Errorf("%w: scan tree parent: %v", model.ErrStorage, err)
			}
			nodes[i].Parents = append(nodes[i].Parents, p)
			nodes[i].ParentCount++
		}
		prows.Close()
	}
	return nodes, nil
}
