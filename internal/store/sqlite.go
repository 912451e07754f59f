package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/rcliao/cips/internal/model"
)

// SQLiteStore implements Store using SQLite.
//
// All writes run as immediate transactions (via _txlock in the DSN), so
// check-then-insert sequences are atomic with respect to every process
// sharing the database file, not just this one.
type SQLiteStore struct {
	db      *sql.DB
	entropy *rand.Rand
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_txlock=immediate&_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("%w: open db: %v", model.ErrStorage, err)
	}

	s := &SQLiteStore{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: migrate: %v", model.ErrStorage, err)
	}

	return s, nil
}

func (s *SQLiteStore) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS instances (
		id             TEXT PRIMARY KEY,
		ns             TEXT NOT NULL,
		branch         TEXT NOT NULL,
		generation     INTEGER NOT NULL,
		fork_id        TEXT,
		fork_branch    TEXT,
		achievements   TEXT,
		message_count  INTEGER NOT NULL DEFAULT 0,
		session_handle TEXT,
		summary        TEXT,
		created_at     TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_instances_ns_created ON instances(ns, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_instances_ns_branch ON instances(ns, branch);
	CREATE INDEX IF NOT EXISTS idx_instances_ns_gen ON instances(ns, generation);

	CREATE TABLE IF NOT EXISTS instance_parents (
		instance_id   TEXT NOT NULL REFERENCES instances(id),
		seq           INTEGER NOT NULL,
		parent_id     TEXT NOT NULL,
		parent_branch TEXT NOT NULL,
		PRIMARY KEY (instance_id, seq)
	);
	CREATE INDEX IF NOT EXISTS idx_parents_parent ON instance_parents(parent_id);

	CREATE TABLE IF NOT EXISTS memories (
		instance_id TEXT NOT NULL REFERENCES instances(id),
		seq         INTEGER NOT NULL,
		content     TEXT NOT NULL,
		kind        TEXT NOT NULL DEFAULT 'conversation',
		ts          TEXT NOT NULL,
		source      TEXT,
		PRIMARY KEY (instance_id, seq)
	);

	CREATE TABLE IF NOT EXISTS branches (
		ns          TEXT NOT NULL,
		name        TEXT NOT NULL,
		latest_id   TEXT NOT NULL,
		fork_id     TEXT,
		fork_branch TEXT,
		updated_at  TEXT NOT NULL,
		PRIMARY KEY (ns, name)
	);

	CREATE TABLE IF NOT EXISTS session_locks (
		ns             TEXT NOT NULL,
		branch         TEXT NOT NULL,
		session_handle TEXT NOT NULL,
		owner_pid      INTEGER NOT NULL,
		registered_at  TEXT NOT NULL,
		PRIMARY KEY (ns, branch)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Serialize(ctx context.Context, p SerializeParams) (*model.Instance, error) {
	if p.NS == "" || p.Branch == "" {
		return nil, fmt.Errorf("serialize: ns and branch are required")
	}

	inst := &model.Instance{
		ID:            s.newID(),
		NS:            p.NS,
		Branch:        p.Branch,
		Memories:      p.Memories,
		Achievements:  p.Achievements,
		MessageCount:  len(p.Memories),
		SessionHandle: p.SessionHandle,
		Summary:       p.Summary,
		CreatedAt:     time.Now().UTC(),
	}

	if p.Parent != nil {
		inst.Generation = p.Parent.Generation + 1
		inst.Parents = []model.ParentRef{{InstanceID: p.Parent.ID, Branch: p.Parent.Branch}}
		if p.Parent.Branch != p.Branch {
			inst.ForkPoint = &model.ParentRef{InstanceID: p.Parent.ID, Branch: p.Parent.Branch}
		}
	}

	if err := s.writeInstance(ctx, inst); err != nil {
		return nil, err
	}
	return inst, nil
}

func (s *SQLiteStore) SaveConfluence(ctx context.Context, inst *model.Instance) error {
	if len(inst.Parents) < 2 {
		return fmt.Errorf("confluence requires at least 2 parents, got %d", len(inst.Parents))
	}
	return s.writeInstance(ctx, inst)
}

// writeInstance persists an instance, its parent edges, its memories,
// and the branch pointer update as one transaction. A reader never
// observes the instance without its pointer or vice versa.
func (s *SQLiteStore) writeInstance(ctx context.Context, inst *model.Instance) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", model.ErrStorage, err)
	}
	defer tx.Rollback()

	var achJSON *string
	if len(inst.Achievements) > 0 {
		b, _ := json.Marshal(inst.Achievements)
		v := string(b)
		achJSON = &v
	}
	var forkID, forkBranch *string
	if inst.ForkPoint != nil {
		forkID, forkBranch = &inst.ForkPoint.InstanceID, &inst.ForkPoint.Branch
	}

	// Instances are immutable: a conflicting id means the identifier
	// space assumption broke, which is fatal, never an overwrite.
	_, err = tx.ExecContext(ctx,
		`INSERT INTO instances (id, ns, branch, generation, fork_id, fork_branch,
		                        achievements, message_count, session_handle, summary, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inst.ID, inst.NS, inst.Branch, inst.Generation, forkID, forkBranch,
		achJSON, inst.MessageCount, nullable(inst.SessionHandle), nullable(inst.Summary),
		inst.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return fmt.Errorf("instance id collision on %s: %v", inst.ID, err)
		}
		return fmt.Errorf("%w: insert instance: %v", model.ErrStorage, err)
	}

	for i, parent := range inst.Parents {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO instance_parents (instance_id, seq, parent_id, parent_branch)
			 VALUES (?, ?, ?, ?)`,
			inst.ID, i, parent.InstanceID, parent.Branch)
		if err != nil {
			return fmt.Errorf("%w: insert parent: %v", model.ErrStorage, err)
		}
	}

	for i, m := range inst.Memories {
		kind := m.Kind
		if kind == "" {
			kind = "conversation"
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO memories (instance_id, seq, content, kind, ts, source)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			inst.ID, i, m.Content, kind, m.Timestamp.UTC().Format(time.RFC3339Nano), nullable(m.Source))
		if err != nil {
			return fmt.Errorf("%w: insert memory: %v", model.ErrStorage, err)
		}
	}

	now := inst.CreatedAt.Format(time.RFC3339Nano)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO branches (ns, name, latest_id, fork_id, fork_branch, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (ns, name) DO UPDATE SET
		   latest_id = excluded.latest_id,
		   updated_at = excluded.updated_at`,
		inst.NS, inst.Branch, inst.ID, forkID, forkBranch, now)
	if err != nil {
		return fmt.Errorf("%w: update branch pointer: %v", model.ErrStorage, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", model.ErrStorage, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, ns, id string) (*model.Instance, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, ns, branch, generation, fork_id, fork_branch,
		        achievements, message_count, session_handle, summary, created_at
		 FROM instances WHERE ns = ? AND id = ?`, ns, id)

	inst, err := scanInstance(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("instance %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get instance: %v", model.ErrStorage, err)
	}

	if err := s.loadParents(ctx, inst); err != nil {
		return nil, err
	}
	if err := s.loadMemories(ctx, inst); err != nil {
		return nil, err
	}
	return inst, nil
}

func (s *SQLiteStore) GetLatest(ctx context.Context, ns, branch string) (*model.Instance, error) {
	var latestID string
	err := s.db.QueryRowContext(ctx,
		`SELECT latest_id FROM branches WHERE ns = ? AND name = ?`, ns, branch).Scan(&latestID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("branch %s: %w", branch, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get branch: %v", model.ErrStorage, err)
	}
	return s.Get(ctx, ns, latestID)
}

func (s *SQLiteStore) List(ctx context.Context, ns string, limit int) ([]model.InstanceSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT i.id, i.branch, i.generation, i.message_count, i.session_handle, i.summary, i.created_at,
		        (SELECT COUNT(*) FROM instance_parents p WHERE p.instance_id = i.id)
		 FROM instances i WHERE i.ns = ?
		 ORDER BY i.created_at DESC, i.id DESC
		 LIMIT ?`, ns, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list: %v", model.ErrStorage, err)
	}
	defer rows.Close()

	var out []model.InstanceSummary
	for rows.Next() {
		var sum model.InstanceSummary
		var handle, summary sql.NullString
		var createdAt string
		if err := rows.Scan(&sum.ID, &sum.Branch, &sum.Generation, &sum.MessageCount,
			&handle, &summary, &createdAt, &sum.ParentCount); err != nil {
			return nil, fmt.Errorf("%w: scan summary: %v", model.ErrStorage, err)
		}
		sum.SessionHandle = handle.String
		sum.Summary = summary.String
		sum.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Branches(ctx context.Context, ns string) ([]model.Branch, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT b.ns, b.name, b.latest_id, b.fork_id, b.fork_branch, b.updated_at,
		        COALESCE(i.generation, 0)
		 FROM branches b LEFT JOIN instances i ON i.id = b.latest_id
		 WHERE b.ns = ?
		 ORDER BY CASE WHEN b.name = 'main' THEN 0 ELSE 1 END, b.name`, ns)
	if err != nil {
		return nil, fmt.Errorf("%w: branches: %v", model.ErrStorage, err)
	}
	defer rows.Close()

	var out []model.Branch
	for rows.Next() {
		var b model.Branch
		var forkID, forkBranch sql.NullString
		var updatedAt string
		if err := rows.Scan(&b.NS, &b.Name, &b.LatestInstanceID, &forkID, &forkBranch,
			&updatedAt, &b.LatestGeneration); err != nil {
			return nil, fmt.Errorf("%w: scan branch: %v", model.ErrStorage, err)
		}
		if forkID.Valid {
			b.ForkPoint = &model.ParentRef{InstanceID: forkID.String, Branch: forkBranch.String}
		}
		b.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) loadParents(ctx context.Context, inst *model.Instance) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT parent_id, parent_branch FROM instance_parents
		 WHERE instance_id = ? ORDER BY seq`, inst.ID)
	if err != nil {
		return fmt.Errorf("%w: load parents: %v", model.ErrStorage, err)
	}
	defer rows.Close()

	for rows.Next() {
		var p model.ParentRef
		if err := rows.Scan(&p.InstanceID, &p.Branch); err != nil {
			return fmt.Errorf("%w: scan parent: %v", model.ErrStorage, err)
		}
		inst.Parents = append(inst.Parents, p)
	}
	return rows.Err()
}

func (s *SQLiteStore) loadMemories(ctx context.Context, inst *model.Instance) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT content, kind, ts, source FROM memories
		 WHERE instance_id = ? ORDER BY seq`, inst.ID)
	if err != nil {
		return fmt.Errorf("%w: load memories: %v", model.ErrStorage, err)
	}
	defer rows.Close()

	for rows.Next() {
		var m model.MemoryRecord
		var ts string
		var source sql.NullString
		if err := rows.Scan(&m.Content, &m.Kind, &ts, &source); err != nil {
			return fmt.Errorf("%w: scan memory: %v", model.ErrStorage, err)
		}
		m.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		m.Source = source.String
		inst.Memories = append(inst.Memories, m)
	}
	return rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanInstance(row scanner) (*model.Instance, error) {
	var inst model.Instance
	var forkID, forkBranch, achJSON, handle, summary sql.NullString
	var createdAt string

	err := row.Scan(
		&inst.ID, &inst.NS, &inst.Branch, &inst.Generation, &forkID, &forkBranch,
		&achJSON, &inst.MessageCount, &handle, &summary, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	if forkID.Valid {
		inst.ForkPoint = &model.ParentRef{InstanceID: forkID.String, Branch: forkBranch.String}
	}
	if achJSON.Valid {
		json.Unmarshal([]byte(achJSON.String), &inst.Achievements)
	}
	inst.SessionHandle = handle.String
	inst.Summary = summary.String
	inst.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &inst, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
