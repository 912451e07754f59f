// Package model defines the core lineage data types.
package model

import "time"

// MemoryRecord is one remembered event inside an instance.
type MemoryRecord struct {
	Content   string    `json:"content"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source,omitempty"`
}

// ParentRef points at one parent of an instance. An instance with more
// than one parent is a confluence produced by a merge.
type ParentRef struct {
	InstanceID string `json:"instance_id"`
	Branch     string `json:"branch"`
}

// Instance is an immutable snapshot of one session's accumulated state.
// Instances are created only by serialization or merge and never
// mutated afterwards.
type Instance struct {
	ID            string         `json:"instance_id"`
	NS            string         `json:"ns"`
	Branch        string         `json:"branch"`
	Generation    int            `json:"generation"`
	Parents       []ParentRef    `json:"parents,omitempty"`
	ForkPoint     *ParentRef     `json:"fork_point,omitempty"`
	Memories      []MemoryRecord `json:"memories,omitempty"`
	Achievements  []string       `json:"achievements,omitempty"`
	MessageCount  int            `json:"message_count"`
	SessionHandle string         `json:"session_handle,omitempty"`
	Summary       string         `json:"summary,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// IsRoot reports whether this instance starts a lineage.
func (i *Instance) IsRoot() bool { return len(i.Parents) == 0 }

// IsConfluence reports whether this instance was produced by a merge.
func (i *Instance) IsConfluence() bool { return len(i.Parents) > 1 }

// InstanceSummary is the index row used for fast listing, without the
// full memory payload.
type InstanceSummary struct {
	ID            string    `json:"instance_id"`
	Branch        string    `json:"branch"`
	Generation    int       `json:"generation"`
	MessageCount  int       `json:"message_count"`
	ParentCount   int       `json:"parent_count"`
	SessionHandle string    `json:"session_handle,omitempty"`
	Summary       string    `json:"summary,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Branch is a named mutable pointer to the latest instance in one line
// of work.
type Branch struct {
	NS               string     `json:"ns"`
	Name             string     `json:"name"`
	LatestInstanceID string     `json:"latest_instance_id"`
	LatestGeneration int        `json:"latest_generation"`
	ForkPoint        *ParentRef `json:"fork_point,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// SessionLock marks a branch as held by a live session process.
// A lock whose owner pid is no longer running is stale and reclaimable.
type SessionLock struct {
	NS            string    `json:"ns"`
	Branch        string    `json:"branch"`
	SessionHandle string    `json:"session_handle"`
	OwnerPID      int       `json:"owner_pid"`
	RegisteredAt  time.Time `json:"registered_at"`
}

// ProjectIndex aggregates per-project counters for quick inspection.
type ProjectIndex struct {
	NS            string `json:"ns"`
	InstanceCount int    `json:"instance_count"`
	BranchCount   int    `json:"branch_count"`
	MemoryCount   int    `json:"memory_count"`
	MaxGeneration int    `json:"max_generation"`
}

// ValidKinds are the allowed memory kinds.
var ValidKinds = map[string]bool{
	"conversation": true,
	"action":       true,
	"achievement":  true,
}
