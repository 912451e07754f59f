// Package merge consolidates multiple branches into one confluence
// instance whose parents reference every source.
package merge

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/rcliao/cips/internal/model"
	"github.com/rcliao/cips/internal/resolver"
)

// MergeStore is the subset of the store the engine needs.
type MergeStore interface {
	SaveConfluence(ctx context.Context, inst *model.Instance) error
	AncestorsOf(ctx context.Context, ns, id string) (map[string]bool, error)
}

// Engine builds confluence instances.
type Engine struct {
	store    MergeStore
	resolver *resolver.Resolver
}

func New(s MergeStore, r *resolver.Resolver) *Engine {
	return &Engine{store: s, resolver: r}
}

// Params describes one merge operation.
type Params struct {
	NS           string
	SourceRefs   []string
	TargetBranch string
	DryRun       bool
}

// Merge resolves every source reference, consolidates their memories
// and achievements, and persists the confluence instance together with
// the target branch pointer update. All-or-nothing: an unresolvable
// source or a lineage cycle fails the whole operation and writes
// nothing. With DryRun the projected instance is returned unpersisted.
func (e *Engine) Merge(ctx context.Context, p Params) (*model.Instance, error) {
	if len(p.SourceRefs) < 2 {
		return nil, fmt.Errorf("merge requires at least 2 sources, got %d", len(p.SourceRefs))
	}
	if p.TargetBranch == "" {
		p.TargetBranch = "main"
	}

	sources := make([]*model.Instance, 0, len(p.SourceRefs))
	seen := make(map[string]string, len(p.SourceRefs))
	for _, ref := range p.SourceRefs {
		inst, err := e.resolver.Resolve(ctx, p.NS, ref)
		if err != nil {
			return nil, fmt.Errorf("resolve source %q: %w", ref, err)
		}
		if prev, ok := seen[inst.ID]; ok {
			return nil, fmt.Errorf("sources %q and %q resolve to the same instance %s", prev, ref, inst.ID)
		}
		seen[inst.ID] = ref
		sources = append(sources, inst)
	}

	if err := e.rejectCycles(ctx, p.NS, sources); err != nil {
		return nil, err
	}

	inst := &model.Instance{
		ID:           ulid.Make().String(),
		NS:           p.NS,
		Branch:       p.TargetBranch,
		Generation:   1 + maxGeneration(sources),
		Memories:     consolidateMemories(sources),
		Achievements: consolidateAchievements(sources),
		CreatedAt:    time.Now().UTC(),
	}
	inst.MessageCount = len(inst.Memories)

	branchNames := make([]string, len(sources))
	for i, src := range sources {
		inst.Parents = append(inst.Parents, model.ParentRef{InstanceID: src.ID, Branch: src.Branch})
		branchNames[i] = src.Branch
	}
	inst.Summary = fmt.Sprintf("Confluence of %d branches: %s",
		len(sources), strings.Join(branchNames, ", "))

	if p.DryRun {
		return inst, nil
	}
	if err := e.store.SaveConfluence(ctx, inst); err != nil {
		return nil, err
	}
	return inst, nil
}

// rejectCycles fails the merge when any source is a transitive ancestor
// of another: merging a branch with its own ancestor is not a valid
// consolidation step. Siblings and unrelated branches always pass.
func (e *Engine) rejectCycles(ctx context.Context, ns string, sources []*model.Instance) error {
	for _, src := range sources {
		ancestors, err := e.store.AncestorsOf(ctx, ns, src.ID)
		if err != nil {
			return err
		}
		for _, other := range sources {
			if other.ID != src.ID && ancestors[other.ID] {
				return fmt.Errorf("source %s is an ancestor of source %s: %w",
					other.ID, src.ID, model.ErrCycle)
			}
		}
	}
	return nil
}

func maxGeneration(sources []*model.Instance) int {
	max := 0
	for _, s := range sources {
		if s.Generation > max {
			max = s.Generation
		}
	}
	return max
}

type memoryKey struct {
	ts      int64
	content string
}

// consolidateMemories unions source memories, collapsing exact
// (timestamp, content) duplicates. The same content at different
// timestamps is a repeated occurrence and both entries are kept.
// Output is ordered by timestamp, stable across equal timestamps.
func consolidateMemories(sources []*model.Instance) []model.MemoryRecord {
	var out []model.MemoryRecord
	seen := make(map[memoryKey]bool)
	for _, src := range sources {
		for _, m := range src.Memories {
			key := memoryKey{ts: m.Timestamp.UnixNano(), content: m.Content}
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// consolidateAchievements unions achievements preserving first-seen
// order across sources in source-list order.
func consolidateAchievements(sources []*model.Instance) []string {
	var out []string
	seen := make(map[string]bool)
	for _, src := range sources {
		for _, a := range src.Achievements {
			if a == "" || seen[a] {
				continue
			}
			seen[a] = true
			out = append(out, a)
		}
	}
	return out
}
