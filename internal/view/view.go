// Package view provides a uniform read contract over lineage data.
//
// Two implementations cover every shape: InstanceView for one instance
// (a persisted merge is just another instance, so atomic and merged
// need no separate type), and ProjectView for the full historical tree
// of a project.
package view

import (
	"fmt"
	"strings"

	"github.com/rcliao/cips/internal/model"
	"github.com/rcliao/cips/internal/primer"
)

// View is the polymorphic read contract.
type View interface {
	InstanceID() string
	Generation() int
	Branch() string
	MemoryCount() int
	Achievements() []string
	ResurrectionPrimer(tokenBudget int) string
}

// InstanceView is backed by exactly one instance, confluence or not.
type InstanceView struct {
	inst       *model.Instance
	compressor primer.Compressor
}

// NewInstanceView wraps an instance. A nil compressor uses the default
// text builder.
func NewInstanceView(inst *model.Instance, c primer.Compressor) *InstanceView {
	if c == nil {
		c = primer.TextCompressor{}
	}
	return &InstanceView{inst: inst, compressor: c}
}

func (v *InstanceView) InstanceID() string     { return v.inst.ID }
func (v *InstanceView) Generation() int        { return v.inst.Generation }
func (v *InstanceView) Branch() string         { return v.inst.Branch }
func (v *InstanceView) MemoryCount() int       { return v.inst.MessageCount }
func (v *InstanceView) Achievements() []string { return v.inst.Achievements }

func (v *InstanceView) ResurrectionPrimer(tokenBudget int) string {
	return v.compressor.Compress(v.inst, tokenBudget)
}

// ProjectView is backed by every instance and branch of a project.
type ProjectView struct {
	ns        string
	instances []model.InstanceSummary
	branches  []model.Branch
}

// NewProjectView builds the whole-project view.
func NewProjectView(ns string, instances []model.InstanceSummary, branches []model.Branch) *ProjectView {
	return &ProjectView{ns: ns, instances: instances, branches: branches}
}

func (v *ProjectView) InstanceID() string { return "complete-" + v.ns }

// Generation reports the maximum generation seen anywhere in the tree.
func (v *ProjectView) Generation() int {
	max := 0
	for _, i := range v.instances {
		if i.Generation > max {
			max = i.Generation
		}
	}
	return max
}

func (v *ProjectView) Branch() string { return "complete" }

// MemoryCount sums across all instances.
func (v *ProjectView) MemoryCount() int {
	total := 0
	for _, i := range v.instances {
		total += i.MessageCount
	}
	return total
}

// Achievements is empty at the tree level; summaries carry no
// achievement payload and the whole-tree primer reports counts instead.
func (v *ProjectView) Achievements() []string { return nil }

// ResurrectionPrimer summarizes the whole tree rather than one lineage
// path.
func (v *ProjectView) ResurrectionPrimer(tokenBudget int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# COMPLETE LINEAGE\n\n")
	fmt.Fprintf(&b, "Project: %s\n", v.ns)
	fmt.Fprintf(&b, "Instances: %d across %d branches\n", len(v.instances), len(v.branches))
	fmt.Fprintf(&b, "Max generation: %d\n", v.Generation())
	fmt.Fprintf(&b, "Total memories: %d\n", v.MemoryCount())

	if len(v.branches) > 0 {
		b.WriteString("\n## Branches\n\n")
		for _, br := range v.branches {
			fmt.Fprintf(&b, "- %s: gen %d, latest %s\n", br.Name, br.LatestGeneration, shortID(br.LatestInstanceID))
		}
	}

	if len(v.instances) > 0 {
		b.WriteString("\n## History (newest first)\n\n")
		for _, i := range v.instances {
			line := fmt.Sprintf("- %s gen %d on %s, %d memories", shortID(i.ID), i.Generation, i.Branch, i.MessageCount)
			if i.ParentCount > 1 {
				line += fmt.Sprintf(" (confluence of %d)", i.ParentCount)
			}
			if i.Summary != "" {
				line += ": " + i.Summary
			}
			b.WriteString(line + "\n")
		}
	}

	b.WriteString("\nThis is the entire history of the project, every branch included.\n")
	return primer.Truncate(b.String(), tokenBudget)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
