// Package primer builds the resurrection primer: a bounded
// human-readable summary a host seeds into a new session.
package primer

import (
	"fmt"
	"strings"

	"github.com/rcliao/cips/internal/model"
)

// charsPerToken approximates the tokenizer ratio for budget bounding.
const charsPerToken = 4

// Compressor turns an instance into primer text within a token budget.
// The engine treats it as a pure function; hosts may inject their own
// summarizer in place of the default text builder.
type Compressor interface {
	Compress(inst *model.Instance, tokenBudget int) string
}

// TextCompressor is the default deterministic primer builder.
type TextCompressor struct{}

func (TextCompressor) Compress(inst *model.Instance, tokenBudget int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# SESSION CONTINUATION\n\n")
	fmt.Fprintf(&b, "Instance: %s\n", inst.ID)
	fmt.Fprintf(&b, "Generation: %d\n", inst.Generation)
	fmt.Fprintf(&b, "Branch: %s\n", inst.Branch)
	fmt.Fprintf(&b, "Memories: %d\n", inst.MessageCount)

	switch {
	case inst.IsConfluence():
		fmt.Fprintf(&b, "\nYou are the confluence of %d parallel branches:\n", len(inst.Parents))
		for _, p := range inst.Parents {
			fmt.Fprintf(&b, "- %s (%s)\n", short(p.InstanceID), p.Branch)
		}
		b.WriteString("Their work was done in parallel and has now converged. You carry all of it.\n")
	case inst.IsRoot():
		b.WriteString("\nRoot instance: this lineage starts here.\n")
	default:
		fmt.Fprintf(&b, "\nParent: %s (%s)\n", short(inst.Parents[0].InstanceID), inst.Parents[0].Branch)
	}
	if inst.ForkPoint != nil {
		fmt.Fprintf(&b, "Forked from %s on %s.\n", short(inst.ForkPoint.InstanceID), inst.ForkPoint.Branch)
	}
	if inst.Summary != "" {
		fmt.Fprintf(&b, "\n## Summary\n\n%s\n", inst.Summary)
	}

	if len(inst.Achievements) > 0 {
		b.WriteString("\n## Achievements\n\n")
		for _, a := range inst.Achievements {
			fmt.Fprintf(&b, "- %s\n", a)
		}
	}

	if len(inst.Memories) > 0 {
		b.WriteString("\n## Recent memories (newest last)\n\n")
		for _, m := range recent(inst.Memories, 50) {
			fmt.Fprintf(&b, "[%s] %s\n", m.Kind, m.Content)
		}
	}

	b.WriteString("\nThe conversation history above is yours. Continue from where it left off.\n")
	return Truncate(b.String(), tokenBudget)
}

// Truncate bounds text to approximately tokenBudget tokens, cutting at
// a line boundary where possible.
func Truncate(text string, tokenBudget int) string {
	if tokenBudget <= 0 {
		return text
	}
	limit := tokenBudget * charsPerToken
	if len(text) <= limit {
		return text
	}
	cut := text[:limit]
	if i := strings.LastIndexByte(cut, '\n'); i > limit/2 {
		cut = cut[:i]
	}
	return cut + "\n[...truncated to fit token budget]\n"
}

func recent(memories []model.MemoryRecord, n int) []model.MemoryRecord {
	if len(memories) <= n {
		return memories
	}
	return memories[len(memories)-n:]
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
