package transform

import (
	"github.com/apigraph/apigraph/internal/typegraph"
)

// InlineOptions bounds the inlining pass.
type InlineOptions struct {
	// MaxProps is the largest payload size a target may have and still be
	// inlined.
	MaxProps int
	// SharedMaxProps caps the payload size of targets referenced from more
	// than one place. Inlining a shared target duplicates its payload per
	// reference, so the bar is lower.
	SharedMaxProps int
}

// DefaultInlineOptions returns the thresholds used when the config does not
// override them.
func DefaultInlineOptions() InlineOptions {
	return InlineOptions{MaxProps: 8, SharedMaxProps: 4}
}

// InlineResult describes one inlining pass.
type InlineResult struct {
	Inlined       int
	SkippedCycle  int
	SkippedSize   int
	SkippedShared int
	// Skips lists the reference nodes the pass declined, with reasons,
	// for diagnostic reporting.
	Skips []InlineSkip
}

// InlineSkip names one declined reference and why it stayed.
type InlineSkip struct {
	Ref    typegraph.NodeID
	Target typegraph.NodeID
	Reason string // "cycle", "size" or "shared"
}

// Inline replaces reference nodes with a copy of their target's payload when
// the target is small and acyclic. The copy is anonymous so it emits inline;
// the target node keeps its name and stays in the graph for any remaining
// parents. The reference node keeps its id, so nothing pointing at it needs
// rewriting.
func Inline(g *typegraph.Graph, cycles *typegraph.CycleAnalysis, opts InlineOptions) *InlineResult {
	result := &InlineResult{}

	// Incoming-edge counts decide the shared-target policy.
	incoming := make(map[typegraph.NodeID]int)
	for _, id := range g.IDs() {
		for _, edge := range g.EdgesOf(id) {
			incoming[edge]++
		}
	}

	for _, id := range g.IDs() {
		ref, ok := g.Node(id)
		if !ok || ref.Kind != typegraph.KindReference {
			continue
		}
		target, ok := g.Node(ref.Target)
		if !ok {
			continue
		}
		// Collapse reference chains to their final target so one pass
		// leaves no stacked indirections behind. A chain that loops ends
		// on a node the cycle check below rejects.
		seen := map[typegraph.NodeID]bool{id: true}
		for target.Kind == typegraph.KindReference && !seen[target.ID] {
			seen[target.ID] = true
			next, ok := g.Node(target.Target)
			if !ok {
				break
			}
			target = next
		}

		if cycles.InCycle(id) || cycles.InCycle(target.ID) {
			result.SkippedCycle++
			result.Skips = append(result.Skips, InlineSkip{Ref: id, Target: target.ID, Reason: "cycle"})
			continue
		}

		size := payloadSize(target)
		if size > opts.MaxProps {
			result.SkippedSize++
			result.Skips = append(result.Skips, InlineSkip{Ref: id, Target: target.ID, Reason: "size"})
			continue
		}
		if incoming[target.ID] > 1 && size > opts.SharedMaxProps {
			result.SkippedShared++
			result.Skips = append(result.Skips, InlineSkip{Ref: id, Target: target.ID, Reason: "shared"})
			continue
		}

		clone := target.Clone()
		clone.ID = id
		clone.Name = ""
		// A nullable reference admits null regardless of its target.
		clone.Nullable = clone.Nullable || ref.Nullable
		g.AddNode(clone)
		result.Inlined++
	}

	return result
}

// payloadSize measures how much structure inlining a node would duplicate.
func payloadSize(n *typegraph.Node) int {
	size := len(n.Properties) + len(n.Members) + len(n.TypeArgs) + len(n.EnumValues)
	if n.Element != "" {
		size++
	}
	if n.Value != "" {
		size++
	}
	return size
}
