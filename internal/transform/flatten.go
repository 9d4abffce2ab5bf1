package transform

import (
	"strings"

	"github.com/apigraph/apigraph/internal/typegraph"
)

// ConflictScheme selects how a flattened property is renamed when its name
// collides with one already present on the parent.
type ConflictScheme string

const (
	// ConflictPrefix joins the owning property name and the nested name in
	// camelCase: address + city -> addressCity.
	ConflictPrefix ConflictScheme = "prefix"
	// ConflictSeparator joins the two names with a neutral separator:
	// address + city -> address_city.
	ConflictSeparator ConflictScheme = "separator"
)

// FlattenOptions bounds the flattening pass.
type FlattenOptions struct {
	// MaxDepth is how many levels of nested objects may be pulled into one
	// parent. Depth 1 merges direct children only.
	MaxDepth int
	// MaxProps caps the total property count a parent may grow to. A merge
	// that would exceed it is skipped, the parent keeps its nested shape.
	MaxProps int
	// Scheme names the conflict renaming scheme.
	Scheme ConflictScheme
	// Separator is the join string for ConflictSeparator.
	Separator string
}

// DefaultFlattenOptions returns the thresholds used when the config does not
// override them.
func DefaultFlattenOptions() FlattenOptions {
	return FlattenOptions{MaxDepth: 2, MaxProps: 32, Scheme: ConflictPrefix, Separator: "_"}
}

// FlattenResult describes one flattening pass.
type FlattenResult struct {
	// PropertiesFlattened counts nested properties merged into a parent.
	PropertiesFlattened int
	// ConflictsResolved counts merged properties that needed renaming.
	ConflictsResolved int
	SkippedCycle      int
	SkippedDepth      int
	SkippedProps      int
	// Skips lists the nodes the pass declined, with reasons.
	Skips []FlattenSkip
}

// FlattenSkip names one declined node and why it kept its nesting.
type FlattenSkip struct {
	Node   typegraph.NodeID
	Reason string // "cycle", "depth" or "props"
}

// Flatten merges the properties of nested object-typed properties into their
// owning object. Nested properties keep their name when it is free on the
// parent; a collision renames the incoming property per the configured
// scheme, and if the renamed form also collides the outer scope wins and the
// nested property is dropped. Nodes in cycles and merges that would exceed
// the caps are skipped, never errored.
func Flatten(g *typegraph.Graph, cycles *typegraph.CycleAnalysis, opts FlattenOptions) *FlattenResult {
	result := &FlattenResult{}
	if opts.MaxDepth < 1 {
		return result
	}

	for _, id := range g.IDs() {
		n, ok := g.Node(id)
		if !ok || n.Kind != typegraph.KindObject {
			continue
		}
		if cycles.InCycle(id) {
			result.SkippedCycle++
			result.Skips = append(result.Skips, FlattenSkip{Node: id, Reason: "cycle"})
			continue
		}
		flattenInto(g, cycles, n, opts, result)
	}
	return result
}

// flattenInto repeatedly merges parent's direct object-typed properties
// until MaxDepth levels have been absorbed or nothing mergeable remains.
func flattenInto(g *typegraph.Graph, cycles *typegraph.CycleAnalysis, parent *typegraph.Node, opts FlattenOptions, result *FlattenResult) {
	depth := 0
	for ; depth < opts.MaxDepth; depth++ {
		merged := false

		out := make([]typegraph.Property, 0, len(parent.Properties))
		taken := make(map[string]bool, len(parent.Properties))
		for _, p := range parent.Properties {
			taken[p.Name] = true
		}

		for i, p := range parent.Properties {
			child := resolveObject(g, p.Type)
			if child == nil {
				out = append(out, p)
				continue
			}
			if cycles.InCycle(child.ID) {
				result.SkippedCycle++
				result.Skips = append(result.Skips, FlattenSkip{Node: child.ID, Reason: "cycle"})
				out = append(out, p)
				continue
			}
			// The cap binds the parent's final property count, so the
			// projection runs against the merge output so far plus one slot
			// for each not-yet-processed property.
			remaining := len(parent.Properties) - i - 1
			if len(out)+remaining+len(child.Properties) > opts.MaxProps {
				result.SkippedProps++
				result.Skips = append(result.Skips, FlattenSkip{Node: parent.ID, Reason: "props"})
				out = append(out, p)
				continue
			}

			for _, cp := range child.Properties {
				name := cp.Name
				if taken[name] {
					name = conflictName(p.Name, cp.Name, opts)
					if taken[name] {
						// The renamed form collides too; the outer scope
						// keeps its property and the nested one is dropped.
						continue
					}
					result.ConflictsResolved++
				}
				taken[name] = true
				np := cp
				np.Name = name
				// A property of an optional nested object cannot be more
				// required than its container.
				np.Required = cp.Required && p.Required
				out = append(out, np)
				result.PropertiesFlattened++
			}
			merged = true
		}

		if !merged {
			return
		}
		parent.Properties = out
	}

	// The depth budget ran out with mergeable nesting still present.
	if hasMergeable(g, cycles, parent) {
		result.SkippedDepth++
		result.Skips = append(result.Skips, FlattenSkip{Node: parent.ID, Reason: "depth"})
	}
}

// resolveObject follows at most one reference hop and returns the object
// node behind a property type, or nil when the property is not
// object-shaped. Deeper reference chains are the inliner's job.
func resolveObject(g *typegraph.Graph, id typegraph.NodeID) *typegraph.Node {
	n, ok := g.Node(id)
	if !ok {
		return nil
	}
	if n.Kind == typegraph.KindReference {
		n, ok = g.Node(n.Target)
		if !ok {
			return nil
		}
	}
	if n.Kind != typegraph.KindObject {
		return nil
	}
	return n
}

// hasMergeable reports whether n still owns an object-typed property a
// further pass could merge.
func hasMergeable(g *typegraph.Graph, cycles *typegraph.CycleAnalysis, n *typegraph.Node) bool {
	for _, p := range n.Properties {
		child := resolveObject(g, p.Type)
		if child != nil && !cycles.InCycle(child.ID) {
			return true
		}
	}
	return false
}

// conflictName joins the owning property name and the nested property name
// per the configured scheme.
func conflictName(owner, nested string, opts FlattenOptions) string {
	if opts.Scheme == ConflictSeparator {
		sep := opts.Separator
		if sep == "" {
			sep = "_"
		}
		return owner + sep + nested
	}
	if nested == "" {
		return owner
	}
	return owner + strings.ToUpper(nested[:1]) + nested[1:]
}
