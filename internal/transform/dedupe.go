// Package transform implements the canonicalizing passes that run between
// graph validation and schema emission: structural deduplication, reference
// inlining and nested-object flattening. Every pass mutates the graph it is
// given and reports what it did; none of them ever fails. Nodes a pass
// declines to touch are recorded as skips, not errors.
package transform

import (
	"sort"

	"github.com/apigraph/apigraph/internal/typegraph"
)

// DedupeResult describes one deduplication pass.
type DedupeResult struct {
	// Canonical maps every removed node id to the id that replaced it.
	Canonical map[typegraph.NodeID]typegraph.NodeID
	// Groups lists the equivalence groups that merged, each with the
	// canonical member first.
	Groups [][]typegraph.NodeID
	// Removed is the number of nodes dropped from the graph.
	Removed int
	// EdgesRewritten is the number of edges redirected to canonical nodes.
	EdgesRewritten int
}

// Dedupe merges structurally equivalent nodes. Nodes are grouped by
// structural signature; within a group the lowest id survives, every edge
// into the group is rewritten to it, and the rest are removed. Running the
// pass again on its own output removes nothing.
func Dedupe(g *typegraph.Graph) *DedupeResult {
	result := &DedupeResult{Canonical: make(map[typegraph.NodeID]typegraph.NodeID)}

	hasher := typegraph.NewHasher(g)
	bySig := make(map[uint64][]typegraph.NodeID)
	var sigs []uint64
	for _, id := range g.IDs() {
		sig := hasher.Signature(id)
		if _, seen := bySig[sig]; !seen {
			sigs = append(sigs, sig)
		}
		bySig[sig] = append(bySig[sig], id)
	}

	mapping := make(map[typegraph.NodeID]typegraph.NodeID)
	for _, sig := range sigs {
		group := bySig[sig]
		if len(group) < 2 {
			continue
		}
		sort.Slice(group, func(i, j int) bool {
			return naturalLess(string(group[i]), string(group[j]))
		})
		canonical := group[0]
		for _, id := range group[1:] {
			mapping[id] = canonical
		}
		result.Groups = append(result.Groups, group)
	}

	if len(mapping) == 0 {
		return result
	}

	result.EdgesRewritten = g.RewriteEdges(mapping)
	for id, canonical := range mapping {
		if g.RemoveNode(id) {
			result.Removed++
		}
		result.Canonical[id] = canonical
	}
	return result
}

// naturalLess orders ids with digit runs compared numerically, so "t9"
// sorts before "t10". Canonical selection must not depend on how many
// digits a front end padded its ids to.
func naturalLess(a, b string) bool {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		ca, cb := a[i], b[j]
		if isDigit(ca) && isDigit(cb) {
			ia := i
			for ia < len(a) && isDigit(a[ia]) {
				ia++
			}
			jb := j
			for jb < len(b) && isDigit(b[jb]) {
				jb++
			}
			na := trimZeros(a[i:ia])
			nb := trimZeros(b[j:jb])
			if len(na) != len(nb) {
				return len(na) < len(nb)
			}
			if na != nb {
				return na < nb
			}
			i, j = ia, jb
			continue
		}
		if ca != cb {
			return ca < cb
		}
		i++
		j++
	}
	return len(a)-i < len(b)-j
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func trimZeros(s string) string {
	for len(s) > 1 && s[0] == '0' {
		s = s[1:]
	}
	return s
}
