package typegraph

import (
	"fmt"

	"github.com/apigraph/apigraph/internal/diagnostic"
)

// Graph is the arena that owns every node of one compilation. Nodes are
// addressed by id; iteration follows insertion order so passes over the
// graph are deterministic. A Graph is owned by exactly one compilation and
// is not safe for concurrent mutation.
type Graph struct {
	nodes map[NodeID]*Node
	order []NodeID
	seq   int
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[NodeID]*Node)}
}

// AddNode inserts n and returns its id. A node with an empty ID is assigned
// the next sequential one ("n1", "n2", ...). Re-adding an existing id
// replaces that node's payload in place; insertion order is unchanged.
func (g *Graph) AddNode(n *Node) NodeID {
	if n.ID == "" {
		g.seq++
		n.ID = NodeID(fmt.Sprintf("n%d", g.seq))
	}
	if _, exists := g.nodes[n.ID]; !exists {
		g.order = append(g.order, n.ID)
	}
	g.nodes[n.ID] = n
	return n.ID
}

// Node returns the node addressed by id.
func (g *Graph) Node(id NodeID) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Len returns the number of live nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// IDs returns the live node ids in insertion order.
func (g *Graph) IDs() []NodeID {
	out := make([]NodeID, 0, len(g.nodes))
	for _, id := range g.order {
		if _, ok := g.nodes[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// EdgesOf returns the ids a node refers to, in payload order: properties,
// array element, record value, union members, reference target, type
// arguments. Missing nodes have no edges.
func (g *Graph) EdgesOf(id NodeID) []NodeID {
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	var out []NodeID
	for _, p := range n.Properties {
		out = append(out, p.Type)
	}
	if n.Element != "" {
		out = append(out, n.Element)
	}
	if n.Value != "" {
		out = append(out, n.Value)
	}
	out = append(out, n.Members...)
	if n.Target != "" {
		out = append(out, n.Target)
	}
	out = append(out, n.TypeArgs...)
	return out
}

// RemoveNode deletes a node from the arena. Edges pointing at the removed
// id become dangling; callers rewrite them first.
func (g *Graph) RemoveNode(id NodeID) bool {
	if _, ok := g.nodes[id]; !ok {
		return false
	}
	delete(g.nodes, id)
	return true
}

// RewriteEdges replaces every edge whose target appears in mapping with the
// mapped id, across all nodes. Chained mappings (a→b, b→c) are followed to
// their final target. Returns the number of edges rewritten.
func (g *Graph) RewriteEdges(mapping map[NodeID]NodeID) int {
	resolve := func(id NodeID) (NodeID, bool) {
		to, ok := mapping[id]
		if !ok {
			return id, false
		}
		for {
			next, more := mapping[to]
			if !more {
				return to, true
			}
			to = next
		}
	}

	rewritten := 0
	for _, id := range g.order {
		n, ok := g.nodes[id]
		if !ok {
			continue
		}
		for i := range n.Properties {
			if to, ok := resolve(n.Properties[i].Type); ok {
				n.Properties[i].Type = to
				rewritten++
			}
		}
		if to, ok := resolve(n.Element); ok && n.Element != "" {
			n.Element = to
			rewritten++
		}
		if to, ok := resolve(n.Value); ok && n.Value != "" {
			n.Value = to
			rewritten++
		}
		for i := range n.Members {
			if to, ok := resolve(n.Members[i]); ok {
				n.Members[i] = to
				rewritten++
			}
		}
		if to, ok := resolve(n.Target); ok && n.Target != "" {
			n.Target = to
			rewritten++
		}
		for i := range n.TypeArgs {
			if to, ok := resolve(n.TypeArgs[i]); ok {
				n.TypeArgs[i] = to
				rewritten++
			}
		}
	}
	return rewritten
}

// ValidateRefs checks that the graph is closed under reference resolution
// and free of direct self-containment. A dangling edge or a node declaring
// itself as one of its own properties is a structural error naming the
// offending node.
func (g *Graph) ValidateRefs() error {
	for _, id := range g.IDs() {
		n := g.nodes[id]
		for _, edge := range g.EdgesOf(id) {
			if _, ok := g.nodes[edge]; !ok {
				return diagnostic.NodeError(string(id), "reference to unknown node %q", edge)
			}
		}
		if n.Kind == KindObject {
			for _, p := range n.Properties {
				if p.Type == id {
					return diagnostic.NodeError(string(id),
						"type directly contains itself as property %q", p.Name)
				}
			}
		}
		if n.Kind == KindReference && n.Target == id {
			return diagnostic.NodeError(string(id), "reference targets itself")
		}
	}
	return nil
}
