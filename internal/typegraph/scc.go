package typegraph

// CycleAnalysis reports the cyclic structure of a graph: every strongly
// connected component with two or more nodes, plus single-node self loops.
// Transforms consult it before touching a node; the analysis itself never
// fails and never mutates the graph.
type CycleAnalysis struct {
	// SCCs lists strongly connected components of size >= 2, each in
	// discovery order, components ordered by completion.
	SCCs [][]NodeID
	// Cycles lists every cycle group: the multi-node SCCs plus any
	// single node with an edge to itself.
	Cycles [][]NodeID
	// LargestSCCSize is the node count of the biggest component (0 when
	// the graph is acyclic).
	LargestSCCSize int

	inCycle map[NodeID]bool
}

// InCycle reports whether id participates in any cycle.
func (a *CycleAnalysis) InCycle(id NodeID) bool {
	return a.inCycle[id]
}

// HasCycles reports whether the graph contains at least one cycle.
func (a *CycleAnalysis) HasCycles() bool {
	return len(a.Cycles) > 0
}

// NodesInCycles returns how many distinct nodes sit inside cycles.
func (a *CycleAnalysis) NodesInCycles() int {
	return len(a.inCycle)
}

// tarjanFrame is one suspended node on the explicit DFS stack.
type tarjanFrame struct {
	id    NodeID
	edges []NodeID
	next  int
}

// AnalyzeCycles runs Tarjan's strongly-connected-components algorithm over
// the graph in O(nodes + edges). The DFS stack is explicit, so deeply
// nested type chains cannot overflow the goroutine stack. Dangling edges
// are ignored here; ValidateRefs owns reporting them.
func AnalyzeCycles(g *Graph) *CycleAnalysis {
	analysis := &CycleAnalysis{inCycle: make(map[NodeID]bool)}

	index := make(map[NodeID]int, g.Len())
	lowlink := make(map[NodeID]int, g.Len())
	onStack := make(map[NodeID]bool, g.Len())
	var stack []NodeID
	var frames []tarjanFrame
	counter := 0

	for _, root := range g.IDs() {
		if _, seen := index[root]; seen {
			continue
		}

		index[root] = counter
		lowlink[root] = counter
		counter++
		stack = append(stack, root)
		onStack[root] = true
		frames = append(frames[:0], tarjanFrame{id: root, edges: g.EdgesOf(root)})

		for len(frames) > 0 {
			f := &frames[len(frames)-1]

			if f.next < len(f.edges) {
				child := f.edges[f.next]
				f.next++
				if _, ok := g.Node(child); !ok {
					continue
				}
				if _, seen := index[child]; !seen {
					index[child] = counter
					lowlink[child] = counter
					counter++
					stack = append(stack, child)
					onStack[child] = true
					frames = append(frames, tarjanFrame{id: child, edges: g.EdgesOf(child)})
				} else if onStack[child] && index[child] < lowlink[f.id] {
					lowlink[f.id] = index[child]
				}
				continue
			}

			done := *f
			frames = frames[:len(frames)-1]
			if len(frames) > 0 {
				parent := frames[len(frames)-1].id
				if lowlink[done.id] < lowlink[parent] {
					lowlink[parent] = lowlink[done.id]
				}
			}

			if lowlink[done.id] != index[done.id] {
				continue
			}

			// done.id is the root of a component; pop it off the node stack.
			var comp []NodeID
			for {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[top] = false
				comp = append(comp, top)
				if top == done.id {
					break
				}
			}
			// Popping reverses discovery order; flip it back.
			for i, j := 0, len(comp)-1; i < j; i, j = i+1, j-1 {
				comp[i], comp[j] = comp[j], comp[i]
			}

			cyclic := len(comp) >= 2
			if !cyclic {
				for _, edge := range g.EdgesOf(comp[0]) {
					if edge == comp[0] {
						cyclic = true
						break
					}
				}
			}
			if !cyclic {
				continue
			}

			if len(comp) >= 2 {
				analysis.SCCs = append(analysis.SCCs, comp)
			}
			analysis.Cycles = append(analysis.Cycles, comp)
			for _, id := range comp {
				analysis.inCycle[id] = true
			}
			if len(comp) > analysis.LargestSCCSize {
				analysis.LargestSCCSize = len(comp)
			}
		}
	}

	return analysis
}
