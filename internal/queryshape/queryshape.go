// Package queryshape infers the effective result shape of handlers that
// delegate query construction to service-layer helpers. The front end hands
// in a symbolic call graph; the analyzer follows named calls up to a depth
// limit and classifies the terminal expression. Detection is best-effort:
// every failure mode yields a not-detected result, never an error.
package queryshape

// BodyKind classifies what a function body does, as far as the front end
// could tell statically.
type BodyKind string

const (
	// BodyCall delegates to one or more named targets. More than one
	// target means the dispatch is dynamic and analysis gives up.
	BodyCall BodyKind = "call"
	// BodyQuery terminates in a recognized query-construction pattern.
	BodyQuery BodyKind = "query"
	// BodyOpaque is anything the front end could not classify.
	BodyOpaque BodyKind = "opaque"
)

// Body is the symbolic description of one function body.
type Body struct {
	Kind BodyKind

	// Targets are the callee ids for BodyCall.
	Targets []string

	// Query is the terminal query description for BodyQuery.
	Query *Shape
}

// CallGraph maps stable function ids to their symbolic bodies. Ids are
// front-end-defined; the Go scanner uses package-qualified function names.
type CallGraph map[string]*Body

// Shape describes an inferred query result: the queried model, the selected
// fields, the included relations, and whether the result is paginated.
type Shape struct {
	Model     string   `json:"model"`
	Fields    []string `json:"fields,omitempty"`
	Relations []string `json:"relations,omitempty"`
	Paginated bool     `json:"paginated,omitempty"`
}

// Result is the outcome of analyzing one call site. Detected=false carries a
// Reason naming the limit that was hit; the operation still compiles and
// falls back to its declared return type.
type Result struct {
	Detected bool   `json:"detected"`
	Reason   string `json:"reason,omitempty"` // "max-depth", "dynamic-dispatch", "unclassified", "unknown-target"
	Shape    *Shape `json:"shape,omitempty"`
	// Chain lists the function ids the analysis walked through, in order.
	Chain []string `json:"chain,omitempty"`
}

// Analyzer resolves call sites against one call graph. Results are memoized
// per analyzer: analyzing the same site twice returns the identical *Result
// pointer, so callers may use pointer comparison as a cheap re-analysis
// check. An analyzer belongs to one compilation run.
type Analyzer struct {
	graph    CallGraph
	maxDepth int
	memo     map[string]*Result
}

// DefaultMaxDepth bounds the call chain when the config does not override it.
const DefaultMaxDepth = 8

// NewAnalyzer creates an analyzer over graph. maxDepth < 1 falls back to
// DefaultMaxDepth.
func NewAnalyzer(graph CallGraph, maxDepth int) *Analyzer {
	if maxDepth < 1 {
		maxDepth = DefaultMaxDepth
	}
	return &Analyzer{graph: graph, maxDepth: maxDepth, memo: make(map[string]*Result)}
}

// Analyze resolves the shape reachable from the named call site.
func (a *Analyzer) Analyze(site string) *Result {
	if r, ok := a.memo[site]; ok {
		return r
	}
	r := a.walk(site)
	a.memo[site] = r
	return r
}

// Stats reports how many analyzed sites detected a shape and how many
// degraded.
func (a *Analyzer) Stats() (detected, undetected int) {
	for _, r := range a.memo {
		if r.Detected {
			detected++
		} else {
			undetected++
		}
	}
	return detected, undetected
}

func (a *Analyzer) walk(site string) *Result {
	var chain []string
	current := site
	for depth := 0; depth < a.maxDepth; depth++ {
		body, ok := a.graph[current]
		if !ok {
			return &Result{Reason: "unknown-target", Chain: chain}
		}
		chain = append(chain, current)

		switch body.Kind {
		case BodyQuery:
			if body.Query == nil {
				return &Result{Reason: "unclassified", Chain: chain}
			}
			return &Result{Detected: true, Shape: body.Query, Chain: chain}
		case BodyCall:
			if len(body.Targets) != 1 {
				return &Result{Reason: "dynamic-dispatch", Chain: chain}
			}
			current = body.Targets[0]
		default:
			return &Result{Reason: "unclassified", Chain: chain}
		}
	}
	return &Result{Reason: "max-depth", Chain: chain}
}
