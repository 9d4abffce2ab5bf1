package queryshape

import "testing"

func chainGraph(length int) CallGraph {
	g := CallGraph{}
	for i := 0; i < length; i++ {
		g[fnName(i)] = &Body{Kind: BodyCall, Targets: []string{fnName(i + 1)}}
	}
	g[fnName(length)] = &Body{Kind: BodyQuery, Query: &Shape{
		Model:     "User",
		Fields:    []string{"id", "name"},
		Relations: []string{"posts"},
		Paginated: true,
	}}
	return g
}

func fnName(i int) string {
	return "svc.fn" + string(rune('a'+i))
}

func TestAnalyze_ResolvesDelegationChain(t *testing.T) {
	a := NewAnalyzer(chainGraph(3), DefaultMaxDepth)
	r := a.Analyze(fnName(0))

	if !r.Detected {
		t.Fatalf("expected detection, got reason %q", r.Reason)
	}
	if r.Shape.Model != "User" || !r.Shape.Paginated {
		t.Errorf("unexpected shape: %+v", r.Shape)
	}
	if len(r.Chain) != 4 {
		t.Errorf("expected 4 functions in the chain, got %v", r.Chain)
	}
}

func TestAnalyze_ReturnsIdenticalPointerFromCache(t *testing.T) {
	a := NewAnalyzer(chainGraph(2), DefaultMaxDepth)
	first := a.Analyze(fnName(0))
	second := a.Analyze(fnName(0))

	if first != second {
		t.Error("expected reference-identical result for repeated analysis of one site")
	}
}

func TestAnalyze_MaxDepthDegradesWithoutError(t *testing.T) {
	a := NewAnalyzer(chainGraph(10), 3)
	r := a.Analyze(fnName(0))

	if r.Detected {
		t.Fatal("expected detection to fail past the depth limit")
	}
	if r.Reason != "max-depth" {
		t.Errorf("expected max-depth reason, got %q", r.Reason)
	}
}

func TestAnalyze_DynamicDispatchDegrades(t *testing.T) {
	g := CallGraph{
		"handler": {Kind: BodyCall, Targets: []string{"svc.a", "svc.b"}},
	}
	a := NewAnalyzer(g, DefaultMaxDepth)
	r := a.Analyze("handler")

	if r.Detected || r.Reason != "dynamic-dispatch" {
		t.Errorf("expected dynamic-dispatch degradation, got %+v", r)
	}
}

func TestAnalyze_OpaqueTerminalDegrades(t *testing.T) {
	g := CallGraph{
		"handler":    {Kind: BodyCall, Targets: []string{"svc.helper"}},
		"svc.helper": {Kind: BodyOpaque},
	}
	a := NewAnalyzer(g, DefaultMaxDepth)
	r := a.Analyze("handler")

	if r.Detected || r.Reason != "unclassified" {
		t.Errorf("expected unclassified degradation, got %+v", r)
	}
}

func TestAnalyze_UnknownTargetDegrades(t *testing.T) {
	a := NewAnalyzer(CallGraph{}, DefaultMaxDepth)
	r := a.Analyze("missing")

	if r.Detected || r.Reason != "unknown-target" {
		t.Errorf("expected unknown-target degradation, got %+v", r)
	}
}

func TestStats_CountsDetectedAndUndetected(t *testing.T) {
	g := chainGraph(1)
	g["broken"] = &Body{Kind: BodyOpaque}
	a := NewAnalyzer(g, DefaultMaxDepth)

	a.Analyze(fnName(0))
	a.Analyze("broken")
	a.Analyze("broken") // cached, must not double count

	detected, undetected := a.Stats()
	if detected != 1 || undetected != 1 {
		t.Errorf("expected 1 detected / 1 undetected, got %d / %d", detected, undetected)
	}
}
