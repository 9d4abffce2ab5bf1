package pipeline

import (
	"bytes"
	"errors"
	"testing"

	"github.com/apigraph/apigraph/internal/diagnostic"
	"github.com/apigraph/apigraph/internal/emit"
	"github.com/apigraph/apigraph/internal/endpoint"
	"github.com/apigraph/apigraph/internal/manifest"
	"github.com/apigraph/apigraph/internal/queryshape"
	"github.com/apigraph/apigraph/internal/schema"
	"github.com/apigraph/apigraph/internal/typegraph"
)

// compileInput builds a small but representative compilation: duplicated
// Item objects, a recursive Category, one controller with list/get/create
// operations, and a delegating handler chain.
func compileInput() Input {
	g := typegraph.New()
	g.AddNode(&typegraph.Node{ID: "t1", Kind: typegraph.KindPrimitive, Primitive: "string"})
	g.AddNode(&typegraph.Node{ID: "t2", Kind: typegraph.KindObject, Name: "Item", Properties: []typegraph.Property{
		{Name: "id", Type: "t1", Required: true},
		{Name: "name", Type: "t1", Required: true},
	}})
	// Structural duplicate of Item, as a sloppy scanner would produce.
	g.AddNode(&typegraph.Node{ID: "t3", Kind: typegraph.KindObject, Name: "Item", Properties: []typegraph.Property{
		{Name: "id", Type: "t1", Required: true},
		{Name: "name", Type: "t1", Required: true},
	}})
	g.AddNode(&typegraph.Node{ID: "t4", Kind: typegraph.KindArray, Element: "t3"})
	// Recursive category: Category.parent -> ref -> Category.
	g.AddNode(&typegraph.Node{ID: "t5", Kind: typegraph.KindReference, Target: "t6"})
	g.AddNode(&typegraph.Node{ID: "t6", Kind: typegraph.KindObject, Name: "Category", Properties: []typegraph.Property{
		{Name: "name", Type: "t1", Required: true},
		{Name: "parent", Type: "t5", Required: false},
	}})

	controllers := []endpoint.Controller{{
		ID:       "items",
		BasePath: "/items",
		Operations: []endpoint.Operation{
			{
				ID: "items.list", Method: "GET", Path: "/items",
				Response: "t4", HandlerID: "items.list",
			},
			{
				ID: "items.get", Method: "GET", Path: "/items/{id}",
				Parameters: []endpoint.Parameter{
					{Name: "id", Type: "t1"},
					{Name: "filter", Type: "t1", Optional: true},
				},
				Response: "t2",
			},
			{
				ID: "items.create", Method: "POST", Path: "/items",
				Parameters: []endpoint.Parameter{{Name: "payload", Type: "t2"}},
				Response:   "t2",
			},
		},
	}}

	calls := queryshape.CallGraph{
		"items.list": {Kind: queryshape.BodyCall, Targets: []string{"svc.list"}},
		"svc.list": {Kind: queryshape.BodyQuery, Query: &queryshape.Shape{
			Model: "Item", Fields: []string{"id", "name"}, Paginated: true,
		}},
	}

	return Input{Graph: g, Controllers: controllers, Calls: calls}
}

func TestRun_FullCompilation(t *testing.T) {
	coll := diagnostic.NewCollector(false, false)
	result, err := Run(compileInput(), DefaultOptions(), coll)
	if err != nil {
		t.Fatalf("compilation failed: %v", err)
	}

	if result.Stats.DuplicatesRemoved != 1 {
		t.Errorf("expected the duplicated Item removed, got %d", result.Stats.DuplicatesRemoved)
	}
	if result.Stats.ShapesDetected != 1 {
		t.Errorf("expected 1 detected shape, got %d", result.Stats.ShapesDetected)
	}
	if result.Schema.ComponentSchemas["Item"] == nil {
		t.Error("expected Item component in schema document")
	}
	if result.Schema.ComponentSchemas["Category"] == nil {
		t.Error("expected recursive Category component in schema document")
	}

	// The detected pagination shape wraps the list response.
	list := result.Schema.OperationSchemas["items.list"]
	if list.Response == nil || list.Response.Properties["items"] == nil {
		t.Errorf("expected paginated list response, got %+v", list.Response)
	}

	// The body classification reached the schema document.
	create := result.Schema.OperationSchemas["items.create"]
	if create.Request == nil {
		t.Error("expected create operation to carry a request schema")
	}

	if len(result.Manifest.Controllers) != 1 || len(result.Manifest.Controllers[0].Operations) != 3 {
		t.Fatalf("unexpected manifest shape: %+v", result.Manifest)
	}
}

func TestRun_DedupedOperationIDsFollowCanonical(t *testing.T) {
	in := compileInput()
	// An operation declared against the duplicate node directly: dedupe
	// removes that node, so the response and parameter ids must follow the
	// surviving Item.
	in.Controllers[0].Operations = append(in.Controllers[0].Operations, endpoint.Operation{
		ID: "items.clone", Method: "POST", Path: "/items/clone",
		Parameters: []endpoint.Parameter{{Name: "template", Type: "t3"}},
		Response:   "t3",
	})

	coll := diagnostic.NewCollector(false, false)
	result, err := Run(in, DefaultOptions(), coll)
	if err != nil {
		t.Fatalf("compilation failed: %v", err)
	}

	clone := result.Schema.OperationSchemas["items.clone"]
	if clone.Response == nil || clone.Response.Ref != schema.RefPrefix+"Item" {
		t.Errorf("expected response to reference the surviving Item, got %+v", clone.Response)
	}
	if clone.Request == nil || clone.Request.Ref != schema.RefPrefix+"Item" {
		t.Errorf("expected request to reference the surviving Item, got %+v", clone.Request)
	}

	var op *manifest.Operation
	for i, o := range result.Manifest.Controllers[0].Operations {
		if o.OperationID == "items.clone" {
			op = &result.Manifest.Controllers[0].Operations[i]
		}
	}
	if op == nil {
		t.Fatal("expected items.clone in manifest")
	}
	if len(op.Responses) != 1 || op.Responses[0].SchemaRef != "Item" {
		t.Errorf("expected manifest response ref Item, got %+v", op.Responses)
	}
	if len(op.ArgumentBindings) != 1 || op.ArgumentBindings[0].SchemaRef != "Item" {
		t.Errorf("expected manifest body binding ref Item, got %+v", op.ArgumentBindings)
	}
}

func TestRun_RecursiveTypeSurvivesTransforms(t *testing.T) {
	coll := diagnostic.NewCollector(false, false)
	in := compileInput()
	opts := DefaultOptions()
	opts.Flatten = true

	result, err := Run(in, opts, coll)
	if err != nil {
		t.Fatalf("compilation failed: %v", err)
	}
	comp := result.Schema.ComponentSchemas["Category"]
	parent := comp.Properties["parent"]
	if parent == nil || !parent.IsRef() {
		t.Errorf("expected cyclic parent kept as reference, got %+v", parent)
	}
}

func TestRun_StructuralErrorAborts(t *testing.T) {
	g := typegraph.New()
	g.AddNode(&typegraph.Node{ID: "t1", Kind: typegraph.KindObject, Name: "Broken", Properties: []typegraph.Property{
		{Name: "ghost", Type: "t99", Required: true},
	}})

	coll := diagnostic.NewCollector(false, false)
	_, err := Run(Input{Graph: g}, DefaultOptions(), coll)
	if err == nil {
		t.Fatal("expected dangling reference to abort compilation")
	}
	var structural *diagnostic.StructuralError
	if !errors.As(err, &structural) {
		t.Errorf("expected structural error, got %T", err)
	}
}

func TestRun_UndetectedShapeDegradesNotFails(t *testing.T) {
	in := compileInput()
	in.Calls["svc.list"] = &queryshape.Body{Kind: queryshape.BodyOpaque}

	coll := diagnostic.NewCollector(false, false)
	result, err := Run(in, DefaultOptions(), coll)
	if err != nil {
		t.Fatalf("expected degraded compilation to succeed, got %v", err)
	}
	if result.Stats.ShapesUndetected != 1 {
		t.Errorf("expected 1 undetected shape, got %d", result.Stats.ShapesUndetected)
	}
	if coll.CountByCategory(diagnostic.CategoryDegradedDetection) != 1 {
		t.Error("expected a degraded-detection diagnostic")
	}
	// Fallback: the declared array response, not a pagination envelope.
	list := result.Schema.OperationSchemas["items.list"]
	if list.Response == nil || list.Response.Type != "array" {
		t.Errorf("expected declared array fallback, got %+v", list.Response)
	}
}

func TestRun_DeterministicArtifactBytes(t *testing.T) {
	first, err := Run(compileInput(), DefaultOptions(), nil)
	if err != nil {
		t.Fatalf("compilation failed: %v", err)
	}
	second, err := Run(compileInput(), DefaultOptions(), nil)
	if err != nil {
		t.Fatalf("compilation failed: %v", err)
	}

	a, err := emit.Marshal(first.Schema)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	b, err := emit.Marshal(second.Schema)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("expected identical schema bytes across runs")
	}

	ma, _ := emit.Marshal(first.Manifest)
	mb, _ := emit.Marshal(second.Manifest)
	if !bytes.Equal(ma, mb) {
		t.Error("expected identical manifest bytes across runs")
	}
}
