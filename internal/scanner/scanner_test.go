package scanner

import (
	"context"
	"strings"
	"testing"

	"github.com/apigraph/apigraph/internal/endpoint"
	"github.com/apigraph/apigraph/internal/queryshape"
	"github.com/apigraph/apigraph/internal/typegraph"
)

func scanFixture(t *testing.T) *Result {
	t.Helper()
	res, err := Scan(context.Background(), []string{"."}, "testdata/itemsapi")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	return res
}

// resolve follows reference nodes to their target.
func resolve(t *testing.T, g *typegraph.Graph, id typegraph.NodeID) *typegraph.Node {
	t.Helper()
	for i := 0; i < 10; i++ {
		n, ok := g.Node(id)
		if !ok {
			t.Fatalf("dangling node %q", id)
		}
		if n.Kind != typegraph.KindReference {
			return n
		}
		id = n.Target
	}
	t.Fatalf("reference chain too long at %q", id)
	return nil
}

func operation(t *testing.T, res *Result, id string) *endpoint.Operation {
	t.Helper()
	for _, ctrl := range res.Controllers {
		for i := range ctrl.Operations {
			if ctrl.Operations[i].ID == id {
				return &ctrl.Operations[i]
			}
		}
	}
	t.Fatalf("operation %q not found", id)
	return nil
}

func TestScanControllerDirective(t *testing.T) {
	res := scanFixture(t)

	if len(res.Controllers) != 1 {
		t.Fatalf("expected 1 controller, got %d", len(res.Controllers))
	}
	ctrl := res.Controllers[0]
	if ctrl.ID != "ItemsController" || ctrl.BasePath != "/items" {
		t.Fatalf("controller = %+v", ctrl)
	}
	if len(ctrl.Operations) != 5 {
		t.Fatalf("expected 5 operations, got %d", len(ctrl.Operations))
	}
}

func TestScanMethodDirectives(t *testing.T) {
	res := scanFixture(t)

	get := operation(t, res, "ItemsController.Get")
	if get.Method != "GET" || get.Path != "/{id}" {
		t.Fatalf("Get = %s %s", get.Method, get.Path)
	}
	create := operation(t, res, "ItemsController.Create")
	if create.Method != "POST" || create.Path != "/" {
		t.Fatalf("Create = %s %s", create.Method, create.Path)
	}
}

func TestScanParameterMarkers(t *testing.T) {
	res := scanFixture(t)

	get := operation(t, res, "ItemsController.Get")
	// ctx is dropped; id stays unmarked; expand carries the query marker.
	if len(get.Parameters) != 2 {
		t.Fatalf("Get parameters = %+v", get.Parameters)
	}
	if get.Parameters[0].Name != "id" || get.Parameters[0].Source != endpoint.SourceUnspecified {
		t.Fatalf("id parameter = %+v", get.Parameters[0])
	}
	if get.Parameters[1].Name != "expand" || get.Parameters[1].Source != endpoint.SourceQuery {
		t.Fatalf("expand parameter = %+v", get.Parameters[1])
	}
	if n := resolve(t, res.Graph, get.Parameters[1].Type); n.Primitive != "boolean" {
		t.Fatalf("expand type = %+v", n)
	}

	create := operation(t, res, "ItemsController.Create")
	if create.Parameters[0].Source != endpoint.SourceBody {
		t.Fatalf("input parameter = %+v", create.Parameters[0])
	}
	trace := create.Parameters[1]
	if trace.Source != endpoint.SourceHeader || !trace.Optional {
		t.Fatalf("trace parameter = %+v", trace)
	}

	search := operation(t, res, "ItemsController.Search")
	if search.Parameters[0].Source != endpoint.SourceQuery || search.Parameters[0].Style != endpoint.StyleDeepObject {
		t.Fatalf("filter parameter = %+v", search.Parameters[0])
	}
}

func TestScanStructConversion(t *testing.T) {
	res := scanFixture(t)

	get := operation(t, res, "ItemsController.Get")
	item := resolve(t, res.Graph, get.Response)
	if item.Kind != typegraph.KindObject || item.Name != "Item" {
		t.Fatalf("response node = %+v", item)
	}

	props := make(map[string]typegraph.Property)
	for _, p := range item.Properties {
		props[p.Name] = p
	}
	// Secret is json:"-" and hidden is unexported.
	if len(props) != 5 {
		t.Fatalf("Item properties = %v", item.Properties)
	}
	if !props["id"].Required || !props["name"].Required {
		t.Fatal("id and name must be required")
	}
	if props["tags"].Required {
		t.Fatal("omitempty field must be optional")
	}
	if props["owner"].Required {
		t.Fatal("pointer field must be optional")
	}
	if n := resolve(t, res.Graph, props["meta"].Type); n.Kind != typegraph.KindRecord {
		t.Fatalf("meta = %+v", n)
	}
	if n := resolve(t, res.Graph, props["tags"].Type); n.Kind != typegraph.KindArray {
		t.Fatalf("tags = %+v", n)
	}
}

func TestScanEnumConstants(t *testing.T) {
	res := scanFixture(t)

	list := operation(t, res, "ItemsController.List")
	filter := resolve(t, res.Graph, list.Parameters[0].Type)
	var roleID typegraph.NodeID
	for _, p := range filter.Properties {
		if p.Name == "role" {
			roleID = p.Type
		}
	}
	role := resolve(t, res.Graph, roleID)
	if role.Kind != typegraph.KindEnum || role.Name != "Role" {
		t.Fatalf("role node = %+v", role)
	}
	if len(role.EnumValues) != 2 {
		t.Fatalf("role values = %v", role.EnumValues)
	}
}

func TestScanEmbeddedStructPromotion(t *testing.T) {
	res := scanFixture(t)

	audit := operation(t, res, "ItemsController.Audit")
	node := resolve(t, res.Graph, audit.Response)
	if node.Name != "AuditedItem" {
		t.Fatalf("response = %+v", node)
	}
	names := make(map[string]bool)
	for _, p := range node.Properties {
		names[p.Name] = true
	}
	if !names["createdAt"] || !names["id"] || !names["name"] {
		t.Fatalf("embedded fields not promoted: %v", node.Properties)
	}
}

func TestScanRecursiveTypeStaysClosed(t *testing.T) {
	res := scanFixture(t)

	// User.Friends refers back to User through a reference node.
	if err := res.Graph.ValidateRefs(); err != nil {
		t.Fatalf("graph not closed: %v", err)
	}

	var user *typegraph.Node
	for _, id := range res.Graph.IDs() {
		n, _ := res.Graph.Node(id)
		if n.Name == "User" {
			user = n
		}
	}
	if user == nil {
		t.Fatal("User node missing")
	}
	for _, p := range user.Properties {
		if p.Name != "friends" {
			continue
		}
		arr := resolve(t, res.Graph, p.Type)
		if arr.Kind != typegraph.KindArray {
			t.Fatalf("friends = %+v", arr)
		}
		if elem := resolve(t, res.Graph, arr.Element); elem != user {
			t.Fatalf("friends element should resolve back to User, got %+v", elem)
		}
	}
}

func TestScanCallGraphShapeDetection(t *testing.T) {
	res := scanFixture(t)

	list := operation(t, res, "ItemsController.List")
	if list.HandlerID == "" {
		t.Fatal("List has no handler id")
	}

	an := queryshape.NewAnalyzer(res.Calls, 0)
	r := an.Analyze(list.HandlerID)
	if !r.Detected {
		t.Fatalf("shape not detected: %+v", r)
	}
	if r.Shape.Model != "Item" {
		t.Fatalf("model = %q", r.Shape.Model)
	}
	if strings.Join(r.Shape.Fields, ",") != "id,name" {
		t.Fatalf("fields = %v", r.Shape.Fields)
	}
	if strings.Join(r.Shape.Relations, ",") != "owner" {
		t.Fatalf("relations = %v", r.Shape.Relations)
	}
	if !r.Shape.Paginated {
		t.Fatal("expected paginated shape")
	}
	// The chain walked handler -> service method.
	if len(r.Chain) != 2 {
		t.Fatalf("chain = %v", r.Chain)
	}
}

func TestScanOpaqueHandlerDegrades(t *testing.T) {
	res := scanFixture(t)

	get := operation(t, res, "ItemsController.Get")
	an := queryshape.NewAnalyzer(res.Calls, 0)
	r := an.Analyze(get.HandlerID)
	if r.Detected {
		t.Fatal("literal-returning handler must not detect a shape")
	}
	if r.Reason != "unclassified" {
		t.Fatalf("reason = %q", r.Reason)
	}
}

func TestScanRejectsUnknownDirective(t *testing.T) {
	_, err := Scan(context.Background(), nil, "")
	if err == nil {
		t.Fatal("expected error for empty patterns")
	}
}
