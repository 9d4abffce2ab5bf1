package typegraph

import "testing"

func buildUserGraph(g *Graph, prefix string) NodeID {
	str := g.AddNode(&Node{ID: NodeID(prefix + "str"), Kind: KindPrimitive, Primitive: "string"})
	num := g.AddNode(&Node{ID: NodeID(prefix + "num"), Kind: KindPrimitive, Primitive: "number"})
	return g.AddNode(&Node{ID: NodeID(prefix + "user"), Kind: KindObject, Name: "User", Properties: []Property{
		{Name: "id", Type: num, Required: true},
		{Name: "name", Type: str, Required: true},
	}})
}

func TestHasher_IdenticalStructuresShareSignature(t *testing.T) {
	g := New()
	a := buildUserGraph(g, "a_")
	b := buildUserGraph(g, "b_")

	h := NewHasher(g)
	if h.Signature(a) != h.Signature(b) {
		t.Error("expected structurally identical nodes to share a signature")
	}
}

func TestHasher_DeclaredNameDistinguishes(t *testing.T) {
	g := New()
	str := g.AddNode(&Node{Kind: KindPrimitive, Primitive: "string"})
	a := g.AddNode(&Node{Kind: KindObject, Name: "Cat", Properties: []Property{
		{Name: "name", Type: str, Required: true},
	}})
	b := g.AddNode(&Node{Kind: KindObject, Name: "Dog", Properties: []Property{
		{Name: "name", Type: str, Required: true},
	}})

	h := NewHasher(g)
	if h.Signature(a) == h.Signature(b) {
		t.Error("expected differently named types to have different signatures")
	}
}

func TestHasher_RequiredFlagDistinguishes(t *testing.T) {
	g := New()
	str := g.AddNode(&Node{Kind: KindPrimitive, Primitive: "string"})
	a := g.AddNode(&Node{Kind: KindObject, Properties: []Property{
		{Name: "name", Type: str, Required: true},
	}})
	b := g.AddNode(&Node{Kind: KindObject, Properties: []Property{
		{Name: "name", Type: str, Required: false},
	}})

	h := NewHasher(g)
	if h.Signature(a) == h.Signature(b) {
		t.Error("expected required flag to contribute to the signature")
	}
}

func TestHasher_GenericArgumentsDistinguish(t *testing.T) {
	g := New()
	user := buildUserGraph(g, "u_")
	str := g.AddNode(&Node{ID: "plainstr", Kind: KindPrimitive, Primitive: "string"})
	order := g.AddNode(&Node{ID: "order", Kind: KindObject, Name: "Order", Properties: []Property{
		{Name: "sku", Type: str, Required: true},
	}})

	pagedUsers := g.AddNode(&Node{Kind: KindGeneric, Name: "Paginated", TypeArgs: []NodeID{user}})
	pagedOrders := g.AddNode(&Node{Kind: KindGeneric, Name: "Paginated", TypeArgs: []NodeID{order}})
	pagedUsersAgain := g.AddNode(&Node{Kind: KindGeneric, Name: "Paginated", TypeArgs: []NodeID{user}})

	h := NewHasher(g)
	if h.Signature(pagedUsers) == h.Signature(pagedOrders) {
		t.Error("expected instantiations with different arguments to differ")
	}
	if h.Signature(pagedUsers) != h.Signature(pagedUsersAgain) {
		t.Error("expected instantiations with the same arguments to agree")
	}
}

func TestHasher_UnionMemberOrderInsignificant(t *testing.T) {
	g := New()
	str := g.AddNode(&Node{Kind: KindPrimitive, Primitive: "string"})
	num := g.AddNode(&Node{Kind: KindPrimitive, Primitive: "number"})
	ab := g.AddNode(&Node{Kind: KindUnion, Members: []NodeID{str, num}})
	ba := g.AddNode(&Node{Kind: KindUnion, Members: []NodeID{num, str}})

	h := NewHasher(g)
	if h.Signature(ab) != h.Signature(ba) {
		t.Error("expected union signature to ignore member order")
	}
}

func TestHasher_ConstraintsDistinguish(t *testing.T) {
	g := New()
	num := g.AddNode(&Node{Kind: KindPrimitive, Primitive: "number"})
	one, ten := 1.0, 10.0
	a := g.AddNode(&Node{Kind: KindObject, Properties: []Property{
		{Name: "age", Type: num, Required: true, Constraints: &Constraints{Minimum: &one}},
	}})
	b := g.AddNode(&Node{Kind: KindObject, Properties: []Property{
		{Name: "age", Type: num, Required: true, Constraints: &Constraints{Minimum: &ten}},
	}})

	h := NewHasher(g)
	if h.Signature(a) == h.Signature(b) {
		t.Error("expected differing constraints to produce differing signatures")
	}
}

func TestHasher_SelfRecursiveTypeTerminates(t *testing.T) {
	g := New()
	ref := g.AddNode(&Node{ID: "ref", Kind: KindReference, Target: "tree"})
	arr := g.AddNode(&Node{ID: "arr", Kind: KindArray, Element: ref})
	tree := g.AddNode(&Node{ID: "tree", Kind: KindObject, Name: "TreeNode", Properties: []Property{
		{Name: "children", Type: arr, Required: true},
	}})

	h := NewHasher(g)
	sig := h.Signature(tree)
	if sig == 0 {
		t.Error("expected a signature for a recursive type")
	}
	if sig != h.Signature(tree) {
		t.Error("expected repeated hashing of a recursive type to be stable")
	}
}

func TestHasher_IsomorphicCyclesShareSignature(t *testing.T) {
	buildCycle := func(g *Graph, prefix string) (NodeID, NodeID) {
		// a and b refer to each other through properties of the same shape.
		a := NodeID(prefix + "a")
		b := NodeID(prefix + "b")
		g.AddNode(&Node{ID: a, Kind: KindObject, Name: "Author", Properties: []Property{
			{Name: "book", Type: b, Required: true},
		}})
		g.AddNode(&Node{ID: b, Kind: KindObject, Name: "Book", Properties: []Property{
			{Name: "author", Type: a, Required: true},
		}})
		return a, b
	}

	g := New()
	a1, b1 := buildCycle(g, "x_")
	a2, b2 := buildCycle(g, "y_")

	h := NewHasher(g)
	// Hash in an order that interleaves the two cycles at different entry
	// points; signatures must still line up pairwise.
	sb2 := h.Signature(b2)
	sa1 := h.Signature(a1)
	sb1 := h.Signature(b1)
	sa2 := h.Signature(a2)

	if sa1 != sa2 {
		t.Error("expected isomorphic cycle members to share a signature (a side)")
	}
	if sb1 != sb2 {
		t.Error("expected isomorphic cycle members to share a signature (b side)")
	}
	if sa1 == sb1 {
		t.Error("expected the two roles of the cycle to keep distinct signatures")
	}
}

func TestHasher_MemoizedAcyclicValueStable(t *testing.T) {
	g := New()
	user := buildUserGraph(g, "")

	h := NewHasher(g)
	first := h.Signature(user)
	second := h.Signature(user)
	if first != second {
		t.Errorf("expected memoized signature to be stable, got %d then %d", first, second)
	}

	fresh := NewHasher(g)
	if fresh.Signature(user) != first {
		t.Error("expected a fresh hasher to reproduce the signature")
	}
}
