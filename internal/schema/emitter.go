package schema

import (
	"fmt"
	"sort"

	"github.com/dlclark/regexp2"

	"github.com/apigraph/apigraph/internal/diagnostic"
	"github.com/apigraph/apigraph/internal/queryshape"
	"github.com/apigraph/apigraph/internal/typegraph"
)

// Options configures schema emission.
type Options struct {
	// WrapperTypes names generic declarations treated as transparent
	// wrappers; a single-argument instantiation of one unwraps to its
	// payload argument.
	WrapperTypes []string
}

// DefaultWrapperTypes is the wrapper set used when the config does not
// override it.
var DefaultWrapperTypes = []string{"Promise", "Task", "Future", "Observable"}

// Emitter converts graph nodes into schemas, registering named nodes as
// components referenced via $ref. One emitter serves one compilation run;
// the graph must not change underneath it.
type Emitter struct {
	g        *typegraph.Graph
	wrappers map[string]bool
	coll     *diagnostic.Collector

	components map[string]*Schema
	// names maps a node to its component name once registered; taken is the
	// reverse set, used to keep minted names unique.
	names map[typegraph.NodeID]string
	taken map[string]bool
	// building tracks anonymous nodes whose inline schema is mid-build;
	// re-entering one means the node sits on a cycle.
	building map[typegraph.NodeID]bool

	operations map[string]OperationSchemas
}

// NewEmitter creates an emitter over g. The collector receives
// constraint-validation warnings and may be nil.
func NewEmitter(g *typegraph.Graph, opts Options, coll *diagnostic.Collector) *Emitter {
	wrappers := opts.WrapperTypes
	if wrappers == nil {
		wrappers = DefaultWrapperTypes
	}
	set := make(map[string]bool, len(wrappers))
	for _, w := range wrappers {
		set[w] = true
	}
	return &Emitter{
		g:          g,
		wrappers:   set,
		coll:       coll,
		components: make(map[string]*Schema),
		names:      make(map[typegraph.NodeID]string),
		taken:      make(map[string]bool),
		building:   make(map[typegraph.NodeID]bool),
		operations: make(map[string]OperationSchemas),
	}
}

// Document returns the emitted artifact: every component registered so far
// plus the per-operation schemas added with AddOperation.
func (e *Emitter) Document() *Document {
	return &Document{ComponentSchemas: e.components, OperationSchemas: e.operations}
}

// AddOperation records one operation's request and response schemas.
// requestID may be empty for body-less operations; shape, when detected,
// refines the response.
func (e *Emitter) AddOperation(opID string, requestID, responseID typegraph.NodeID, shape *queryshape.Shape) {
	var op OperationSchemas
	if requestID != "" {
		op.Request = e.SchemaFor(requestID)
	}
	if responseID != "" {
		op.Response = e.ResponseSchema(responseID, shape)
	}
	e.operations[opID] = op
}

// Resolve follows reference chains and unwraps single-argument wrapper
// generics, returning the terminal node. Returns nil for dangling ids; a
// looping chain returns its last distinct node.
func (e *Emitter) Resolve(id typegraph.NodeID) *typegraph.Node {
	n, _ := e.resolve(id)
	return n
}

// resolve is Resolve plus the nullability accumulated along the chain: a
// nullable reference to a non-nullable target still admits null.
func (e *Emitter) resolve(id typegraph.NodeID) (*typegraph.Node, bool) {
	nullable := false
	seen := make(map[typegraph.NodeID]bool)
	for {
		n, ok := e.g.Node(id)
		if !ok {
			return nil, nullable
		}
		nullable = nullable || n.Nullable
		if seen[id] {
			return n, nullable
		}
		seen[id] = true
		switch {
		case n.Kind == typegraph.KindReference:
			id = n.Target
		case n.Kind == typegraph.KindGeneric && e.wrappers[n.Name] && len(n.TypeArgs) == 1:
			id = n.TypeArgs[0]
		default:
			return n, nullable
		}
	}
}

// SchemaFor emits the schema for one node. Named nodes register as
// components and come back as a $ref.
func (e *Emitter) SchemaFor(id typegraph.NodeID) *Schema {
	n, nullable := e.resolve(id)
	if n == nil {
		return &Schema{}
	}

	schema := e.refOrBuild(n)
	if nullable {
		schema = wrapNullable(schema)
	}
	return schema
}

// ComponentNameFor returns the component name the node emits under, forcing
// registration if needed. Returns "" for nodes that emit inline (primitives,
// anonymous shapes).
func (e *Emitter) ComponentNameFor(id typegraph.NodeID) string {
	n := e.Resolve(id)
	if n == nil {
		return ""
	}
	if name, ok := e.names[n.ID]; ok {
		return name
	}
	if e.componentWorthy(n) {
		e.refOrBuild(n)
		return e.names[n.ID]
	}
	return ""
}

// refOrBuild registers component-worthy nodes (placeholder first, so
// recursive types terminate at the $ref) and returns either the reference or
// the inline schema. An anonymous node re-entered while its inline schema is
// mid-build sits on a cycle; it is promoted to a minted component so the
// recursion terminates at the $ref.
func (e *Emitter) refOrBuild(n *typegraph.Node) *Schema {
	if name, ok := e.names[n.ID]; ok {
		return &Schema{Ref: RefPrefix + name}
	}
	if !e.componentWorthy(n) {
		if e.building[n.ID] {
			name := e.mintAnonName(n)
			e.names[n.ID] = name
			e.taken[name] = true
			e.components[name] = &Schema{}
			return &Schema{Ref: RefPrefix + name}
		}
		e.building[n.ID] = true
		s := e.build(n)
		delete(e.building, n.ID)
		if name, ok := e.names[n.ID]; ok {
			// A nested build promoted this node; fill the component body
			// and hand back the reference instead of the inline schema.
			e.components[name] = s
			return &Schema{Ref: RefPrefix + name}
		}
		return s
	}

	name := e.mintName(n)
	e.names[n.ID] = name
	e.taken[name] = true
	e.components[name] = &Schema{}
	e.components[name] = e.build(n)
	return &Schema{Ref: RefPrefix + name}
}

// componentWorthy reports whether a node emits as a named component. Named
// objects, unions, enums and generic instantiations do; everything else
// emits inline.
func (e *Emitter) componentWorthy(n *typegraph.Node) bool {
	if n.Name == "" {
		return false
	}
	switch n.Kind {
	case typegraph.KindObject, typegraph.KindUnion, typegraph.KindEnum, typegraph.KindGeneric, typegraph.KindRecord:
		return true
	}
	return false
}

// mintName derives a unique component name. Generic instantiations mangle
// their type arguments in, so Paginated<User> and Paginated<Order> get
// distinct components.
func (e *Emitter) mintName(n *typegraph.Node) string {
	name := n.Name
	if n.Kind == typegraph.KindGeneric {
		for _, arg := range n.TypeArgs {
			name += "_" + e.argName(arg)
		}
	}
	if !e.taken[name] {
		return name
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d", name, i)
		if !e.taken[candidate] {
			return candidate
		}
	}
}

// mintAnonName names a promoted anonymous node after its graph id.
func (e *Emitter) mintAnonName(n *typegraph.Node) string {
	base := "Anonymous_" + string(n.ID)
	if !e.taken[base] {
		return base
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d", base, i)
		if !e.taken[candidate] {
			return candidate
		}
	}
}

// argName names one generic argument for mangling.
func (e *Emitter) argName(id typegraph.NodeID) string {
	n := e.Resolve(id)
	if n == nil {
		return string(id)
	}
	if n.Name != "" {
		return n.Name
	}
	if n.Kind == typegraph.KindPrimitive {
		return n.Primitive
	}
	return string(n.ID)
}

func (e *Emitter) build(n *typegraph.Node) *Schema {
	switch n.Kind {
	case typegraph.KindPrimitive:
		return primitiveSchema(n.Primitive)
	case typegraph.KindLiteral:
		return &Schema{Const: n.Literal}
	case typegraph.KindEnum:
		return &Schema{Enum: append([]any(nil), n.EnumValues...)}
	case typegraph.KindObject:
		return e.buildObject(n)
	case typegraph.KindArray:
		return &Schema{Type: "array", Items: e.SchemaFor(n.Element)}
	case typegraph.KindRecord:
		return &Schema{
			Type:                 "object",
			AdditionalProperties: &SchemaOrBool{Schema: e.SchemaFor(n.Value)},
		}
	case typegraph.KindUnion:
		return e.buildUnion(n)
	case typegraph.KindGeneric:
		return e.buildGeneric(n)
	default:
		return &Schema{}
	}
}

func (e *Emitter) buildObject(n *typegraph.Node) *Schema {
	schema := &Schema{Type: "object", Properties: make(map[string]*Schema)}
	var required []string
	for _, p := range n.Properties {
		ps := e.SchemaFor(p.Type)
		if p.Constraints != nil {
			e.applyConstraints(ps, p.Constraints, n.ID, p.Name)
		}
		if p.Description != "" {
			ps.Description = p.Description
		}
		schema.Properties[p.Name] = ps
		if p.Required {
			required = append(required, p.Name)
		}
	}
	if len(required) > 0 {
		sort.Strings(required)
		schema.Required = required
	}
	return schema
}

// buildUnion canonicalizes literal unions and keeps heterogeneous object
// unions as oneOf of named components.
func (e *Emitter) buildUnion(n *typegraph.Node) *Schema {
	members := make([]*typegraph.Node, 0, len(n.Members))
	for _, m := range n.Members {
		if resolved := e.Resolve(m); resolved != nil {
			members = append(members, resolved)
		}
	}
	if len(members) == 0 {
		return &Schema{}
	}

	// A union of exactly the literals true and false is just boolean.
	if isBooleanLiteralPair(members) {
		return &Schema{Type: "boolean"}
	}

	// All-literal unions emit as an enum.
	if allLiterals(members) {
		values := make([]any, len(members))
		for i, m := range members {
			values[i] = m.Literal
		}
		return &Schema{Enum: values}
	}

	// Object-shaped unions emit oneOf of component references rather than
	// inlining every branch. Anonymous members get a minted variant name.
	if allObjectShaped(members) {
		refs := make([]*Schema, len(members))
		for i, m := range members {
			if !e.componentWorthy(m) {
				e.forceComponent(m, variantName(n, i))
			}
			refs[i] = e.refOrBuild(m)
		}
		return &Schema{OneOf: refs}
	}

	schemas := make([]*Schema, len(members))
	for i, m := range members {
		schemas[i] = e.refOrBuild(m)
		if m.Nullable {
			schemas[i] = wrapNullable(schemas[i])
		}
	}
	return &Schema{AnyOf: schemas}
}

// buildGeneric emits the body of a generic instantiation. Wrappers never
// reach here (Resolve unwraps them); what remains is the instantiated shape:
// the declared structure with the arguments applied by the front end, or a
// bare argument list when the front end sent no expansion.
func (e *Emitter) buildGeneric(n *typegraph.Node) *Schema {
	if len(n.Properties) > 0 {
		return e.buildObject(n)
	}
	if n.Element != "" {
		return &Schema{Type: "array", Items: e.SchemaFor(n.Element)}
	}
	if len(n.TypeArgs) == 1 {
		// Degenerate single-argument instantiation with no declared body
		// behaves like a transparent wrapper.
		return e.SchemaFor(n.TypeArgs[0])
	}
	return &Schema{Type: "object"}
}

// forceComponent registers an unnamed node under a minted name so unions can
// reference it.
func (e *Emitter) forceComponent(n *typegraph.Node, base string) {
	if _, ok := e.names[n.ID]; ok {
		return
	}
	name := base
	for i := 2; e.taken[name]; i++ {
		name = fmt.Sprintf("%s_%d", base, i)
	}
	e.names[n.ID] = name
	e.taken[name] = true
	e.components[name] = &Schema{}
	e.components[name] = e.build(n)
}

// ResponseSchema emits the response schema for a node, refined by a detected
// query shape: selected fields narrow the object, a paginated shape wraps
// the result in the items/total envelope.
func (e *Emitter) ResponseSchema(id typegraph.NodeID, shape *queryshape.Shape) *Schema {
	if shape == nil {
		return e.SchemaFor(id)
	}

	base := e.SchemaFor(id)
	n := e.Resolve(id)

	// Narrowing applies to object-shaped results; peel one array level so a
	// list result narrows its element.
	if len(shape.Fields) > 0 && n != nil {
		element := n
		if n.Kind == typegraph.KindArray {
			element = e.Resolve(n.Element)
		}
		if element != nil && element.Kind == typegraph.KindObject {
			narrowed := e.narrowObject(element, shape)
			if n.Kind == typegraph.KindArray {
				base = &Schema{Type: "array", Items: narrowed}
			} else {
				base = narrowed
			}
		}
	}

	if shape.Paginated {
		items := base
		if items.Type != "array" {
			items = &Schema{Type: "array", Items: base}
		}
		return &Schema{
			Type: "object",
			Properties: map[string]*Schema{
				"items": items,
				"total": {Type: "integer"},
			},
			Required: []string{"items", "total"},
		}
	}
	return base
}

// narrowObject keeps only the selected fields and included relations of an
// object node, emitted inline.
func (e *Emitter) narrowObject(n *typegraph.Node, shape *queryshape.Shape) *Schema {
	keep := make(map[string]bool, len(shape.Fields)+len(shape.Relations))
	for _, f := range shape.Fields {
		keep[f] = true
	}
	for _, r := range shape.Relations {
		keep[r] = true
	}

	schema := &Schema{Type: "object", Properties: make(map[string]*Schema)}
	var required []string
	for _, p := range n.Properties {
		if !keep[p.Name] {
			continue
		}
		schema.Properties[p.Name] = e.SchemaFor(p.Type)
		if p.Required {
			required = append(required, p.Name)
		}
	}
	if len(required) > 0 {
		sort.Strings(required)
		schema.Required = required
	}
	return schema
}

// applyConstraints copies validation facets onto a property schema. Pattern
// sources are ECMA-262 regexes; one that regexp2 rejects is dropped with a
// warning instead of poisoning the artifact.
func (e *Emitter) applyConstraints(s *Schema, c *typegraph.Constraints, node typegraph.NodeID, prop string) {
	s.Minimum = c.Minimum
	s.Maximum = c.Maximum
	s.ExclusiveMinimum = c.ExclusiveMinimum
	s.ExclusiveMaximum = c.ExclusiveMaximum
	s.MultipleOf = c.MultipleOf
	s.MinLength = c.MinLength
	s.MaxLength = c.MaxLength
	s.MinItems = c.MinItems
	s.MaxItems = c.MaxItems
	s.UniqueItems = c.UniqueItems
	if c.Format != nil {
		s.Format = *c.Format
	}
	if c.Default != nil {
		s.Default = *c.Default
	}
	if c.Pattern != nil {
		if _, err := regexp2.Compile(*c.Pattern, regexp2.ECMAScript); err != nil {
			e.coll.WarnNode(diagnostic.CategoryConstraintInvalid, string(node),
				fmt.Sprintf("property %q: invalid pattern %q dropped: %v", prop, *c.Pattern, err))
		} else {
			s.Pattern = *c.Pattern
		}
	}
}

func primitiveSchema(name string) *Schema {
	switch name {
	case "string":
		return &Schema{Type: "string"}
	case "number":
		return &Schema{Type: "number"}
	case "integer":
		return &Schema{Type: "integer"}
	case "boolean":
		return &Schema{Type: "boolean"}
	case "null":
		return &Schema{Type: "null"}
	default:
		return &Schema{Type: "string"}
	}
}

func isBooleanLiteralPair(members []*typegraph.Node) bool {
	if len(members) != 2 {
		return false
	}
	seen := map[bool]bool{}
	for _, m := range members {
		if m.Kind != typegraph.KindLiteral {
			return false
		}
		b, ok := m.Literal.(bool)
		if !ok {
			return false
		}
		seen[b] = true
	}
	return seen[true] && seen[false]
}

func allLiterals(members []*typegraph.Node) bool {
	for _, m := range members {
		if m.Kind != typegraph.KindLiteral {
			return false
		}
	}
	return true
}

func allObjectShaped(members []*typegraph.Node) bool {
	objects := 0
	for _, m := range members {
		if m.Kind == typegraph.KindObject {
			objects++
		}
	}
	// "Heterogeneous object union" means every branch is an object and at
	// least two distinct shapes exist.
	return objects == len(members) && objects >= 2
}

// variantName mints a name for an anonymous union member.
func variantName(union *typegraph.Node, i int) string {
	base := union.Name
	if base == "" {
		base = "Union" + string(union.ID)
	}
	return fmt.Sprintf("%sVariant%d", base, i+1)
}

func wrapNullable(s *Schema) *Schema {
	return &Schema{AnyOf: []*Schema{s, {Type: "null"}}}
}
