package scanner

import (
	"go/constant"
	"go/types"
	"reflect"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/apigraph/apigraph/internal/typegraph"
)

// maxWalkDepth bounds type recursion. Types nested deeper degrade to an
// open object instead of blowing the stack on pathological declarations.
const maxWalkDepth = 32

// cacheSize bounds the canonical-string conversion cache.
const cacheSize = 1024

// typeConverter turns go/types types into graph nodes. Named types register
// once under a package-qualified id; every further occurrence becomes a
// reference node, which keeps recursive types legal in the graph.
type typeConverter struct {
	graph *typegraph.Graph
	named map[string]typegraph.NodeID
	cache *lru.Cache[string, typegraph.NodeID]
}

func newTypeConverter() *typeConverter {
	cache, _ := lru.New[string, typegraph.NodeID](cacheSize)
	return &typeConverter{
		graph: typegraph.New(),
		named: make(map[string]typegraph.NodeID),
		cache: cache,
	}
}

func (c *typeConverter) convert(t types.Type) typegraph.NodeID {
	return c.convertDepth(t, 0)
}

func (c *typeConverter) convertDepth(t types.Type, depth int) typegraph.NodeID {
	if depth > maxWalkDepth {
		return c.graph.AddNode(&typegraph.Node{Kind: typegraph.KindObject})
	}

	key := t.String()
	if id, ok := c.cache.Get(key); ok {
		return id
	}
	id := c.build(t, depth)
	c.cache.Add(key, id)
	return id
}

func (c *typeConverter) build(t types.Type, depth int) typegraph.NodeID {
	switch typ := t.(type) {
	case *types.Basic:
		return c.graph.AddNode(&typegraph.Node{
			Kind:      typegraph.KindPrimitive,
			Primitive: primitiveName(typ),
		})

	case *types.Pointer:
		// Optionality of pointers is decided where the pointer occurs
		// (struct field, parameter); the payload type is the element's.
		return c.convertDepth(typ.Elem(), depth)

	case *types.Slice:
		if basic, ok := typ.Elem().(*types.Basic); ok && (basic.Kind() == types.Byte || basic.Kind() == types.Uint8) {
			// []byte marshals as a base64 string.
			return c.graph.AddNode(&typegraph.Node{Kind: typegraph.KindPrimitive, Primitive: "string"})
		}
		return c.graph.AddNode(&typegraph.Node{
			Kind:    typegraph.KindArray,
			Element: c.convertDepth(typ.Elem(), depth+1),
		})

	case *types.Array:
		return c.graph.AddNode(&typegraph.Node{
			Kind:    typegraph.KindArray,
			Element: c.convertDepth(typ.Elem(), depth+1),
		})

	case *types.Map:
		return c.graph.AddNode(&typegraph.Node{
			Kind:  typegraph.KindRecord,
			Value: c.convertDepth(typ.Elem(), depth+1),
		})

	case *types.Interface:
		return c.graph.AddNode(&typegraph.Node{Kind: typegraph.KindObject})

	case *types.Alias:
		return c.convertDepth(types.Unalias(typ), depth)

	case *types.Named:
		return c.convertNamed(typ, depth)

	case *types.Struct:
		node := &typegraph.Node{Kind: typegraph.KindObject}
		c.fillObject(node, typ, depth)
		return c.graph.AddNode(node)
	}

	return c.graph.AddNode(&typegraph.Node{Kind: typegraph.KindObject})
}

func (c *typeConverter) convertNamed(named *types.Named, depth int) typegraph.NodeID {
	obj := named.Obj()
	if obj == nil || obj.Pkg() == nil {
		return c.graph.AddNode(&typegraph.Node{Kind: typegraph.KindObject})
	}

	// Well-known stdlib shapes.
	if obj.Pkg().Path() == "time" {
		switch obj.Name() {
		case "Time":
			return c.graph.AddNode(&typegraph.Node{Kind: typegraph.KindPrimitive, Primitive: "string"})
		case "Duration":
			return c.graph.AddNode(&typegraph.Node{Kind: typegraph.KindPrimitive, Primitive: "integer"})
		}
	}

	// Generic instantiations are distinct nodes named after the generic;
	// the emitter mangles the arguments into the component name.
	if args := named.TypeArgs(); args != nil && args.Len() > 0 {
		node := &typegraph.Node{Kind: typegraph.KindGeneric, Name: obj.Name()}
		for i := 0; i < args.Len(); i++ {
			node.TypeArgs = append(node.TypeArgs, c.convertDepth(args.At(i), depth+1))
		}
		return c.graph.AddNode(node)
	}

	target := c.registerNamed(named, depth)
	return c.graph.AddNode(&typegraph.Node{Kind: typegraph.KindReference, Target: target})
}

// registerNamed converts a named declaration exactly once and returns its
// canonical node id. The node is registered before its payload is built so
// self-referential types terminate.
func (c *typeConverter) registerNamed(named *types.Named, depth int) typegraph.NodeID {
	obj := named.Obj()
	key := obj.Pkg().Path() + "." + obj.Name()
	if id, ok := c.named[key]; ok {
		return id
	}

	id := typegraph.NodeID(key)
	node := &typegraph.Node{ID: id, Kind: typegraph.KindObject, Name: obj.Name()}
	c.named[key] = id
	c.graph.AddNode(node)

	if values := enumConstants(named); len(values) > 0 {
		node.Kind = typegraph.KindEnum
		node.EnumValues = values
		return id
	}

	switch u := named.Underlying().(type) {
	case *types.Struct:
		c.fillObject(node, u, depth)
	case *types.Basic:
		node.Kind = typegraph.KindPrimitive
		node.Primitive = primitiveName(u)
	case *types.Map:
		node.Kind = typegraph.KindRecord
		node.Value = c.convertDepth(u.Elem(), depth+1)
	case *types.Slice:
		node.Kind = typegraph.KindArray
		node.Element = c.convertDepth(u.Elem(), depth+1)
	}
	return id
}

// fillObject populates an object node from a struct's fields. Embedded
// structs inline their fields, matching encoding/json promotion.
func (c *typeConverter) fillObject(node *typegraph.Node, st *types.Struct, depth int) {
	for i := 0; i < st.NumFields(); i++ {
		field := st.Field(i)
		if !field.Exported() {
			continue
		}

		name, omitempty, skip := jsonName(st.Tag(i), field.Name())
		if skip {
			continue
		}

		if field.Anonymous() && name == field.Name() {
			if embedded := structUnder(field.Type()); embedded != nil {
				c.fillObject(node, embedded, depth+1)
				continue
			}
		}

		ftype := field.Type()
		_, isPointer := ftype.(*types.Pointer)

		node.Properties = append(node.Properties, typegraph.Property{
			Name:     name,
			Type:     c.convertDepth(ftype, depth+1),
			Required: !omitempty && !isPointer,
		})
	}
}

// structUnder unwraps pointers, aliases and named types down to a struct,
// or nil if the type is not struct-shaped.
func structUnder(t types.Type) *types.Struct {
	for {
		switch typ := t.(type) {
		case *types.Pointer:
			t = typ.Elem()
		case *types.Alias:
			t = types.Unalias(typ)
		case *types.Named:
			t = typ.Underlying()
		case *types.Struct:
			return typ
		default:
			return nil
		}
	}
}

// enumConstants scans the type's declaring package for typed constants,
// which import as the enum's members.
func enumConstants(named *types.Named) []any {
	basic, ok := named.Underlying().(*types.Basic)
	if !ok {
		return nil
	}
	scope := named.Obj().Pkg().Scope()

	var values []any
	for _, name := range scope.Names() {
		cst, ok := scope.Lookup(name).(*types.Const)
		if !ok || !types.Identical(cst.Type(), named) {
			continue
		}
		switch {
		case basic.Info()&types.IsString != 0:
			values = append(values, constant.StringVal(cst.Val()))
		case basic.Info()&types.IsInteger != 0:
			if v, exact := constant.Int64Val(cst.Val()); exact {
				values = append(values, v)
			}
		case basic.Info()&types.IsFloat != 0:
			if v, exact := constant.Float64Val(cst.Val()); exact {
				values = append(values, v)
			}
		}
	}
	return values
}

func primitiveName(b *types.Basic) string {
	info := b.Info()
	switch {
	case info&types.IsBoolean != 0:
		return "boolean"
	case info&types.IsInteger != 0:
		return "integer"
	case info&types.IsFloat != 0:
		return "number"
	case info&types.IsString != 0:
		return "string"
	}
	return "string"
}

// jsonName resolves a field's wire name from its json tag.
func jsonName(tag, fieldName string) (name string, omitempty, skip bool) {
	jsonTag, ok := reflect.StructTag(tag).Lookup("json")
	if !ok {
		return fieldName, false, false
	}
	parts := strings.Split(jsonTag, ",")
	if parts[0] == "-" && len(parts) == 1 {
		return "", false, true
	}
	name = parts[0]
	if name == "" {
		name = fieldName
	}
	for _, opt := range parts[1:] {
		if opt == "omitempty" || opt == "omitzero" {
			omitempty = true
		}
	}
	return name, omitempty, false
}
