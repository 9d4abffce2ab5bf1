// Package typegraph defines the arena-backed type graph the compiler
// operates on. Every type reachable from an endpoint declaration becomes a
// node in one Graph; nodes refer to each other by id, never by pointer, so
// transforms can rewrite edges without chasing native references.
package typegraph

// NodeID addresses a node within a Graph. Front ends mint the ids
// (interchange documents use "t1", "t2", ...; the source scanner uses
// package-qualified type names); nodes added without an id are assigned a
// sequential one.
type NodeID string

// Kind identifies the primary kind of a type node.
type Kind string

const (
	KindPrimitive Kind = "primitive" // string, number, integer, boolean, null
	KindLiteral   Kind = "literal"   // single literal value
	KindEnum      Kind = "enum"      // closed set of literal values
	KindObject    Kind = "object"    // named or anonymous property list
	KindArray     Kind = "array"     // homogeneous element type
	KindRecord    Kind = "record"    // string-keyed map of one value type
	KindUnion     Kind = "union"     // one of several member types
	KindReference Kind = "reference" // indirection to another node
	KindGeneric   Kind = "generic"   // instantiation of a named generic type
)

// Node is one vertex of the type graph. Exactly one payload group is
// meaningful per kind; the others stay at their zero values.
type Node struct {
	// ID is the node's address within its graph. Assigned by AddNode when
	// empty.
	ID NodeID `json:"id"`

	// Kind identifies the payload in use.
	Kind Kind `json:"kind"`

	// Name is the declared type name, if the node corresponds to a named
	// declaration ("" for anonymous types). Named nodes emit as named
	// schema components, so the name is part of the node's structural
	// identity.
	Name string `json:"name,omitempty"`

	// Nullable is true if the type admits null in addition to its payload.
	Nullable bool `json:"nullable,omitempty"`

	// Primitive holds the primitive type name (string, number, integer,
	// boolean, null). Only set when Kind == KindPrimitive.
	Primitive string `json:"primitive,omitempty"`

	// Literal holds the literal value (string, float64, bool or nil).
	// Only set when Kind == KindLiteral.
	Literal any `json:"literal,omitempty"`

	// EnumValues holds the member values. Only set when Kind == KindEnum.
	EnumValues []any `json:"enumValues,omitempty"`

	// Properties holds the ordered property list. Only set when
	// Kind == KindObject.
	Properties []Property `json:"properties,omitempty"`

	// Element is the element type. Only set when Kind == KindArray.
	Element NodeID `json:"element,omitempty"`

	// Value is the value type of a string-keyed map. Only set when
	// Kind == KindRecord.
	Value NodeID `json:"value,omitempty"`

	// Members holds the union member types. Only set when
	// Kind == KindUnion. Member order does not affect structural identity.
	Members []NodeID `json:"members,omitempty"`

	// Target is the node a reference points at. Only set when
	// Kind == KindReference.
	Target NodeID `json:"target,omitempty"`

	// TypeArgs holds the instantiation arguments in declaration order.
	// Only set when Kind == KindGeneric; Name carries the generic's
	// declared name. Paginated<User> and Paginated<Order> are distinct
	// nodes with distinct signatures.
	TypeArgs []NodeID `json:"typeArgs,omitempty"`
}

// Property is one entry of an object node's property list.
type Property struct {
	Name     string `json:"name"`
	Type     NodeID `json:"type"`
	Required bool   `json:"required"`

	// Constraints holds validation constraints attached to this property.
	Constraints *Constraints `json:"constraints,omitempty"`

	// Description is documentation text carried through to emitted
	// schemas. It does not participate in structural identity.
	Description string `json:"description,omitempty"`
}

// Constraints carries the schema-level validation facets a property may
// declare. All fields are optional; nil pointers mean "not constrained".
type Constraints struct {
	Minimum          *float64 `json:"minimum,omitempty"`
	Maximum          *float64 `json:"maximum,omitempty"`
	ExclusiveMinimum *float64 `json:"exclusiveMinimum,omitempty"`
	ExclusiveMaximum *float64 `json:"exclusiveMaximum,omitempty"`
	MultipleOf       *float64 `json:"multipleOf,omitempty"`

	MinLength *int `json:"minLength,omitempty"`
	MaxLength *int `json:"maxLength,omitempty"`

	// Pattern is an ECMA-262 regular expression source, the dialect JSON
	// Schema prescribes.
	Pattern *string `json:"pattern,omitempty"`
	Format  *string `json:"format,omitempty"`

	MinItems    *int  `json:"minItems,omitempty"`
	MaxItems    *int  `json:"maxItems,omitempty"`
	UniqueItems *bool `json:"uniqueItems,omitempty"`

	Default *string `json:"default,omitempty"`
}

// Clone returns a deep copy of the node. Inlining substitutes a copied
// payload into a reference node, so shared slices must not leak between
// nodes.
func (n *Node) Clone() *Node {
	c := *n
	if n.EnumValues != nil {
		c.EnumValues = append([]any(nil), n.EnumValues...)
	}
	if n.Members != nil {
		c.Members = append([]NodeID(nil), n.Members...)
	}
	if n.TypeArgs != nil {
		c.TypeArgs = append([]NodeID(nil), n.TypeArgs...)
	}
	if n.Properties != nil {
		c.Properties = make([]Property, len(n.Properties))
		for i, p := range n.Properties {
			c.Properties[i] = p
			if p.Constraints != nil {
				cc := *p.Constraints
				c.Properties[i].Constraints = &cc
			}
		}
	}
	return &c
}
