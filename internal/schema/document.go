// Package schema walks the post-transform type graph and emits the portable
// schema document: named component schemas plus per-operation request and
// response schemas. Emission is deterministic for a given graph.
package schema

import "encoding/json"

// RefPrefix is the $ref prefix component references use inside the schema
// document. The OpenAPI exporter rewrites it to its own component location.
const RefPrefix = "#/componentSchemas/"

// Document is the emitted schema artifact.
type Document struct {
	ComponentSchemas map[string]*Schema          `json:"componentSchemas"`
	OperationSchemas map[string]OperationSchemas `json:"operationSchemas"`
}

// OperationSchemas pairs one operation's request body schema with its
// response schema. Request is nil for operations without a body.
type OperationSchemas struct {
	Request  *Schema `json:"request,omitempty"`
	Response *Schema `json:"response,omitempty"`
}

// SchemaOrBool represents a value that can be either a Schema object or a
// boolean, which is what additionalProperties admits.
type SchemaOrBool struct {
	Schema *Schema
	Bool   *bool
}

// MarshalJSON implements json.Marshaler.
func (s SchemaOrBool) MarshalJSON() ([]byte, error) {
	if s.Bool != nil {
		return json.Marshal(*s.Bool)
	}
	if s.Schema != nil {
		return json.Marshal(s.Schema)
	}
	return []byte("{}"), nil
}

// Schema is one JSON Schema node (OpenAPI 3.1 compatible).
type Schema struct {
	Type        string             `json:"type,omitempty"`
	Format      string             `json:"format,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Enum        []any              `json:"enum,omitempty"`
	Const       any                `json:"const,omitempty"`
	AnyOf       []*Schema          `json:"anyOf,omitempty"`
	OneOf       []*Schema          `json:"oneOf,omitempty"`
	Ref         string             `json:"$ref,omitempty"`
	Description string             `json:"description,omitempty"`

	AdditionalProperties *SchemaOrBool `json:"additionalProperties,omitempty"`

	// Validation facets carried over from property constraints.
	Minimum          *float64 `json:"minimum,omitempty"`
	Maximum          *float64 `json:"maximum,omitempty"`
	ExclusiveMinimum *float64 `json:"exclusiveMinimum,omitempty"`
	ExclusiveMaximum *float64 `json:"exclusiveMaximum,omitempty"`
	MultipleOf       *float64 `json:"multipleOf,omitempty"`
	MinLength        *int     `json:"minLength,omitempty"`
	MaxLength        *int     `json:"maxLength,omitempty"`
	Pattern          string   `json:"pattern,omitempty"`
	MinItems         *int     `json:"minItems,omitempty"`
	MaxItems         *int     `json:"maxItems,omitempty"`
	UniqueItems      *bool    `json:"uniqueItems,omitempty"`
	Default          any      `json:"default,omitempty"`
}

// IsRef reports whether the schema is a bare component reference.
func (s *Schema) IsRef() bool {
	return s != nil && s.Ref != ""
}
