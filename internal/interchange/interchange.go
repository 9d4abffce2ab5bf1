// Package interchange decodes the serialized front-end contract: a node/edge
// JSON document carrying type descriptions, endpoint declarations and the
// symbolic call graph. Any source-scanning tool, in any language, can feed
// the compiler through this format. Malformed documents are rejected before
// graph construction.
package interchange

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/apigraph/apigraph/internal/diagnostic"
	"github.com/apigraph/apigraph/internal/endpoint"
	"github.com/apigraph/apigraph/internal/queryshape"
	"github.com/apigraph/apigraph/internal/typegraph"
)

// FormatVersion is the interchange document version this build reads.
const FormatVersion = 1

var validate = validator.New()

// Document is the decoded interchange file.
type Document struct {
	Version     int                 `json:"version" validate:"required,eq=1"`
	Types       []typegraph.Node    `json:"types" validate:"required,min=1,dive"`
	Controllers []ControllerDecl    `json:"controllers" validate:"dive"`
	Functions   map[string]BodyDecl `json:"functions,omitempty" validate:"dive"`
}

// ControllerDecl declares one controller and its operations.
type ControllerDecl struct {
	ID         string          `json:"id" validate:"required"`
	BasePath   string          `json:"basePath" validate:"required,startswith=/"`
	Operations []OperationDecl `json:"operations" validate:"required,min=1,dive"`
}

// OperationDecl declares one endpoint.
type OperationDecl struct {
	ID         string          `json:"id" validate:"required"`
	Method     string          `json:"method" validate:"required,oneof=GET POST PUT PATCH DELETE HEAD OPTIONS"`
	Path       string          `json:"path" validate:"required,startswith=/"`
	Parameters []ParameterDecl `json:"parameters,omitempty" validate:"dive"`
	Response   string          `json:"response,omitempty"`
	Status     int             `json:"status,omitempty" validate:"omitempty,min=100,max=599"`
	Handler    string          `json:"handler,omitempty"`
}

// ParameterDecl declares one positional parameter.
type ParameterDecl struct {
	Name     string `json:"name" validate:"required"`
	Type     string `json:"type" validate:"required"`
	Optional bool   `json:"optional,omitempty"`
	Source   string `json:"source,omitempty"`
	Style    string `json:"style,omitempty"`
}

// BodyDecl declares one function body of the symbolic call graph.
type BodyDecl struct {
	Kind    string            `json:"kind" validate:"required,oneof=call query opaque"`
	Targets []string          `json:"targets,omitempty"`
	Query   *queryshape.Shape `json:"query,omitempty"`
}

// Decode parses and validates an interchange document. Errors carry enough
// context to locate the offending declaration.
func Decode(data []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing interchange document: %w", err)
	}
	if err := validate.Struct(&doc); err != nil {
		return nil, fmt.Errorf("invalid interchange document: %w", err)
	}
	if err := doc.check(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// DecodeFile reads and decodes an interchange document from disk.
func DecodeFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading interchange document %q: %w", path, err)
	}
	return Decode(data)
}

var knownKinds = map[typegraph.Kind]bool{
	typegraph.KindPrimitive: true,
	typegraph.KindLiteral:   true,
	typegraph.KindEnum:      true,
	typegraph.KindObject:    true,
	typegraph.KindArray:     true,
	typegraph.KindRecord:    true,
	typegraph.KindUnion:     true,
	typegraph.KindReference: true,
	typegraph.KindGeneric:   true,
}

// check enforces the semantic rules struct tags cannot express.
func (d *Document) check() error {
	seenTypes := make(map[typegraph.NodeID]bool, len(d.Types))
	for i := range d.Types {
		n := &d.Types[i]
		if n.ID == "" {
			return &diagnostic.StructuralError{Message: fmt.Sprintf("type at index %d has no id", i)}
		}
		if seenTypes[n.ID] {
			return diagnostic.NodeError(string(n.ID), "duplicate type id")
		}
		seenTypes[n.ID] = true
		if !knownKinds[n.Kind] {
			return diagnostic.NodeError(string(n.ID), "unknown kind %q", n.Kind)
		}
	}

	seenOps := make(map[string]bool)
	for _, ctrl := range d.Controllers {
		for _, op := range ctrl.Operations {
			if seenOps[op.ID] {
				return diagnostic.OperationError(op.ID, "duplicate operation id")
			}
			seenOps[op.ID] = true
			for _, p := range op.Parameters {
				if !endpoint.Source(p.Source).Valid() {
					return diagnostic.OperationError(op.ID, "parameter %q: unknown source %q", p.Name, p.Source)
				}
				if !endpoint.Style(p.Style).Valid() {
					return diagnostic.OperationError(op.ID, "parameter %q: unknown style %q", p.Name, p.Style)
				}
			}
		}
	}

	for id, body := range d.Functions {
		if body.Kind == "call" && len(body.Targets) == 0 {
			return &diagnostic.StructuralError{Message: fmt.Sprintf("function %q: call body has no targets", id)}
		}
		if body.Kind == "query" && body.Query == nil {
			return &diagnostic.StructuralError{Message: fmt.Sprintf("function %q: query body has no query description", id)}
		}
	}
	return nil
}

// Graph materializes the document's type table into a fresh graph. Reference
// closure is the graph's own concern; callers run ValidateRefs next.
func (d *Document) Graph() *typegraph.Graph {
	g := typegraph.New()
	for i := range d.Types {
		n := d.Types[i]
		g.AddNode(&n)
	}
	return g
}

// Endpoints converts the controller declarations into the in-memory model.
func (d *Document) Endpoints() []endpoint.Controller {
	out := make([]endpoint.Controller, 0, len(d.Controllers))
	for _, ctrl := range d.Controllers {
		c := endpoint.Controller{ID: ctrl.ID, BasePath: ctrl.BasePath}
		for _, op := range ctrl.Operations {
			o := endpoint.Operation{
				ID:        op.ID,
				Method:    op.Method,
				Path:      op.Path,
				Response:  typegraph.NodeID(op.Response),
				Status:    op.Status,
				HandlerID: op.Handler,
			}
			for _, p := range op.Parameters {
				o.Parameters = append(o.Parameters, endpoint.Parameter{
					Name:     p.Name,
					Type:     typegraph.NodeID(p.Type),
					Optional: p.Optional,
					Source:   endpoint.Source(p.Source),
					Style:    endpoint.Style(p.Style),
				})
			}
			c.Operations = append(c.Operations, o)
		}
		out = append(out, c)
	}
	return out
}

// Calls converts the function declarations into the analyzer's call graph.
func (d *Document) Calls() queryshape.CallGraph {
	if len(d.Functions) == 0 {
		return nil
	}
	g := make(queryshape.CallGraph, len(d.Functions))
	for id, body := range d.Functions {
		g[id] = &queryshape.Body{
			Kind:    queryshape.BodyKind(body.Kind),
			Targets: body.Targets,
			Query:   body.Query,
		}
	}
	return g
}
