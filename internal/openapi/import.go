package openapi

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/apigraph/apigraph/internal/endpoint"
	"github.com/apigraph/apigraph/internal/typegraph"
)

// ImportResult is an OpenAPI document converted into compiler input. There
// is no call graph: imported documents carry no handler bodies, so every
// operation's query shape degrades to the declared response type.
type ImportResult struct {
	Graph       *typegraph.Graph
	Controllers []endpoint.Controller
}

// ImportFile loads and validates an OpenAPI document from disk and converts
// it into a type graph plus endpoint declarations.
func ImportFile(path string) (*ImportResult, error) {
	loader := &openapi3.Loader{IsExternalRefsAllowed: true}
	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading OpenAPI document %q: %w", path, err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI document %q: %w", path, err)
	}
	return Import(doc)
}

// Import converts a parsed OpenAPI document.
func Import(doc *openapi3.T) (*ImportResult, error) {
	imp := &importer{graph: typegraph.New()}

	// Component schemas first, in name order, so named nodes exist before
	// operations reference them.
	if doc.Components != nil && len(doc.Components.Schemas) > 0 {
		names := make([]string, 0, len(doc.Components.Schemas))
		for name := range doc.Components.Schemas {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if err := imp.component(name, doc.Components.Schemas[name]); err != nil {
				return nil, err
			}
		}
	}

	controllers, err := imp.operations(doc)
	if err != nil {
		return nil, err
	}

	return &ImportResult{Graph: imp.graph, Controllers: controllers}, nil
}

type importer struct {
	graph *typegraph.Graph
}

// component converts one named component schema. The component's name is
// its node id, so references resolve without a lookup table.
func (imp *importer) component(name string, sr *openapi3.SchemaRef) error {
	node, err := imp.convertValue(sr.Value)
	if err != nil {
		return fmt.Errorf("component schema %q: %w", name, err)
	}
	node.ID = typegraph.NodeID(name)
	node.Name = name
	imp.graph.AddNode(node)
	return nil
}

// convert turns a schema reference into a node id, minting a reference node
// for $ref occurrences so cycles stay legal in the graph.
func (imp *importer) convert(sr *openapi3.SchemaRef) (typegraph.NodeID, error) {
	if sr == nil || (sr.Ref == "" && sr.Value == nil) {
		return imp.graph.AddNode(&typegraph.Node{Kind: typegraph.KindObject}), nil
	}
	if sr.Ref != "" {
		parts := strings.Split(sr.Ref, "/")
		name := parts[len(parts)-1]
		if name == "" {
			return "", fmt.Errorf("unresolvable $ref %q", sr.Ref)
		}
		return imp.graph.AddNode(&typegraph.Node{
			Kind:   typegraph.KindReference,
			Target: typegraph.NodeID(name),
		}), nil
	}
	node, err := imp.convertValue(sr.Value)
	if err != nil {
		return "", err
	}
	return imp.graph.AddNode(node), nil
}

// convertValue builds an unregistered node from an inline schema value.
func (imp *importer) convertValue(s *openapi3.Schema) (*typegraph.Node, error) {
	if s == nil {
		return &typegraph.Node{Kind: typegraph.KindObject}, nil
	}

	if len(s.Enum) > 0 {
		return &typegraph.Node{
			Kind:       typegraph.KindEnum,
			Nullable:   s.Nullable,
			EnumValues: append([]any(nil), s.Enum...),
		}, nil
	}

	if len(s.OneOf) > 0 || len(s.AnyOf) > 0 {
		subs := s.OneOf
		if len(subs) == 0 {
			subs = s.AnyOf
		}
		members := make([]typegraph.NodeID, 0, len(subs))
		for _, sub := range subs {
			id, err := imp.convert(sub)
			if err != nil {
				return nil, err
			}
			members = append(members, id)
		}
		return &typegraph.Node{Kind: typegraph.KindUnion, Nullable: s.Nullable, Members: members}, nil
	}

	if s.Type != nil {
		switch {
		case s.Type.Is(openapi3.TypeString):
			return &typegraph.Node{Kind: typegraph.KindPrimitive, Primitive: "string", Nullable: s.Nullable}, nil
		case s.Type.Is(openapi3.TypeInteger):
			return &typegraph.Node{Kind: typegraph.KindPrimitive, Primitive: "integer", Nullable: s.Nullable}, nil
		case s.Type.Is(openapi3.TypeNumber):
			return &typegraph.Node{Kind: typegraph.KindPrimitive, Primitive: "number", Nullable: s.Nullable}, nil
		case s.Type.Is(openapi3.TypeBoolean):
			return &typegraph.Node{Kind: typegraph.KindPrimitive, Primitive: "boolean", Nullable: s.Nullable}, nil
		case s.Type.Is(openapi3.TypeNull):
			return &typegraph.Node{Kind: typegraph.KindPrimitive, Primitive: "null"}, nil
		case s.Type.Is(openapi3.TypeArray):
			elem, err := imp.convert(s.Items)
			if err != nil {
				return nil, err
			}
			return &typegraph.Node{Kind: typegraph.KindArray, Nullable: s.Nullable, Element: elem}, nil
		case s.Type.Is(openapi3.TypeObject):
			return imp.convertObject(s)
		}
	}

	// Untyped schemas degrade to an open object.
	return &typegraph.Node{Kind: typegraph.KindObject, Nullable: s.Nullable}, nil
}

func (imp *importer) convertObject(s *openapi3.Schema) (*typegraph.Node, error) {
	// A pure map shape imports as a record.
	if len(s.Properties) == 0 && s.AdditionalProperties.Schema != nil {
		value, err := imp.convert(s.AdditionalProperties.Schema)
		if err != nil {
			return nil, err
		}
		return &typegraph.Node{Kind: typegraph.KindRecord, Nullable: s.Nullable, Value: value}, nil
	}

	required := make(map[string]bool, len(s.Required))
	for _, r := range s.Required {
		required[r] = true
	}

	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	node := &typegraph.Node{Kind: typegraph.KindObject, Nullable: s.Nullable}
	for _, name := range names {
		pr := s.Properties[name]
		id, err := imp.convert(pr)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", name, err)
		}
		node.Properties = append(node.Properties, typegraph.Property{
			Name:        name,
			Type:        id,
			Required:    required[name],
			Constraints: importConstraints(pr.Value),
		})
	}
	return node, nil
}

// importConstraints carries over the validation facets a property schema
// declares inline. Referenced schemas keep their facets on the component.
func importConstraints(s *openapi3.Schema) *typegraph.Constraints {
	if s == nil {
		return nil
	}
	var c typegraph.Constraints
	var set bool

	if s.Min != nil {
		c.Minimum, set = s.Min, true
	}
	if s.Max != nil {
		c.Maximum, set = s.Max, true
	}
	if s.MultipleOf != nil {
		c.MultipleOf, set = s.MultipleOf, true
	}
	if s.MinLength > 0 {
		v := int(s.MinLength)
		c.MinLength, set = &v, true
	}
	if s.MaxLength != nil {
		v := int(*s.MaxLength)
		c.MaxLength, set = &v, true
	}
	if s.Pattern != "" {
		p := s.Pattern
		c.Pattern, set = &p, true
	}
	if s.Format != "" {
		f := s.Format
		c.Format, set = &f, true
	}
	if s.MinItems > 0 {
		v := int(s.MinItems)
		c.MinItems, set = &v, true
	}
	if s.MaxItems != nil {
		v := int(*s.MaxItems)
		c.MaxItems, set = &v, true
	}

	if !set {
		return nil
	}
	return &c
}

// operations walks the document's paths and groups them into controllers by
// first tag. Untagged operations land in the "default" controller.
func (imp *importer) operations(doc *openapi3.T) ([]endpoint.Controller, error) {
	byTag := make(map[string][]endpoint.Operation)

	paths := make([]string, 0, doc.Paths.Len())
	for path := range doc.Paths.Map() {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		item := doc.Paths.Map()[path]
		for _, mo := range []struct {
			method string
			op     *openapi3.Operation
		}{
			{"GET", item.Get},
			{"POST", item.Post},
			{"PUT", item.Put},
			{"PATCH", item.Patch},
			{"DELETE", item.Delete},
			{"HEAD", item.Head},
			{"OPTIONS", item.Options},
		} {
			if mo.op == nil {
				continue
			}
			op, err := imp.operation(path, mo.method, mo.op)
			if err != nil {
				return nil, err
			}
			tag := "default"
			if len(mo.op.Tags) > 0 {
				tag = mo.op.Tags[0]
			}
			byTag[tag] = append(byTag[tag], *op)
		}
	}

	tags := make([]string, 0, len(byTag))
	for tag := range byTag {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	controllers := make([]endpoint.Controller, 0, len(tags))
	for _, tag := range tags {
		controllers = append(controllers, endpoint.Controller{
			ID:         tag,
			Operations: byTag[tag],
		})
	}
	return controllers, nil
}

func (imp *importer) operation(path, method string, src *openapi3.Operation) (*endpoint.Operation, error) {
	id := src.OperationID
	if id == "" {
		id = strings.ToLower(method) + path
	}
	op := &endpoint.Operation{ID: id, Method: method, Path: path}

	for _, pr := range src.Parameters {
		p := pr.Value
		if p == nil {
			continue
		}
		var schemaRef *openapi3.SchemaRef
		if p.Schema != nil {
			schemaRef = p.Schema
		} else if mt := p.Content.Get("application/json"); mt != nil {
			schemaRef = mt.Schema
		}
		typeID, err := imp.convert(schemaRef)
		if err != nil {
			return nil, fmt.Errorf("operation %q parameter %q: %w", id, p.Name, err)
		}
		param := endpoint.Parameter{
			Name:     p.Name,
			Type:     typeID,
			Optional: !p.Required,
			Source:   paramSource(p.In),
		}
		if p.Style == "deepObject" {
			param.Style = endpoint.StyleDeepObject
		}
		op.Parameters = append(op.Parameters, param)
	}

	if src.RequestBody != nil && src.RequestBody.Value != nil {
		if mt := src.RequestBody.Value.Content.Get("application/json"); mt != nil {
			typeID, err := imp.convert(mt.Schema)
			if err != nil {
				return nil, fmt.Errorf("operation %q request body: %w", id, err)
			}
			op.Parameters = append(op.Parameters, endpoint.Parameter{
				Name:     "body",
				Type:     typeID,
				Optional: !src.RequestBody.Value.Required,
				Source:   endpoint.SourceBody,
			})
		}
	}

	if src.Responses != nil {
		status, resp := successResponse(src.Responses)
		if resp != nil {
			op.Status = status
			if mt := resp.Content.Get("application/json"); mt != nil && mt.Schema != nil {
				typeID, err := imp.convert(mt.Schema)
				if err != nil {
					return nil, fmt.Errorf("operation %q response: %w", id, err)
				}
				op.Response = typeID
			}
		}
	}

	return op, nil
}

// successResponse picks the lowest declared 2xx response.
func successResponse(responses *openapi3.Responses) (int, *openapi3.Response) {
	best := 0
	var bestResp *openapi3.Response
	for key, rr := range responses.Map() {
		code, err := strconv.Atoi(key)
		if err != nil || code < 200 || code >= 300 || rr.Value == nil {
			continue
		}
		if best == 0 || code < best {
			best, bestResp = code, rr.Value
		}
	}
	return best, bestResp
}

func paramSource(in string) endpoint.Source {
	switch in {
	case "path":
		return endpoint.SourcePath
	case "query":
		return endpoint.SourceQuery
	case "header":
		return endpoint.SourceHeader
	case "cookie":
		return endpoint.SourceCookie
	}
	return endpoint.SourceUnspecified
}
