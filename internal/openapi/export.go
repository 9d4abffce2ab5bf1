package openapi

import (
	"sort"
	"strings"

	"github.com/apigraph/apigraph/internal/manifest"
	"github.com/apigraph/apigraph/internal/schema"
)

// Export renders a compiled manifest and its schema document as an OpenAPI
// 3.1 document. Component references are rewritten from the schema
// document's prefix to the OpenAPI component location.
func Export(m *manifest.Manifest, sd *schema.Document, info Info) *Document {
	if info.Title == "" {
		info.Title = "API"
	}
	if info.Version == "" {
		info.Version = "1.0.0"
	}

	doc := &Document{
		OpenAPI: "3.1.0",
		Info:    info,
		Paths:   make(map[string]*PathItem),
	}

	tagSet := make(map[string]bool)

	for _, ctrl := range m.Controllers {
		for _, mop := range ctrl.Operations {
			path := joinPath(ctrl.BasePath, mop.Path)
			pathItem, exists := doc.Paths[path]
			if !exists {
				pathItem = &PathItem{}
				doc.Paths[path] = pathItem
			}

			op := buildOperation(mop, ctrl.ControllerID)

			switch strings.ToUpper(mop.Method) {
			case "GET":
				pathItem.Get = op
			case "POST":
				pathItem.Post = op
			case "PUT":
				pathItem.Put = op
			case "DELETE":
				pathItem.Delete = op
			case "PATCH":
				pathItem.Patch = op
			case "HEAD":
				pathItem.Head = op
			case "OPTIONS":
				pathItem.Options = op
			}

			tagSet[ctrl.ControllerID] = true
		}
	}

	var tags []Tag
	for tag := range tagSet {
		tags = append(tags, Tag{Name: tag})
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Name < tags[j].Name })
	if len(tags) > 0 {
		doc.Tags = tags
	}

	if len(sd.ComponentSchemas) > 0 {
		schemas := make(map[string]*schema.Schema, len(sd.ComponentSchemas))
		for name, s := range sd.ComponentSchemas {
			schemas[name] = rewriteRefs(s)
		}
		doc.Components = &Components{Schemas: schemas}
	}

	return doc
}

// buildOperation converts one manifest operation.
func buildOperation(mop manifest.Operation, controllerID string) *Operation {
	op := &Operation{
		OperationID: mop.OperationID,
		Tags:        []string{controllerID},
		Responses:   make(Responses),
	}

	for _, b := range mop.ArgumentBindings {
		if b.In == "body" {
			op.RequestBody = &RequestBody{
				Required: b.Required,
				Content: map[string]MediaType{
					"application/json": {Schema: bindingSchema(b)},
				},
			}
			continue
		}

		p := Parameter{
			Name:     b.Name,
			In:       b.In,
			Required: b.Required,
		}
		if b.Serialization != nil {
			p.Style = b.Serialization.Style
			explode := b.Serialization.Explode
			p.Explode = &explode
		}
		if b.Content != "" {
			p.Content = map[string]MediaType{
				b.Content: {Schema: bindingSchema(b)},
			}
		} else {
			p.Schema = bindingSchema(b)
		}
		op.Parameters = append(op.Parameters, p)
	}

	for _, r := range mop.Responses {
		resp := &Response{Description: statusDescription(r.Status)}
		if s := responseSchema(r); s != nil {
			if r.IsArray {
				s = &schema.Schema{Type: "array", Items: s}
			}
			resp.Content = map[string]MediaType{
				"application/json": {Schema: s},
			}
		}
		op.Responses[statusCodeString(r.Status)] = resp
	}

	return op
}

// responseSchema returns the element schema of one response, or nil when the
// response carries no body.
func responseSchema(r manifest.Response) *schema.Schema {
	if r.SchemaRef != "" {
		return &schema.Schema{Ref: ComponentRefPrefix + r.SchemaRef}
	}
	if s, ok := r.Schema.(*schema.Schema); ok {
		return rewriteRefs(s)
	}
	return nil
}

// bindingSchema returns the schema of one binding, preferring the component
// reference over the inline schema.
func bindingSchema(b manifest.ArgumentBinding) *schema.Schema {
	if b.SchemaRef != "" {
		return &schema.Schema{Ref: ComponentRefPrefix + b.SchemaRef}
	}
	if s, ok := b.Schema.(*schema.Schema); ok {
		return rewriteRefs(s)
	}
	return &schema.Schema{}
}

// rewriteRefs deep-copies a schema, rewriting component references to the
// OpenAPI prefix. The input document is never mutated.
func rewriteRefs(s *schema.Schema) *schema.Schema {
	if s == nil {
		return nil
	}
	c := *s
	if name, ok := strings.CutPrefix(c.Ref, schema.RefPrefix); ok {
		c.Ref = ComponentRefPrefix + name
	}
	if s.Properties != nil {
		c.Properties = make(map[string]*schema.Schema, len(s.Properties))
		for k, v := range s.Properties {
			c.Properties[k] = rewriteRefs(v)
		}
	}
	c.Items = rewriteRefs(s.Items)
	if s.AnyOf != nil {
		c.AnyOf = make([]*schema.Schema, len(s.AnyOf))
		for i, v := range s.AnyOf {
			c.AnyOf[i] = rewriteRefs(v)
		}
	}
	if s.OneOf != nil {
		c.OneOf = make([]*schema.Schema, len(s.OneOf))
		for i, v := range s.OneOf {
			c.OneOf[i] = rewriteRefs(v)
		}
	}
	if s.AdditionalProperties != nil {
		ap := schema.SchemaOrBool{Bool: s.AdditionalProperties.Bool}
		if s.AdditionalProperties.Schema != nil {
			ap.Schema = rewriteRefs(s.AdditionalProperties.Schema)
		}
		c.AdditionalProperties = &ap
	}
	return &c
}

// joinPath concatenates a controller base path and an operation path into
// one absolute template.
func joinPath(base, path string) string {
	base = strings.TrimSuffix(base, "/")
	if path == "" || path == "/" {
		if base == "" {
			return "/"
		}
		return base
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}
