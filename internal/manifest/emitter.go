package manifest

import (
	"fmt"
	"strings"

	"github.com/apigraph/apigraph/internal/diagnostic"
	"github.com/apigraph/apigraph/internal/endpoint"
	"github.com/apigraph/apigraph/internal/schema"
	"github.com/apigraph/apigraph/internal/typegraph"
)

// Result pairs the manifest with the per-operation body node ids the
// classifier discovered, which the schema emitter needs for request schemas.
type Result struct {
	Manifest *Manifest
	// BodyByOperation maps operation id to the body argument's type node
	// (absent when the operation has no body).
	BodyByOperation map[string]typegraph.NodeID
}

// Emit classifies every declared parameter and builds the manifest.
// Classification order per parameter: explicit marker, path placeholder name
// match, HTTP method default. Violated binding invariants are structural
// errors naming the operation.
func Emit(controllers []endpoint.Controller, em *schema.Emitter, schemaDocument string) (*Result, error) {
	result := &Result{
		Manifest:        &Manifest{ManifestVersion: Version, SchemaDocument: schemaDocument},
		BodyByOperation: make(map[string]typegraph.NodeID),
	}

	for _, ctrl := range controllers {
		mc := Controller{ControllerID: ctrl.ID, BasePath: ctrl.BasePath}
		for _, op := range ctrl.Operations {
			mop, bodyType, err := emitOperation(op, em)
			if err != nil {
				return nil, err
			}
			if bodyType != "" {
				result.BodyByOperation[op.ID] = bodyType
			}
			mc.Operations = append(mc.Operations, *mop)
		}
		result.Manifest.Controllers = append(result.Manifest.Controllers, mc)
	}
	return result, nil
}

func emitOperation(op endpoint.Operation, em *schema.Emitter) (*Operation, typegraph.NodeID, error) {
	placeholders := pathPlaceholders(op.Path)
	mop := &Operation{OperationID: op.ID, Method: op.Method, Path: op.Path}

	var bodyType typegraph.NodeID
	boundPlaceholders := make(map[string]bool)

	for _, param := range op.Parameters {
		source := classify(param, placeholders, op.Method)

		switch source {
		case endpoint.SourcePath:
			if !placeholders[param.Name] {
				return nil, "", diagnostic.OperationError(op.ID,
					"path argument %q has no matching {%s} placeholder in %q", param.Name, param.Name, op.Path)
			}
			if boundPlaceholders[param.Name] {
				return nil, "", diagnostic.OperationError(op.ID,
					"placeholder {%s} is bound by more than one argument", param.Name)
			}
			boundPlaceholders[param.Name] = true
			mop.ArgumentBindings = append(mop.ArgumentBindings, bindingFor(param.Name, source, true, param.Type, em))

		case endpoint.SourceBody:
			if bodyType != "" {
				return nil, "", diagnostic.OperationError(op.ID,
					"more than one argument classified as body (%q)", param.Name)
			}
			bodyType = param.Type
			mop.ArgumentBindings = append(mop.ArgumentBindings, bindingFor(param.Name, source, !param.Optional, param.Type, em))

		default:
			mop.ArgumentBindings = append(mop.ArgumentBindings, expand(param, source, em)...)
		}
	}

	for name := range placeholders {
		if !boundPlaceholders[name] {
			return nil, "", diagnostic.OperationError(op.ID,
				"path placeholder {%s} has no matching argument", name)
		}
	}

	mop.Responses = append(mop.Responses, responseFor(op, em))
	return mop, bodyType, nil
}

// classify applies the three-step classification order.
func classify(param endpoint.Parameter, placeholders map[string]bool, method string) endpoint.Source {
	if param.Source != endpoint.SourceUnspecified {
		return param.Source
	}
	if placeholders[param.Name] {
		return endpoint.SourcePath
	}
	if methodCarriesBody(method) {
		return endpoint.SourceBody
	}
	return endpoint.SourceQuery
}

func methodCarriesBody(method string) bool {
	switch strings.ToUpper(method) {
	case "POST", "PUT", "PATCH":
		return true
	}
	return false
}

// expand turns one query/header/cookie parameter into its bindings. Object
// shapes expand to one binding per property, unless the declaration asked
// for deep-object encoding or the shape has no enumerable properties, in
// which case a single object-like binding is emitted.
func expand(param endpoint.Parameter, source endpoint.Source, em *schema.Emitter) []ArgumentBinding {
	node := em.Resolve(param.Type)
	objectLike := node != nil && (node.Kind == typegraph.KindObject || node.Kind == typegraph.KindRecord)

	if !objectLike {
		b := bindingFor(param.Name, source, !param.Optional, param.Type, em)
		if param.Style != endpoint.StyleNone && param.Style != endpoint.StyleDeepObject {
			b.Serialization = &Serialization{
				Style:   string(param.Style),
				Explode: param.Style == endpoint.StyleForm,
			}
		}
		return []ArgumentBinding{b}
	}

	if param.Style == endpoint.StyleDeepObject {
		b := bindingFor(param.Name, source, !param.Optional, param.Type, em)
		b.ObjectLike = true
		b.Serialization = &Serialization{Style: string(endpoint.StyleDeepObject), Explode: true}
		return []ArgumentBinding{b}
	}

	if node.Kind == typegraph.KindObject && len(node.Properties) > 0 {
		bindings := make([]ArgumentBinding, 0, len(node.Properties))
		for _, prop := range node.Properties {
			b := bindingFor(prop.Name, source, prop.Required && !param.Optional, prop.Type, em)
			if b.ObjectLike && source == endpoint.SourceQuery {
				b.Content = "application/json"
			}
			bindings = append(bindings, b)
		}
		return bindings
	}

	// Records and empty objects cannot expand; the whole value travels as
	// one encoded string.
	b := bindingFor(param.Name, source, !param.Optional, param.Type, em)
	b.ObjectLike = true
	if source == endpoint.SourceQuery {
		b.Content = "application/json"
	}
	return []ArgumentBinding{b}
}

// bindingFor builds one binding, preferring a component reference over an
// inline schema.
func bindingFor(name string, source endpoint.Source, required bool, id typegraph.NodeID, em *schema.Emitter) ArgumentBinding {
	b := ArgumentBinding{Name: name, In: string(source), Required: required}

	node := em.Resolve(id)
	if node != nil && (node.Kind == typegraph.KindObject || node.Kind == typegraph.KindRecord) {
		b.ObjectLike = true
	}

	if ref := em.ComponentNameFor(id); ref != "" {
		b.SchemaRef = ref
	} else {
		b.Schema = em.SchemaFor(id)
	}
	return b
}

// responseFor describes the operation's declared success response.
func responseFor(op endpoint.Operation, em *schema.Emitter) Response {
	status := op.Status
	if status == 0 {
		status = 200
		if strings.EqualFold(op.Method, "POST") {
			status = 201
		}
	}
	resp := Response{Status: status}
	if op.Response == "" {
		return resp
	}

	node := em.Resolve(op.Response)
	if node != nil && node.Kind == typegraph.KindArray {
		resp.IsArray = true
		if ref := em.ComponentNameFor(node.Element); ref != "" {
			resp.SchemaRef = ref
		} else {
			resp.Schema = em.SchemaFor(node.Element)
		}
		return resp
	}
	if ref := em.ComponentNameFor(op.Response); ref != "" {
		resp.SchemaRef = ref
	} else {
		resp.Schema = em.SchemaFor(op.Response)
	}
	return resp
}

// pathPlaceholders extracts the {name} placeholders of a path template.
func pathPlaceholders(path string) map[string]bool {
	out := make(map[string]bool)
	for _, seg := range strings.Split(path, "/") {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") && len(seg) > 2 {
			out[seg[1:len(seg)-1]] = true
		}
	}
	return out
}

// Validate checks that every SchemaRef in the manifest resolves into the
// schema document's component set.
func Validate(m *Manifest, doc *schema.Document) error {
	check := func(opID, ref string) error {
		if ref == "" {
			return nil
		}
		if _, ok := doc.ComponentSchemas[ref]; !ok {
			return diagnostic.OperationError(opID, "schemaRef %q does not resolve to a component schema", ref)
		}
		return nil
	}
	for _, ctrl := range m.Controllers {
		for _, op := range ctrl.Operations {
			for _, b := range op.ArgumentBindings {
				if err := check(op.OperationID, b.SchemaRef); err != nil {
					return err
				}
			}
			for _, r := range op.Responses {
				if err := check(op.OperationID, r.SchemaRef); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// describeBinding is a debugging aid used in diagnostics and tests.
func describeBinding(b ArgumentBinding) string {
	var extra string
	if b.Serialization != nil {
		extra = fmt.Sprintf(" style=%s explode=%v", b.Serialization.Style, b.Serialization.Explode)
	}
	if b.Content != "" {
		extra += " content=" + b.Content
	}
	return fmt.Sprintf("%s in=%s required=%v%s", b.Name, b.In, b.Required, extra)
}
