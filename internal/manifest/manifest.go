// Package manifest emits the operation-level contract: for every declared
// endpoint, how each argument binds onto the request (path, query, header,
// cookie, body) and how the response is shaped. The manifest is built once
// per compilation, after graph transforms, and never mutated afterwards.
package manifest

// Version is bumped when the manifest format changes incompatibly.
const Version = 1

// Manifest is the emitted, versioned artifact consumed by the runtime
// dispatcher. SchemaDocument names the schema artifact the SchemaRef fields
// resolve against.
type Manifest struct {
	ManifestVersion int          `json:"manifestVersion"`
	SchemaDocument  string       `json:"schemaDocument"`
	Controllers     []Controller `json:"controllers"`
}

// Controller groups the operations sharing one base path.
type Controller struct {
	ControllerID string      `json:"controllerId"`
	BasePath     string      `json:"basePath"`
	Operations   []Operation `json:"operations"`
}

// Operation is one endpoint's binding description.
type Operation struct {
	OperationID      string            `json:"operationId"`
	Method           string            `json:"method"`
	Path             string            `json:"path"`
	ArgumentBindings []ArgumentBinding `json:"argumentBindings"`
	Responses        []Response        `json:"responses"`

	// QueryShape carries the statically inferred result shape, when
	// detection succeeded.
	QueryShape any `json:"queryShape,omitempty"`
}

// ArgumentBinding classifies one parameter. Exactly one of SchemaRef and
// Schema is set: SchemaRef when the type emitted as a named component,
// Schema for inline shapes.
type ArgumentBinding struct {
	Name     string `json:"name"`
	In       string `json:"in"` // "path", "query", "header", "cookie", "body"
	Required bool   `json:"required"`

	SchemaRef string `json:"schemaRef,omitempty"`
	Schema    any    `json:"schema,omitempty"`

	// ObjectLike marks bindings whose value is structurally an object.
	ObjectLike bool `json:"objectLike,omitempty"`

	// Serialization describes non-default encodings for query, header and
	// cookie bindings.
	Serialization *Serialization `json:"serialization,omitempty"`

	// Content names the media type an object-like query value is
	// transmitted as when it is not deep-object encoded. The runtime must
	// decode the string before validating.
	Content string `json:"content,omitempty"`
}

// Serialization is the style descriptor of one binding.
type Serialization struct {
	Style   string `json:"style"` // "form", "spaceDelimited", "pipeDelimited", "deepObject"
	Explode bool   `json:"explode"`
}

// Response describes one declared response of an operation. Like argument
// bindings, at most one of SchemaRef and Schema is set: SchemaRef when the
// response type (or array element type) emitted as a named component, Schema
// for inline shapes. For arrays both describe the element; IsArray records
// the wrapping.
type Response struct {
	Status    int    `json:"status"`
	SchemaRef string `json:"schemaRef,omitempty"`
	Schema    any    `json:"schema,omitempty"`
	IsArray   bool   `json:"isArray,omitempty"`
}
