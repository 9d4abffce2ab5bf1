// Package openapi converts between the compiler's artifacts and OpenAPI 3.1
// documents: Export renders a manifest plus schema document as OpenAPI, and
// Import loads an existing OpenAPI document back into a type graph and
// endpoint declarations so the transform pipeline can renormalize it.
package openapi

import (
	"fmt"

	"github.com/apigraph/apigraph/internal/schema"
)

// ComponentRefPrefix is where exported component schemas live inside an
// OpenAPI document.
const ComponentRefPrefix = "#/components/schemas/"

// Document represents an OpenAPI 3.1 document.
type Document struct {
	OpenAPI    string               `json:"openapi"`
	Info       Info                 `json:"info"`
	Paths      map[string]*PathItem `json:"paths"`
	Components *Components          `json:"components,omitempty"`
	Tags       []Tag                `json:"tags,omitempty"`
}

// Info holds API metadata.
type Info struct {
	Title   string `json:"title"`
	Version string `json:"version"`
}

// PathItem holds the operations for a single path.
type PathItem struct {
	Get     *Operation `json:"get,omitempty"`
	Post    *Operation `json:"post,omitempty"`
	Put     *Operation `json:"put,omitempty"`
	Delete  *Operation `json:"delete,omitempty"`
	Patch   *Operation `json:"patch,omitempty"`
	Head    *Operation `json:"head,omitempty"`
	Options *Operation `json:"options,omitempty"`
}

// Operation represents an HTTP operation.
type Operation struct {
	OperationID string       `json:"operationId,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
	Parameters  []Parameter  `json:"parameters,omitempty"`
	RequestBody *RequestBody `json:"requestBody,omitempty"`
	Responses   Responses    `json:"responses"`
}

// Parameter represents an OpenAPI parameter. Exactly one of Schema and
// Content is set: Content carries object-like values that travel as an
// encoded media-type string.
type Parameter struct {
	Name     string               `json:"name"`
	In       string               `json:"in"` // "query", "path", "header", "cookie"
	Required bool                 `json:"required"`
	Style    string               `json:"style,omitempty"`
	Explode  *bool                `json:"explode,omitempty"`
	Schema   *schema.Schema       `json:"schema,omitempty"`
	Content  map[string]MediaType `json:"content,omitempty"`
}

// RequestBody represents an OpenAPI request body.
type RequestBody struct {
	Required bool                 `json:"required"`
	Content  map[string]MediaType `json:"content"`
}

// MediaType holds the schema for a content type.
type MediaType struct {
	Schema *schema.Schema `json:"schema"`
}

// Responses maps status codes to response objects.
type Responses map[string]*Response

// Response represents an OpenAPI response.
type Response struct {
	Description string               `json:"description"`
	Content     map[string]MediaType `json:"content,omitempty"`
}

// Components holds reusable schemas.
type Components struct {
	Schemas map[string]*schema.Schema `json:"schemas,omitempty"`
}

// Tag represents an OpenAPI tag.
type Tag struct {
	Name string `json:"name"`
}

// statusCodeString converts an integer status code to its map key.
func statusCodeString(code int) string {
	if code == 0 {
		return "200"
	}
	return fmt.Sprintf("%d", code)
}

// statusDescription returns a human-readable description for a status code.
func statusDescription(code int) string {
	switch code {
	case 200:
		return "OK"
	case 201:
		return "Created"
	case 204:
		return "No Content"
	case 400:
		return "Bad Request"
	case 401:
		return "Unauthorized"
	case 403:
		return "Forbidden"
	case 404:
		return "Not Found"
	case 500:
		return "Internal Server Error"
	default:
		return "OK"
	}
}
