// Package endpoint holds the declaration model the front ends hand to the
// compiler: controllers grouping operations, operations carrying ordered
// parameters and a response type. The manifest emitter classifies these into
// argument bindings; nothing here is part of the emitted artifacts.
package endpoint

import "github.com/apigraph/apigraph/internal/typegraph"

// Source names where a parameter's value comes from at request time. The
// empty string means the front end saw no explicit marker and classification
// falls through to path matching and method defaults.
type Source string

const (
	SourceUnspecified Source = ""
	SourcePath        Source = "path"
	SourceQuery       Source = "query"
	SourceHeader      Source = "header"
	SourceCookie      Source = "cookie"
	SourceBody        Source = "body"
)

// Valid reports whether s is one of the known source tags.
func (s Source) Valid() bool {
	switch s {
	case SourceUnspecified, SourcePath, SourceQuery, SourceHeader, SourceCookie, SourceBody:
		return true
	}
	return false
}

// Style is a serialization style hint attached by the front end. Only
// StyleDeepObject changes binding emission; the others pass through to the
// binding's serialization descriptor.
type Style string

const (
	StyleNone           Style = ""
	StyleForm           Style = "form"
	StyleSpaceDelimited Style = "spaceDelimited"
	StylePipeDelimited  Style = "pipeDelimited"
	StyleDeepObject     Style = "deepObject"
)

// Valid reports whether s is one of the known styles.
func (s Style) Valid() bool {
	switch s {
	case StyleNone, StyleForm, StyleSpaceDelimited, StylePipeDelimited, StyleDeepObject:
		return true
	}
	return false
}

// Controller groups the operations declared under one base path.
type Controller struct {
	ID         string
	BasePath   string
	Operations []Operation
}

// Operation is one declared endpoint: HTTP method, a path template using
// {name} placeholders, the ordered parameter list, and the declared response
// type.
type Operation struct {
	ID     string
	Method string
	Path   string

	Parameters []Parameter

	// Response references the declared return type node ("" for no body).
	Response typegraph.NodeID

	// Status is the declared success status (0 means the method default:
	// 201 for POST, 200 otherwise).
	Status int

	// HandlerID names the operation's handler in the query-shape call
	// graph ("" when the front end extracted no body).
	HandlerID string
}

// Parameter is one positional parameter of an operation, pre-resolved by
// the front end: a name, a type reference, an optional flag, and the marker
// tag plus style hint when the declaration carried one.
type Parameter struct {
	Name     string
	Type     typegraph.NodeID
	Optional bool
	Source   Source
	Style    Style
}
