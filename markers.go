// Package apigraph provides the parameter marker types the source scanner
// recognizes on handler signatures. A marker pins an argument to one request
// source; unmarked parameters are classified by path-placeholder matching
// and HTTP method defaults.
//
// Markers carry no behavior. Handlers read the wrapped value through the
// Value field:
//
//	func (c *ItemsController) List(q apigraph.Query[ListFilter]) ([]Item, error) {
//		return c.svc.List(q.Value)
//	}
package apigraph

// Query binds a parameter to the query string. Object-typed values expand to
// one binding per property unless wrapped in DeepObject.
type Query[T any] struct{ Value T }

// Header binds a parameter to a request header.
type Header[T any] struct{ Value T }

// Cookie binds a parameter to a request cookie.
type Cookie[T any] struct{ Value T }

// Body binds a parameter to the request body.
type Body[T any] struct{ Value T }

// DeepObject binds an object-typed parameter to the query string with
// deep-object encoding (`filter[role]=admin`) instead of per-property
// expansion.
type DeepObject[T any] struct{ Value T }
