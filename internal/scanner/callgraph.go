package scanner

import (
	"go/ast"
	"go/constant"
	"go/types"

	"github.com/apigraph/apigraph/internal/queryshape"
)

// classifyBody reduces one function body to its symbolic description: a
// terminal query-builder chain, a delegation to named targets, or opaque.
// The classification looks only at return statements; side effects before
// the return do not matter for shape inference.
func classifyBody(fn *ast.FuncDecl, info *types.Info) *queryshape.Body {
	if fn.Body == nil {
		return &queryshape.Body{Kind: queryshape.BodyOpaque}
	}

	var shape *queryshape.Shape
	targets := make(map[string]bool)
	var order []string
	opaque := false

	ast.Inspect(fn.Body, func(n ast.Node) bool {
		ret, ok := n.(*ast.ReturnStmt)
		if !ok {
			return true
		}
		for _, expr := range ret.Results {
			// A query chain anywhere inside the returned expression wins;
			// wrappers like exec(chain) are transparent.
			if s := findQueryChain(expr, info); s != nil {
				shape = s
				continue
			}
			call, ok := unparen(expr).(*ast.CallExpr)
			if !ok {
				continue
			}
			if id := calleeID(call, info); id != "" {
				if !targets[id] {
					targets[id] = true
					order = append(order, id)
				}
				continue
			}
			opaque = true
		}
		return true
	})

	switch {
	case shape != nil:
		return &queryshape.Body{Kind: queryshape.BodyQuery, Query: shape}
	case len(order) > 0 && !opaque:
		return &queryshape.Body{Kind: queryshape.BodyCall, Targets: order}
	default:
		return &queryshape.Body{Kind: queryshape.BodyOpaque}
	}
}

// findQueryChain searches an expression for a recognizable query chain.
func findQueryChain(expr ast.Expr, info *types.Info) *queryshape.Shape {
	var shape *queryshape.Shape
	ast.Inspect(expr, func(n ast.Node) bool {
		if shape != nil {
			return false
		}
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		if s := classifyQueryChain(call, info); s != nil {
			shape = s
			return false
		}
		return true
	})
	return shape
}

// classifyQueryChain recognizes the chained query-builder pattern:
//
//	Query("Item").Select("id", "name").Include("owner").Paginate()
//
// The chain root must be a call named Query (or NewQuery) whose first
// argument is a string literal naming the model. Select arguments collect
// into fields, Include into relations; Paginate, Limit and Cursor mark the
// result paginated. Anything else in the chain disqualifies it.
func classifyQueryChain(call *ast.CallExpr, info *types.Info) *queryshape.Shape {
	shape := &queryshape.Shape{}

	current := call
	for {
		sel, ok := current.Fun.(*ast.SelectorExpr)
		if !ok {
			// Chain root: a plain call of the query constructor.
			name := calleeName(current.Fun)
			if name != "Query" && name != "NewQuery" {
				return nil
			}
			model, ok := stringArg(current, 0, info)
			if !ok {
				return nil
			}
			shape.Model = model
			reverse(shape.Fields)
			reverse(shape.Relations)
			return shape
		}

		switch sel.Sel.Name {
		case "Select":
			args, ok := stringArgs(current, info)
			if !ok {
				return nil
			}
			// Collected while walking outside-in; reversed at the root.
			for i := len(args) - 1; i >= 0; i-- {
				shape.Fields = append(shape.Fields, args[i])
			}
		case "Include":
			args, ok := stringArgs(current, info)
			if !ok {
				return nil
			}
			for i := len(args) - 1; i >= 0; i-- {
				shape.Relations = append(shape.Relations, args[i])
			}
		case "Paginate", "Limit", "Cursor":
			shape.Paginated = true
		case "Query", "NewQuery":
			// Constructor accessed through a receiver (c.db.Query(...)).
			model, ok := stringArg(current, 0, info)
			if !ok {
				return nil
			}
			shape.Model = model
			reverse(shape.Fields)
			reverse(shape.Relations)
			return shape
		default:
			return nil
		}

		inner, ok := unparen(sel.X).(*ast.CallExpr)
		if !ok {
			return nil
		}
		current = inner
	}
}

// calleeID resolves a call's target to its package-qualified function id,
// or "" when the target is not a statically known function.
func calleeID(call *ast.CallExpr, info *types.Info) string {
	switch fun := unparen(call.Fun).(type) {
	case *ast.Ident:
		if f, ok := info.Uses[fun].(*types.Func); ok {
			return f.FullName()
		}
	case *ast.SelectorExpr:
		if f, ok := info.Uses[fun.Sel].(*types.Func); ok {
			return f.FullName()
		}
	}
	return ""
}

func calleeName(fun ast.Expr) string {
	switch f := unparen(fun).(type) {
	case *ast.Ident:
		return f.Name
	case *ast.SelectorExpr:
		return f.Sel.Name
	}
	return ""
}

// stringArg evaluates call argument i as a constant string.
func stringArg(call *ast.CallExpr, i int, info *types.Info) (string, bool) {
	if i >= len(call.Args) {
		return "", false
	}
	tv, ok := info.Types[call.Args[i]]
	if !ok || tv.Value == nil || tv.Value.Kind() != constant.String {
		return "", false
	}
	return constant.StringVal(tv.Value), true
}

// stringArgs evaluates all of a call's arguments as constant strings.
func stringArgs(call *ast.CallExpr, info *types.Info) ([]string, bool) {
	out := make([]string, 0, len(call.Args))
	for i := range call.Args {
		s, ok := stringArg(call, i, info)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

func unparen(e ast.Expr) ast.Expr {
	for {
		p, ok := e.(*ast.ParenExpr)
		if !ok {
			return e
		}
		e = p.X
	}
}

func reverse(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
