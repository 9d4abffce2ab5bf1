// Package scanner is the Go source front end: it loads packages, finds
// controller declarations through //api: directives, converts the reachable
// Go types into a type graph, and extracts the symbolic call graph the
// query-shape analyzer consumes.
//
// Directives are line comments on declarations:
//
//	//api:controller /items
//	type ItemsController struct{ ... }
//
//	//api:get /{id}
//	func (c *ItemsController) Get(id string) (Item, error) { ... }
package scanner

import (
	"context"
	"fmt"
	"go/ast"
	"go/types"
	"strings"

	"golang.org/x/tools/go/packages"

	"github.com/apigraph/apigraph/internal/endpoint"
	"github.com/apigraph/apigraph/internal/queryshape"
	"github.com/apigraph/apigraph/internal/typegraph"
)

// MarkerPackage is the import path of the parameter marker types.
const MarkerPackage = "github.com/apigraph/apigraph"

// DirectivePrefix introduces scanner directives in doc comments.
const DirectivePrefix = "//api:"

// Result is everything the scanner hands to the pipeline.
type Result struct {
	Graph       *typegraph.Graph
	Controllers []endpoint.Controller
	Calls       queryshape.CallGraph
}

// Scan loads the packages matching patterns (go command semantics, relative
// to dir when set) and extracts controllers, types and the call graph.
func Scan(ctx context.Context, patterns []string, dir string) (*Result, error) {
	if len(patterns) == 0 {
		return nil, fmt.Errorf("no package patterns specified")
	}

	cfg := &packages.Config{
		Context: ctx,
		Dir:     dir,
		Mode: packages.NeedName |
			packages.NeedFiles |
			packages.NeedCompiledGoFiles |
			packages.NeedImports |
			packages.NeedTypes |
			packages.NeedSyntax |
			packages.NeedTypesInfo,
	}

	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load packages: %w", err)
	}
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no packages found matching %v", patterns)
	}
	for _, pkg := range pkgs {
		if len(pkg.Errors) > 0 {
			return nil, fmt.Errorf("package %s has errors: %v", pkg.PkgPath, pkg.Errors[0])
		}
	}

	s := &scanner{
		pkgs:    pkgs,
		conv:    newTypeConverter(),
		calls:   make(queryshape.CallGraph),
		methods: make(map[string][]handlerDecl),
	}

	if err := s.collect(); err != nil {
		return nil, err
	}

	controllers, err := s.controllers()
	if err != nil {
		return nil, err
	}

	return &Result{Graph: s.conv.graph, Controllers: controllers, Calls: s.calls}, nil
}

type scanner struct {
	pkgs []*packages.Package
	conv *typeConverter

	calls queryshape.CallGraph

	// ctrls are controller declarations in encounter order, keyed for
	// method attachment by package path + type name.
	ctrls   []ctrlDecl
	methods map[string][]handlerDecl
}

type ctrlDecl struct {
	key      string // pkgPath.TypeName
	name     string
	basePath string
}

type handlerDecl struct {
	method string // HTTP method, upper case
	path   string
	fn     *ast.FuncDecl
	pkg    *packages.Package
}

// collect walks every syntax tree once, gathering controller and handler
// directives and the call graph of all function bodies.
func (s *scanner) collect() error {
	for _, pkg := range s.pkgs {
		for _, file := range pkg.Syntax {
			for _, decl := range file.Decls {
				switch d := decl.(type) {
				case *ast.GenDecl:
					if err := s.collectController(pkg, d); err != nil {
						return err
					}
				case *ast.FuncDecl:
					if err := s.collectFunc(pkg, d); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

func (s *scanner) collectController(pkg *packages.Package, d *ast.GenDecl) error {
	for _, spec := range d.Specs {
		ts, ok := spec.(*ast.TypeSpec)
		if !ok {
			continue
		}
		doc := ts.Doc
		if doc == nil {
			doc = d.Doc
		}
		dir, args := directive(doc)
		if dir == "" {
			continue
		}
		if dir != "controller" {
			return fmt.Errorf("%s: directive //api:%s cannot mark a type declaration", pkg.Fset.Position(ts.Pos()), dir)
		}
		if len(args) != 1 || !strings.HasPrefix(args[0], "/") {
			return fmt.Errorf("%s: //api:controller needs a single base path starting with /", pkg.Fset.Position(ts.Pos()))
		}
		s.ctrls = append(s.ctrls, ctrlDecl{
			key:      pkg.PkgPath + "." + ts.Name.Name,
			name:     ts.Name.Name,
			basePath: args[0],
		})
	}
	return nil
}

func (s *scanner) collectFunc(pkg *packages.Package, fn *ast.FuncDecl) error {
	// Every function body joins the call graph so handler chains resolve
	// through service helpers.
	if obj, ok := pkg.TypesInfo.Defs[fn.Name].(*types.Func); ok {
		s.calls[obj.FullName()] = classifyBody(fn, pkg.TypesInfo)
	}

	dir, args := directive(fn.Doc)
	if dir == "" {
		return nil
	}
	method := strings.ToUpper(dir)
	switch method {
	case "GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS":
	default:
		return fmt.Errorf("%s: unknown directive //api:%s", pkg.Fset.Position(fn.Pos()), dir)
	}
	if fn.Recv == nil || len(fn.Recv.List) == 0 {
		return fmt.Errorf("%s: //api:%s directive must mark a controller method", pkg.Fset.Position(fn.Pos()), dir)
	}
	path := "/"
	if len(args) > 0 {
		path = args[0]
	}

	recv := receiverTypeName(fn.Recv.List[0].Type)
	if recv == "" {
		return fmt.Errorf("%s: cannot determine receiver type of %s", pkg.Fset.Position(fn.Pos()), fn.Name.Name)
	}
	key := pkg.PkgPath + "." + recv
	s.methods[key] = append(s.methods[key], handlerDecl{method: method, path: path, fn: fn, pkg: pkg})
	return nil
}

// controllers assembles the endpoint declarations, converting every
// parameter and response type into the graph.
func (s *scanner) controllers() ([]endpoint.Controller, error) {
	out := make([]endpoint.Controller, 0, len(s.ctrls))
	for _, cd := range s.ctrls {
		ctrl := endpoint.Controller{ID: cd.name, BasePath: cd.basePath}
		for _, h := range s.methods[cd.key] {
			op, err := s.operation(cd, h)
			if err != nil {
				return nil, err
			}
			ctrl.Operations = append(ctrl.Operations, *op)
		}
		out = append(out, ctrl)
	}
	return out, nil
}

func (s *scanner) operation(cd ctrlDecl, h handlerDecl) (*endpoint.Operation, error) {
	op := &endpoint.Operation{
		ID:     cd.name + "." + h.fn.Name.Name,
		Method: h.method,
		Path:   h.path,
	}
	if obj, ok := h.pkg.TypesInfo.Defs[h.fn.Name].(*types.Func); ok {
		op.HandlerID = obj.FullName()
	}

	sig, ok := h.pkg.TypesInfo.Defs[h.fn.Name].Type().(*types.Signature)
	if !ok {
		return nil, fmt.Errorf("handler %s has no signature", op.ID)
	}

	params := sig.Params()
	for i := 0; i < params.Len(); i++ {
		p := params.At(i)
		if isContext(p.Type()) {
			continue
		}
		param, err := s.parameter(p)
		if err != nil {
			return nil, fmt.Errorf("handler %s: %w", op.ID, err)
		}
		op.Parameters = append(op.Parameters, *param)
	}

	respType := responseType(sig.Results())
	if respType != nil {
		op.Response = s.conv.convert(respType)
	}
	return op, nil
}

// parameter converts one handler parameter, unwrapping marker generics into
// source and style tags.
func (s *scanner) parameter(p *types.Var) (*endpoint.Parameter, error) {
	t := p.Type()
	param := &endpoint.Parameter{Name: p.Name()}

	if name, arg := markerInstance(t); name != "" {
		switch name {
		case "Query":
			param.Source = endpoint.SourceQuery
		case "Header":
			param.Source = endpoint.SourceHeader
		case "Cookie":
			param.Source = endpoint.SourceCookie
		case "Body":
			param.Source = endpoint.SourceBody
		case "DeepObject":
			param.Source = endpoint.SourceQuery
			param.Style = endpoint.StyleDeepObject
		default:
			return nil, fmt.Errorf("unknown marker apigraph.%s on parameter %q", name, p.Name())
		}
		t = arg
	}

	if ptr, ok := t.(*types.Pointer); ok {
		param.Optional = true
		t = ptr.Elem()
	}

	param.Type = s.conv.convert(t)
	return param, nil
}

// markerInstance reports whether t is an instantiation of one of the root
// package's marker generics, returning the marker name and its argument.
func markerInstance(t types.Type) (string, types.Type) {
	named, ok := t.(*types.Named)
	if !ok {
		return "", nil
	}
	obj := named.Obj()
	if obj == nil || obj.Pkg() == nil || obj.Pkg().Path() != MarkerPackage {
		return "", nil
	}
	args := named.TypeArgs()
	if args == nil || args.Len() != 1 {
		return "", nil
	}
	return obj.Name(), args.At(0)
}

// responseType picks the handler's payload result: the first result that is
// not an error ((T, error), (T), and (error) are the supported shapes).
func responseType(results *types.Tuple) types.Type {
	for i := 0; i < results.Len(); i++ {
		t := results.At(i).Type()
		if isError(t) {
			continue
		}
		return t
	}
	return nil
}

func isError(t types.Type) bool {
	named, ok := t.(*types.Named)
	return ok && named.Obj() != nil && named.Obj().Pkg() == nil && named.Obj().Name() == "error"
}

func isContext(t types.Type) bool {
	named, ok := t.(*types.Named)
	if !ok || named.Obj() == nil || named.Obj().Pkg() == nil {
		return false
	}
	return named.Obj().Pkg().Path() == "context" && named.Obj().Name() == "Context"
}

// directive extracts the //api: directive of a doc comment, split into its
// verb and arguments. Returns "" when the doc carries none.
func directive(doc *ast.CommentGroup) (string, []string) {
	if doc == nil {
		return "", nil
	}
	for _, c := range doc.List {
		if !strings.HasPrefix(c.Text, DirectivePrefix) {
			continue
		}
		text := strings.TrimPrefix(c.Text, DirectivePrefix)
		parts := strings.Fields(text)
		if len(parts) == 0 {
			return "", nil
		}
		return parts[0], parts[1:]
	}
	return "", nil
}

func receiverTypeName(expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.Ident:
		return e.Name
	case *ast.StarExpr:
		return receiverTypeName(e.X)
	case *ast.IndexExpr:
		return receiverTypeName(e.X)
	}
	return ""
}
