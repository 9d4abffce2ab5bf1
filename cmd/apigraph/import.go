package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/apigraph/apigraph/internal/diagnostic"
	"github.com/apigraph/apigraph/internal/emit"
	"github.com/apigraph/apigraph/internal/openapi"
	"github.com/apigraph/apigraph/internal/pipeline"
)

// runImport converts an existing OpenAPI 3.x document into apigraph
// artifacts: the document's component schemas become the type graph, its
// operations become the manifest, and both go through the regular pipeline
// so the output is canonical (deduped, optionally inlined).
func runImport(args []string) int {
	importFlags := flag.NewFlagSet("import", flag.ExitOnError)

	var (
		outSchema   string
		outManifest string
		strict      bool
		quiet       bool
	)

	importFlags.StringVar(&outSchema, "schema", "dist/schema.json", "Output path for the schema document")
	importFlags.StringVar(&outManifest, "manifest", "dist/manifest.json", "Output path for the manifest")
	importFlags.BoolVar(&strict, "strict", false, "Treat warnings as errors")
	importFlags.BoolVar(&quiet, "quiet", false, "Suppress warnings")

	importFlags.Usage = func() {
		fmt.Println("Usage: apigraph import [flags] <openapi.json|openapi.yaml>")
		fmt.Println()
		fmt.Println("Flags:")
		importFlags.PrintDefaults()
	}

	importFlags.Parse(args)

	if importFlags.NArg() != 1 {
		importFlags.Usage()
		return 1
	}
	path := importFlags.Arg(0)

	res, err := openapi.ImportFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintf(os.Stderr, "imported %d node(s), %d controller(s)\n", res.Graph.Len(), len(res.Controllers))

	// Imported documents carry no call graph, so query-shape analysis is a
	// no-op; inlining still canonicalizes single-use component refs.
	opts := pipeline.DefaultOptions()
	opts.SchemaDocument = filepath.Base(outSchema)

	coll := diagnostic.NewCollector(strict, quiet)
	result, err := pipeline.Run(pipeline.Input{Graph: res.Graph, Controllers: res.Controllers}, opts, coll)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	if out := coll.FormatAll(); out != "" {
		fmt.Fprint(os.Stderr, out)
	}
	if coll.HasErrors() {
		fmt.Fprintf(os.Stderr, "import failed: %s\n", coll.Summary())
		return 1
	}

	if err := emit.WriteFile(outSchema, result.Schema); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintf(os.Stderr, "generated schema document: %s\n", outSchema)

	if err := emit.WriteFile(outManifest, result.Manifest); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintf(os.Stderr, "generated manifest: %s\n", outManifest)

	return 0
}
