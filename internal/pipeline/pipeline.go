// Package pipeline runs one compilation: validation, cycle analysis, the
// canonicalizing transforms, query-shape analysis, and artifact emission, in
// strict dependency order. A pipeline owns its graph for the duration of the
// run; nothing here is safe for concurrent use.
package pipeline

import (
	"fmt"
	"time"

	"github.com/apigraph/apigraph/internal/diagnostic"
	"github.com/apigraph/apigraph/internal/endpoint"
	"github.com/apigraph/apigraph/internal/manifest"
	"github.com/apigraph/apigraph/internal/queryshape"
	"github.com/apigraph/apigraph/internal/schema"
	"github.com/apigraph/apigraph/internal/transform"
	"github.com/apigraph/apigraph/internal/typegraph"
)

// Options selects and bounds the pipeline stages.
type Options struct {
	// Inline enables the inlining transform.
	Inline bool
	// Flatten enables the flattening transform.
	Flatten bool

	InlineOptions  transform.InlineOptions
	FlattenOptions transform.FlattenOptions

	// QueryMaxDepth bounds query-shape call-chain traversal.
	QueryMaxDepth int

	// WrapperTypes names the transparent wrapper generics for emission.
	WrapperTypes []string

	// SchemaDocument is the name the manifest records for its schema
	// artifact pointer.
	SchemaDocument string
}

// DefaultOptions returns the stage configuration used when the config does
// not override it.
func DefaultOptions() Options {
	return Options{
		Inline:         true,
		Flatten:        false,
		InlineOptions:  transform.DefaultInlineOptions(),
		FlattenOptions: transform.DefaultFlattenOptions(),
		QueryMaxDepth:  queryshape.DefaultMaxDepth,
		SchemaDocument: "schema.json",
	}
}

// Input is everything a front end hands to one compilation.
type Input struct {
	Graph       *typegraph.Graph
	Controllers []endpoint.Controller
	Calls       queryshape.CallGraph
}

// Result is the outcome of one successful compilation.
type Result struct {
	Schema   *schema.Document
	Manifest *manifest.Manifest
	Stats    *RunStats
}

// Run executes the full compilation. Structural errors abort immediately;
// degraded detections and transform skips land in the run statistics.
func Run(in Input, opts Options, coll *diagnostic.Collector) (*Result, error) {
	if in.Graph == nil {
		return nil, fmt.Errorf("pipeline input has no graph")
	}
	stats := NewRunStats()
	total := time.Now()

	// Validation: the graph must be closed before anything walks it.
	start := time.Now()
	if err := in.Graph.ValidateRefs(); err != nil {
		return nil, err
	}
	stats.Timing.Validate = time.Since(start)

	// Cycle analysis always runs; the transforms consult it.
	start = time.Now()
	cycles := typegraph.AnalyzeCycles(in.Graph)
	stats.Timing.Cycles = time.Since(start)
	stats.CycleCount = len(cycles.Cycles)
	stats.NodesInCycles = cycles.NodesInCycles()

	start = time.Now()
	dedupe := transform.Dedupe(in.Graph)
	stats.Timing.Dedupe = time.Since(start)
	stats.DuplicatesRemoved = dedupe.Removed
	if dedupe.Removed > 0 {
		// Operations hold node ids the graph rewrite cannot see; an id
		// pointing at a removed duplicate must follow it to the canonical
		// survivor or every downstream lookup dangles.
		remapEndpoints(in.Controllers, dedupe.Canonical)
		// Node identities changed; transforms need fresh cycle data.
		cycles = typegraph.AnalyzeCycles(in.Graph)
	}

	if opts.Inline {
		start = time.Now()
		inlined := transform.Inline(in.Graph, cycles, opts.InlineOptions)
		stats.Timing.Inline = time.Since(start)
		stats.Inlined = inlined.Inlined
		stats.InlineSkips = len(inlined.Skips)
		for _, skip := range inlined.Skips {
			coll.WarnNode(diagnostic.CategoryTransformSkip, string(skip.Ref),
				fmt.Sprintf("inline skipped (%s): target %s", skip.Reason, skip.Target))
		}
	}

	if opts.Flatten {
		start = time.Now()
		flattened := transform.Flatten(in.Graph, cycles, opts.FlattenOptions)
		stats.Timing.Flatten = time.Since(start)
		stats.PropertiesFlattened = flattened.PropertiesFlattened
		stats.FlattenConflicts = flattened.ConflictsResolved
		stats.FlattenSkips = len(flattened.Skips)
		for _, skip := range flattened.Skips {
			coll.WarnNode(diagnostic.CategoryTransformSkip, string(skip.Node),
				"flatten skipped ("+skip.Reason+")")
		}
	}

	// Query-shape analysis runs per operation, after all graph rewriting.
	start = time.Now()
	analyzer := queryshape.NewAnalyzer(in.Calls, opts.QueryMaxDepth)
	shapes := make(map[string]*queryshape.Shape)
	for _, ctrl := range in.Controllers {
		for _, op := range ctrl.Operations {
			if op.HandlerID == "" {
				continue
			}
			r := analyzer.Analyze(op.HandlerID)
			if r.Detected {
				shapes[op.ID] = r.Shape
				continue
			}
			coll.WarnOperation(diagnostic.CategoryDegradedDetection, op.ID,
				"query shape not detected ("+r.Reason+"); falling back to declared return type")
		}
	}
	stats.Timing.QueryShape = time.Since(start)
	stats.ShapesDetected, stats.ShapesUndetected = analyzer.Stats()

	// Emission: the manifest classifies arguments first, so the schema
	// emitter knows each operation's body type.
	start = time.Now()
	em := schema.NewEmitter(in.Graph, schema.Options{WrapperTypes: opts.WrapperTypes}, coll)
	mres, err := manifest.Emit(in.Controllers, em, opts.SchemaDocument)
	if err != nil {
		return nil, err
	}
	for ci, ctrl := range in.Controllers {
		for oi, op := range ctrl.Operations {
			shape := shapes[op.ID]
			em.AddOperation(op.ID, mres.BodyByOperation[op.ID], op.Response, shape)
			if shape != nil {
				mres.Manifest.Controllers[ci].Operations[oi].QueryShape = shape
			}
		}
	}
	doc := em.Document()
	if err := manifest.Validate(mres.Manifest, doc); err != nil {
		return nil, err
	}
	stats.Timing.Emit = time.Since(start)
	stats.Timing.Total = time.Since(total)

	return &Result{Schema: doc, Manifest: mres.Manifest, Stats: stats}, nil
}

// remapEndpoints redirects every response and parameter node id held by the
// controllers through the canonical map, following chains.
func remapEndpoints(controllers []endpoint.Controller, canonical map[typegraph.NodeID]typegraph.NodeID) {
	resolve := func(id typegraph.NodeID) typegraph.NodeID {
		for {
			next, ok := canonical[id]
			if !ok {
				return id
			}
			id = next
		}
	}
	for ci := range controllers {
		ops := controllers[ci].Operations
		for oi := range ops {
			ops[oi].Response = resolve(ops[oi].Response)
			params := ops[oi].Parameters
			for pi := range params {
				params[pi].Type = resolve(params[pi].Type)
			}
		}
	}
}
