package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apigraph/apigraph/internal/buildcache"
	"github.com/apigraph/apigraph/internal/config"
	"github.com/apigraph/apigraph/internal/diagnostic"
	"github.com/apigraph/apigraph/internal/emit"
	"github.com/apigraph/apigraph/internal/interchange"
	"github.com/apigraph/apigraph/internal/openapi"
	"github.com/apigraph/apigraph/internal/pipeline"
	"github.com/apigraph/apigraph/internal/scanner"
	"github.com/apigraph/apigraph/internal/transform"
)

// runCompile executes the full compilation:
// front end -> validate -> transforms -> query shapes -> artifacts.
func runCompile(args []string) int {
	compileFlags := flag.NewFlagSet("compile", flag.ExitOnError)

	var (
		configPath string
		document   string
		packages   string
		strict     bool
		quiet      bool
		noCache    bool
	)

	compileFlags.StringVar(&configPath, "config", "", "Path to apigraph config file (apigraph.config.json)")
	compileFlags.StringVar(&document, "document", "", "Interchange document input (overrides config)")
	compileFlags.StringVar(&packages, "packages", "", "Comma-separated Go package patterns to scan (overrides config)")
	compileFlags.BoolVar(&strict, "strict", false, "Treat warnings as errors")
	compileFlags.BoolVar(&quiet, "quiet", false, "Suppress warnings")
	compileFlags.BoolVar(&noCache, "no-cache", false, "Ignore the build cache and always recompile")

	compileFlags.Usage = func() {
		fmt.Println("Usage: apigraph compile [flags]")
		fmt.Println()
		fmt.Println("Flags:")
		compileFlags.PrintDefaults()
	}

	compileFlags.Parse(args)

	// Resolve working directory
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not get working directory: %v\n", err)
		return 1
	}

	// Load config: explicit flag, discovered file, or defaults.
	cfg := config.DefaultConfig()
	configDir := cwd
	resolvedConfigPath := configPath
	if resolvedConfigPath != "" && !filepath.IsAbs(resolvedConfigPath) {
		resolvedConfigPath = filepath.Join(cwd, resolvedConfigPath)
	}
	if resolvedConfigPath == "" {
		resolvedConfigPath = config.Discover(cwd)
	}
	if resolvedConfigPath != "" {
		loaded, loadErr := config.Load(resolvedConfigPath)
		if loadErr != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", loadErr)
			return 1
		}
		cfg = *loaded
		configDir = filepath.Dir(resolvedConfigPath)
		fmt.Fprintf(os.Stderr, "loaded config from %s\n", filepath.Base(resolvedConfigPath))
	}

	// Command-line input overrides replace the configured input wholesale.
	inputOverridden := false
	if document != "" {
		cfg.Input = config.InputConfig{Document: document}
		inputOverridden = true
	}
	if packages != "" {
		cfg.Input = config.InputConfig{Packages: strings.Split(packages, ",")}
		inputOverridden = true
	}

	vr := cfg.ValidateDetailed()
	if !quiet {
		for _, w := range vr.Warnings {
			fmt.Fprintf(os.Stderr, "warning: %s\n", w)
		}
	}
	if !vr.IsValid() {
		for _, e := range vr.Errors {
			fmt.Fprintf(os.Stderr, "error: %s\n", e)
		}
		return 1
	}
	if cfg.Input.Document == "" && len(cfg.Input.Packages) == 0 {
		fmt.Fprintln(os.Stderr, "error: no input: set input.document or input.packages in the config, or pass --document or --packages")
		return 1
	}

	// Artifact paths resolve relative to the config file directory, so a
	// build invoked from anywhere lands outputs next to the config.
	schemaPath := resolvePath(configDir, cfg.Output.Schema)
	manifestPath := resolvePath(configDir, cfg.Output.Manifest)
	openapiPath := ""
	if cfg.Output.OpenAPI != "" {
		openapiPath = resolvePath(configDir, cfg.Output.OpenAPI)
	}
	outputs := []string{schemaPath, manifestPath}
	if openapiPath != "" {
		outputs = append(outputs, openapiPath)
	}

	docPath := ""
	if cfg.Input.Document != "" {
		docPath = resolvePath(configDir, cfg.Input.Document)
	}

	// Build cache: only the document front end has a content-addressable
	// input set. Package scanning recompiles every run, and an input given
	// on the command line bypasses the cache rather than poisoning it.
	cachePath := buildcache.CachePath(filepath.Dir(schemaPath))
	useCache := docPath != "" && !noCache && !inputOverridden
	var configHash string
	var inputHashes map[string]string
	if useCache {
		if resolvedConfigPath != "" {
			configHash = buildcache.HashFile(resolvedConfigPath)
		}
		inputHashes = map[string]string{docPath: buildcache.HashFile(docPath)}
		if cached := buildcache.Load(cachePath); cached.IsValid(configHash, inputHashes) {
			fmt.Fprintln(os.Stderr, "up to date, skipping compilation (use --no-cache to force)")
			return 0
		}
	}

	// Front end: decode the interchange document or scan Go packages.
	var in pipeline.Input
	if docPath != "" {
		doc, decErr := interchange.DecodeFile(docPath)
		if decErr != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", decErr)
			return 1
		}
		in = pipeline.Input{Graph: doc.Graph(), Controllers: doc.Endpoints(), Calls: doc.Calls()}
	} else {
		res, scanErr := scanner.Scan(context.Background(), cfg.Input.Packages, configDir)
		if scanErr != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", scanErr)
			return 1
		}
		in = pipeline.Input{Graph: res.Graph, Controllers: res.Controllers, Calls: res.Calls}
	}
	fmt.Fprintf(os.Stderr, "loaded %d node(s), %d controller(s)\n", in.Graph.Len(), len(in.Controllers))

	coll := diagnostic.NewCollector(strict, quiet)
	result, err := pipeline.Run(in, pipelineOptions(cfg), coll)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	if out := coll.FormatAll(); out != "" {
		fmt.Fprint(os.Stderr, out)
	}
	if coll.HasErrors() {
		fmt.Fprintf(os.Stderr, "compilation failed: %s\n", coll.Summary())
		return 1
	}

	if err := emit.WriteFile(schemaPath, result.Schema); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintf(os.Stderr, "generated schema document: %s\n", cfg.Output.Schema)

	if err := emit.WriteFile(manifestPath, result.Manifest); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintf(os.Stderr, "generated manifest: %s\n", cfg.Output.Manifest)

	if openapiPath != "" {
		doc := openapi.Export(result.Manifest, result.Schema, openapi.Info{
			Title:   cfg.Output.Title,
			Version: cfg.Output.Version,
		})
		if err := emit.WriteFile(openapiPath, doc); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		fmt.Fprintf(os.Stderr, "generated OpenAPI document: %s\n", cfg.Output.OpenAPI)
	}

	if useCache {
		if saveErr := buildcache.Save(cachePath, buildcache.New(configHash, inputHashes, outputs)); saveErr != nil && !quiet {
			fmt.Fprintf(os.Stderr, "warning: saving build cache: %v\n", saveErr)
		}
	}

	result.Stats.Print(os.Stderr)
	return 0
}

// pipelineOptions maps the loaded config onto pipeline options, keeping the
// pipeline defaults wherever the config leaves a knob unset.
func pipelineOptions(cfg config.Config) pipeline.Options {
	opts := pipeline.DefaultOptions()

	opts.Inline = cfg.Transforms.Inline.Enabled
	if cfg.Transforms.Inline.MaxProps > 0 {
		opts.InlineOptions.MaxProps = cfg.Transforms.Inline.MaxProps
	}
	if cfg.Transforms.Inline.SharedMaxProps > 0 {
		opts.InlineOptions.SharedMaxProps = cfg.Transforms.Inline.SharedMaxProps
	}

	opts.Flatten = cfg.Transforms.Flatten.Enabled
	if cfg.Transforms.Flatten.MaxDepth > 0 {
		opts.FlattenOptions.MaxDepth = cfg.Transforms.Flatten.MaxDepth
	}
	if cfg.Transforms.Flatten.MaxProps > 0 {
		opts.FlattenOptions.MaxProps = cfg.Transforms.Flatten.MaxProps
	}
	if cfg.Transforms.Flatten.ConflictScheme != "" {
		opts.FlattenOptions.Scheme = transform.ConflictScheme(cfg.Transforms.Flatten.ConflictScheme)
	}
	if cfg.Transforms.Flatten.Separator != "" {
		opts.FlattenOptions.Separator = cfg.Transforms.Flatten.Separator
	}

	if cfg.QueryShape.MaxDepth > 0 {
		opts.QueryMaxDepth = cfg.QueryShape.MaxDepth
	}
	opts.WrapperTypes = cfg.Schema.WrapperTypes
	opts.SchemaDocument = filepath.Base(cfg.Output.Schema)

	return opts
}

func resolvePath(baseDir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
