package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/apigraph/apigraph/internal/buildcache"
	"github.com/apigraph/apigraph/internal/config"
	"github.com/apigraph/apigraph/internal/transform"
)

const testDocument = `{
  "version": 1,
  "types": [
    {"id": "str", "kind": "primitive", "primitive": "string"},
    {"id": "User", "kind": "object", "name": "User", "properties": [
      {"name": "id", "type": "str", "required": true},
      {"name": "name", "type": "str", "required": true}
    ]},
    {"id": "UserRef", "kind": "reference", "target": "User"}
  ],
  "controllers": [
    {"id": "UsersController", "basePath": "/users", "operations": [
      {"id": "UsersController.Get", "method": "GET", "path": "/{id}",
       "parameters": [{"name": "id", "type": "str", "source": "path"}],
       "response": "UserRef"}
    ]}
  ]
}`

func writeTestProject(t *testing.T, configJSON string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "types.json"), []byte(testDocument), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, config.FileName), []byte(configJSON), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestRunCompileEmitsArtifacts(t *testing.T) {
	dir := writeTestProject(t, `{
	  "input": {"document": "types.json"},
	  "output": {"schema": "out/schema.json", "manifest": "out/manifest.json"}
	}`)

	code := runCompile([]string{"--config", filepath.Join(dir, config.FileName)})
	if code != 0 {
		t.Fatalf("compile exited %d", code)
	}

	for _, name := range []string{"out/schema.json", "out/manifest.json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing artifact %s: %v", name, err)
		}
	}
	if _, err := os.Stat(buildcache.CachePath(filepath.Join(dir, "out"))); err != nil {
		t.Errorf("missing build cache: %v", err)
	}
}

func TestRunCompileOpenAPIOutput(t *testing.T) {
	dir := writeTestProject(t, `{
	  "input": {"document": "types.json"},
	  "output": {
	    "schema": "out/schema.json",
	    "manifest": "out/manifest.json",
	    "openapi": "out/openapi.json",
	    "title": "Users API"
	  }
	}`)

	if code := runCompile([]string{"--config", filepath.Join(dir, config.FileName)}); code != 0 {
		t.Fatalf("compile exited %d", code)
	}
	data, err := os.ReadFile(filepath.Join(dir, "out/openapi.json"))
	if err != nil {
		t.Fatalf("missing openapi artifact: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("empty openapi artifact")
	}
}

func TestRunCompileCacheSkipsSecondRun(t *testing.T) {
	dir := writeTestProject(t, `{
	  "input": {"document": "types.json"},
	  "output": {"schema": "out/schema.json", "manifest": "out/manifest.json"}
	}`)
	cfgArg := []string{"--config", filepath.Join(dir, config.FileName)}

	if code := runCompile(cfgArg); code != 0 {
		t.Fatalf("first compile exited %d", code)
	}
	schemaPath := filepath.Join(dir, "out/schema.json")
	before, err := os.Stat(schemaPath)
	if err != nil {
		t.Fatal(err)
	}

	// Nothing changed: the cached run must leave the artifact untouched.
	if code := runCompile(cfgArg); code != 0 {
		t.Fatalf("second compile exited %d", code)
	}
	after, err := os.Stat(schemaPath)
	if err != nil {
		t.Fatal(err)
	}
	if !after.ModTime().Equal(before.ModTime()) {
		t.Error("cached run rewrote the schema artifact")
	}

	// Changing the input invalidates the cache.
	doc := []byte(testDocument + "\n")
	if err := os.WriteFile(filepath.Join(dir, "types.json"), doc, 0644); err != nil {
		t.Fatal(err)
	}
	if code := runCompile(cfgArg); code != 0 {
		t.Fatalf("third compile exited %d", code)
	}
}

func TestRunCompileNoInput(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, config.FileName)
	if err := os.WriteFile(cfgPath, []byte(`{"output": {"schema": "a.json", "manifest": "b.json"}}`), 0644); err != nil {
		t.Fatal(err)
	}
	if code := runCompile([]string{"--config", cfgPath, "--quiet"}); code == 0 {
		t.Fatal("compile without input should fail")
	}
}

func TestRunCompileBadDocument(t *testing.T) {
	dir := writeTestProject(t, `{
	  "input": {"document": "types.json"},
	  "output": {"schema": "out/schema.json", "manifest": "out/manifest.json"}
	}`)
	if err := os.WriteFile(filepath.Join(dir, "types.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if code := runCompile([]string{"--config", filepath.Join(dir, config.FileName)}); code == 0 {
		t.Fatal("compile of malformed document should fail")
	}
}

func TestPipelineOptionsMapping(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Transforms.Inline.Enabled = false
	cfg.Transforms.Flatten.Enabled = true
	cfg.Transforms.Flatten.ConflictScheme = "separator"
	cfg.Transforms.Flatten.Separator = "__"
	cfg.QueryShape.MaxDepth = 3
	cfg.Output.Schema = "dist/api-schema.json"

	opts := pipelineOptions(cfg)
	if opts.Inline {
		t.Error("inline should be disabled")
	}
	if !opts.Flatten {
		t.Error("flatten should be enabled")
	}
	if opts.FlattenOptions.Scheme != transform.ConflictSeparator || opts.FlattenOptions.Separator != "__" {
		t.Errorf("flatten options = %+v", opts.FlattenOptions)
	}
	if opts.QueryMaxDepth != 3 {
		t.Errorf("QueryMaxDepth = %d", opts.QueryMaxDepth)
	}
	if opts.SchemaDocument != "api-schema.json" {
		t.Errorf("SchemaDocument = %q", opts.SchemaDocument)
	}
}

func TestResolvePath(t *testing.T) {
	if got := resolvePath("/base", "out/x.json"); got != filepath.Join("/base", "out/x.json") {
		t.Errorf("relative = %q", got)
	}
	if got := resolvePath("/base", "/abs/x.json"); got != "/abs/x.json" {
		t.Errorf("absolute = %q", got)
	}
}
