// Package config loads and validates the apigraph configuration file. Every
// transform threshold and policy knob of the compiler lives here; the
// pipeline never reads files or the environment itself.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileName is the config file Discover looks for.
const FileName = "apigraph.config.json"

// Config represents the apigraph configuration.
type Config struct {
	Input      InputConfig      `json:"input"`
	Transforms TransformsConfig `json:"transforms"`
	QueryShape QueryShapeConfig `json:"queryShape,omitempty"`
	Schema     SchemaConfig     `json:"schema,omitempty"`
	Output     OutputConfig     `json:"output"`
}

// InputConfig selects the compilation front end: an interchange document or
// Go packages to scan. Exactly one must be set.
type InputConfig struct {
	Document string   `json:"document,omitempty"`
	Packages []string `json:"packages,omitempty"`
}

// TransformsConfig tunes the canonicalizing passes. Deduplication always
// runs; inlining and flattening are optional.
type TransformsConfig struct {
	Inline  InlineConfig  `json:"inline"`
	Flatten FlattenConfig `json:"flatten"`
}

// InlineConfig bounds the inlining transform.
type InlineConfig struct {
	Enabled        bool `json:"enabled"`
	MaxProps       int  `json:"maxProps,omitempty"`
	SharedMaxProps int  `json:"sharedMaxProps,omitempty"`
}

// FlattenConfig bounds the flattening transform.
type FlattenConfig struct {
	Enabled  bool `json:"enabled"`
	MaxDepth int  `json:"maxDepth,omitempty"`
	MaxProps int  `json:"maxProps,omitempty"`
	// ConflictScheme is "prefix" (camelCase join on the owning property
	// name) or "separator" (join with Separator).
	ConflictScheme string `json:"conflictScheme,omitempty"`
	Separator      string `json:"separator,omitempty"`
}

// QueryShapeConfig bounds the query-shape analyzer.
type QueryShapeConfig struct {
	MaxDepth int `json:"maxDepth,omitempty"`
}

// SchemaConfig tunes schema emission.
type SchemaConfig struct {
	// WrapperTypes are generic names unwrapped to their payload argument.
	WrapperTypes []string `json:"wrapperTypes,omitempty"`
}

// OutputConfig names the emitted artifacts.
type OutputConfig struct {
	Schema   string `json:"schema"`
	Manifest string `json:"manifest"`
	// OpenAPI, when set, additionally emits an OpenAPI 3.1 document.
	OpenAPI string `json:"openapi,omitempty"`
	Title   string `json:"title,omitempty"`
	Version string `json:"version,omitempty"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Transforms: TransformsConfig{
			Inline: InlineConfig{
				Enabled:        true,
				MaxProps:       8,
				SharedMaxProps: 4,
			},
			Flatten: FlattenConfig{
				MaxDepth:       2,
				MaxProps:       32,
				ConflictScheme: "prefix",
				Separator:      "_",
			},
		},
		QueryShape: QueryShapeConfig{MaxDepth: 8},
		Schema: SchemaConfig{
			WrapperTypes: []string{"Promise", "Task", "Future", "Observable"},
		},
		Output: OutputConfig{
			Schema:   "dist/schema.json",
			Manifest: "dist/manifest.json",
		},
	}
}

// Load reads and parses an apigraph config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %q: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config in %q: %w", path, err)
	}

	return &config, nil
}

// Discover returns the path of the config file in dir, or "" when none
// exists.
func Discover(dir string) string {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}

// Validate checks the config for logical errors.
func (c *Config) Validate() error {
	if c.Input.Document != "" && len(c.Input.Packages) > 0 {
		return fmt.Errorf("input.document and input.packages are mutually exclusive")
	}

	if c.Output.Schema == "" {
		return fmt.Errorf("output.schema must not be empty")
	}
	if c.Output.Manifest == "" {
		return fmt.Errorf("output.manifest must not be empty")
	}
	for _, out := range []string{c.Output.Schema, c.Output.Manifest, c.Output.OpenAPI} {
		if out == "" {
			continue
		}
		if ext := filepath.Ext(out); ext != ".json" {
			return fmt.Errorf("output path %q must have a .json extension, got %q", out, ext)
		}
	}

	if c.Transforms.Flatten.Enabled {
		switch c.Transforms.Flatten.ConflictScheme {
		case "", "prefix", "separator":
		default:
			return fmt.Errorf("transforms.flatten.conflictScheme must be %q or %q, got %q",
				"prefix", "separator", c.Transforms.Flatten.ConflictScheme)
		}
		if c.Transforms.Flatten.ConflictScheme == "separator" && c.Transforms.Flatten.Separator == "" {
			return fmt.Errorf("transforms.flatten.separator must not be empty with the separator scheme")
		}
	}

	if c.QueryShape.MaxDepth < 0 {
		return fmt.Errorf("queryShape.maxDepth must not be negative")
	}

	return nil
}
