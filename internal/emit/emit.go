// Package emit serializes compilation artifacts. Artifact bytes are
// canonical: map keys sort deterministically and the layout is fixed, so two
// runs over the same graph produce byte-identical files.
package emit

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// Marshal renders an artifact as canonical, indented JSON with a trailing
// newline.
func Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v, json.Deterministic(true), jsontext.WithIndent("  "))
	if err != nil {
		return nil, fmt.Errorf("marshaling artifact: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteFile writes an artifact atomically: the bytes land in a temp file
// next to the target and are renamed into place, so a crashed run never
// leaves a half-written artifact.
func WriteFile(path string, v any) error {
	data, err := Marshal(v)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating output directory %s: %w", dir, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing temp artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming artifact into place: %w", err)
	}
	return nil
}
