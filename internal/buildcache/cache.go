// Package buildcache provides an incremental compilation cache for apigraph.
//
// When neither the config nor any input changed since the last successful
// run, the compile command can skip the whole pipeline and leave the emitted
// artifacts in place. The cache is intentionally conservative: if ANY check
// fails, the full pipeline runs from scratch. There are no partial
// invalidation shortcuts, because a type change can affect any operation
// that references it and we don't track the graph at that granularity.
package buildcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SchemaVersion is bumped when the cache format or any artifact format
// changes. A mismatch forces a full rebuild, ensuring binary upgrades don't
// leave stale outputs behind.
const SchemaVersion = 1

// Cache represents the on-disk compilation cache. It records what was true
// when the pipeline last ran successfully.
type Cache struct {
	// V is the schema version. Must match SchemaVersion or cache is invalid.
	V int `json:"v"`

	// ConfigHash is the SHA-256 hex digest of the config file content.
	// Empty string means no config file was used.
	ConfigHash string `json:"configHash"`

	// InputHashes maps each input file path to the SHA-256 hex digest of
	// its content at compile time.
	InputHashes map[string]string `json:"inputHashes,omitempty"`

	// Outputs lists the paths of emitted artifacts that must still exist
	// on disk for the cache to be valid.
	Outputs []string `json:"outputs"`
}

// CachePath returns the cache file path inside the output directory. The
// cache lives next to the artifacts so that deleting the output directory
// also removes the cache, guaranteeing a fresh build.
func CachePath(outDir string) string {
	return filepath.Join(outDir, ".apigraph-cache")
}

// Load reads and parses a cache file from disk.
// Returns nil if the file doesn't exist, is unreadable, or is invalid JSON.
// Callers should treat nil as "cache miss" and run the full pipeline.
func Load(path string) *Cache {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var c Cache
	if err := json.Unmarshal(data, &c); err != nil {
		return nil
	}

	return &c
}

// Save writes the cache to disk atomically (write to temp, rename).
// Returns an error if the write fails, but callers may choose to log and
// continue (a failed cache save just means the next build won't benefit
// from caching).
func Save(path string, cache *Cache) error {
	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling cache: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating cache directory %s: %w", dir, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing cache temp file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming cache file: %w", err)
	}

	return nil
}

// Delete removes the cache file from disk. Errors are ignored (file may not exist).
func Delete(path string) {
	os.Remove(path)
}

// IsValid checks whether the cache can be trusted to skip compilation.
// ALL of the following must be true simultaneously:
//
//  1. Schema version matches (catches binary upgrades)
//  2. Config hash matches current config file content
//  3. Every recorded input hash matches the file's current content
//  4. All emitted artifacts still exist on disk
func (c *Cache) IsValid(currentConfigHash string, currentInputHashes map[string]string) bool {
	if c == nil {
		return false
	}

	if c.V != SchemaVersion {
		return false
	}

	if c.ConfigHash != currentConfigHash {
		return false
	}

	if len(c.InputHashes) != len(currentInputHashes) {
		return false
	}
	for path, hash := range currentInputHashes {
		if c.InputHashes[path] != hash {
			return false
		}
	}

	for _, path := range c.Outputs {
		if _, err := os.Stat(path); err != nil {
			return false
		}
	}

	return true
}

// HashFile computes the SHA-256 hex digest of a file's contents.
// Returns empty string if the file doesn't exist or can't be read.
func HashFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// New creates a new Cache with the current schema version.
func New(configHash string, inputHashes map[string]string, outputs []string) *Cache {
	return &Cache{
		V:           SchemaVersion,
		ConfigHash:  configHash,
		InputHashes: inputHashes,
		Outputs:     outputs,
	}
}
