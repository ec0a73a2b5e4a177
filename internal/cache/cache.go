// Package cache persists per-page artifact fingerprints between builds so
// unchanged pages can be skipped. Corruption never fails a build: the cache
// degrades to "build everything".
package cache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"time"
)

// Version is the cache schema version. A mismatch on load discards the cache
// and forces a cold rebuild rather than attempting a partial-schema read.
const Version = 2

// DefaultPath is the project-relative cache file location.
const DefaultPath = ".nitro/cache.json"

// Entry records what one page's output was built from.
type Entry struct {
	// ArtifactFingerprints maps artifact path to its short content hash at
	// build time. The entry is valid iff this map equals the page's current
	// dependency set exactly; additions, removals, and changes all mismatch.
	ArtifactFingerprints map[string]string `json:"artifact_fingerprints"`
	// OutputHash is the short content hash of the written output file.
	OutputHash string    `json:"output_hash"`
	BuiltAt    time.Time `json:"built_at"`
}

type fileFormat struct {
	Version    int              `json:"version"`
	ConfigHash string           `json:"config_hash,omitempty"`
	Entries    map[string]Entry `json:"entries"`
	LastBuild  time.Time        `json:"last_build"`
}

// Cache is the in-memory build cache. It is mutated only by the build
// coordinator; workers read the pre-classification snapshot.
type Cache struct {
	configHash string
	entries    map[string]Entry
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[string]Entry)}
}

// Load reads the persisted cache. Any read or parse failure, and any schema
// version mismatch, yields an empty cache — staleness detection is a
// performance optimization, never a correctness requirement.
func Load(path string) *Cache {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("Build cache unreadable, rebuilding everything", "path", path, "error", err)
		}
		return New()
	}

	var ff fileFormat
	if err := json.Unmarshal(data, &ff); err != nil {
		slog.Warn("Build cache corrupted, rebuilding everything", "path", path, "error", err)
		return New()
	}
	if ff.Version != Version {
		slog.Info("Build cache schema version mismatch, rebuilding everything",
			"found", ff.Version, "want", Version)
		return New()
	}
	if ff.Entries == nil {
		ff.Entries = make(map[string]Entry)
	}
	return &Cache{configHash: ff.ConfigHash, entries: ff.Entries}
}

// Entry returns the recorded entry for an output path.
func (c *Cache) Entry(outputPath string) (Entry, bool) {
	e, ok := c.entries[outputPath]
	return e, ok
}

// Len returns the number of recorded entries.
func (c *Cache) Len() int { return len(c.entries) }

// ConfigHash returns the recorded config fingerprint from the last build.
func (c *Cache) ConfigHash() string { return c.configHash }

// IsStale reports whether the page at outputPath must be rebuilt given its
// current dependency set. Pages without an entry are stale; any fingerprint
// difference, including added or deleted artifacts, is stale.
func (c *Cache) IsStale(outputPath string, currentDeps map[string]string) bool {
	e, ok := c.entries[outputPath]
	if !ok {
		return true
	}
	return !maps.Equal(e.ArtifactFingerprints, currentDeps)
}

// Reset discards all entries. Used when the global configuration changed and
// the cache itself may no longer be trustworthy.
func (c *Cache) Reset() {
	c.entries = make(map[string]Entry)
	c.configHash = ""
}

// Record upserts the entry for a successfully built page. The change is
// persisted only by Commit.
func (c *Cache) Record(outputPath string, deps map[string]string, outputHash string) {
	c.entries[outputPath] = Entry{
		ArtifactFingerprints: deps,
		OutputHash:           outputHash,
		BuiltAt:              time.Now().UTC(),
	}
}

// OutputPaths returns every recorded output path. Order is unspecified.
func (c *Cache) OutputPaths() []string {
	paths := make([]string, 0, len(c.entries))
	for p := range c.entries {
		paths = append(paths, p)
	}
	return paths
}

// Remove drops the entry for an output path, if present.
func (c *Cache) Remove(outputPath string) {
	delete(c.entries, outputPath)
}

// SetConfigHash records the config fingerprint for the run being committed.
func (c *Cache) SetConfigHash(hash string) { c.configHash = hash }

// Commit atomically persists the cache: write to a temp file in the same
// directory, then rename over the previous file. A crash mid-write leaves
// the old cache intact.
func (c *Cache) Commit(path string) error {
	ff := fileFormat{
		Version:    Version,
		ConfigHash: c.configHash,
		Entries:    c.entries,
		LastBuild:  time.Now().UTC(),
	}
	data, err := json.MarshalIndent(ff, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".cache-*.json")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp cache file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("atomic rename cache: %w", err)
	}
	return nil
}
