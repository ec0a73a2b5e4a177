package graph

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nitrosh/nitro-cli/internal/hashing"
)

// Snapshot is the fingerprinted artifact set at the start of one build
// invocation. It is immutable once scanned; workers read it concurrently.
type Snapshot struct {
	// Pages maps page source path (relative, slash-separated) to artifact.
	Pages map[string]Artifact
	// Components and Data are global invalidation triggers: a change to any
	// of them invalidates every page. Per-page attribution would need static
	// import analysis and is deliberately out of scope.
	Components map[string]Artifact
	Data       map[string]Artifact
	// Config is nil when the project has no configuration file.
	Config *Artifact
}

// ScanOptions locates the artifact roots.
type ScanOptions struct {
	ProjectRoot   string
	PagesDir      string
	ComponentsDir string
	DataDir       string
	ConfigPath    string
}

var dataExts = map[string]bool{".json": true, ".yaml": true, ".yml": true}

// Scan fingerprints every artifact under the configured roots. An unreadable
// pages directory is a fatal error; missing components/data directories are
// treated as empty sets.
func Scan(opts ScanOptions) (*Snapshot, error) {
	snap := &Snapshot{
		Pages:      make(map[string]Artifact),
		Components: make(map[string]Artifact),
		Data:       make(map[string]Artifact),
	}

	if _, err := os.Stat(opts.PagesDir); err != nil {
		return nil, fmt.Errorf("read page source tree %s: %w", opts.PagesDir, err)
	}

	if err := scanDir(opts.ProjectRoot, opts.PagesDir, ArtifactPage, snap.Pages, func(path string) bool {
		return strings.HasSuffix(path, ".md") || strings.HasSuffix(path, ".html")
	}); err != nil {
		return nil, fmt.Errorf("scan pages: %w", err)
	}

	if err := scanDir(opts.ProjectRoot, opts.ComponentsDir, ArtifactComponent, snap.Components, func(path string) bool {
		return strings.HasSuffix(path, ".html") || strings.HasSuffix(path, ".css") || strings.HasSuffix(path, ".js")
	}); err != nil {
		return nil, fmt.Errorf("scan components: %w", err)
	}

	if err := scanDir(opts.ProjectRoot, opts.DataDir, ArtifactData, snap.Data, func(path string) bool {
		return dataExts[strings.ToLower(filepath.Ext(path))]
	}); err != nil {
		return nil, fmt.Errorf("scan data: %w", err)
	}

	if opts.ConfigPath != "" {
		if _, err := os.Stat(opts.ConfigPath); err == nil {
			fp, err := hashing.HashFile(opts.ConfigPath)
			if err != nil {
				return nil, fmt.Errorf("hash config: %w", err)
			}
			rel := relPath(opts.ProjectRoot, opts.ConfigPath)
			snap.Config = &Artifact{Path: rel, Kind: ArtifactConfig, Fingerprint: fp}
		}
	}

	return snap, nil
}

func scanDir(root, dir string, kind ArtifactKind, out map[string]Artifact, match func(string) bool) error {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !match(path) {
			return nil
		}
		fp, err := hashing.HashFile(path)
		if err != nil {
			return err
		}
		rel := relPath(root, path)
		out[rel] = Artifact{Path: rel, Kind: kind, Fingerprint: fp}
		return nil
	})
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func relPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	return filepath.ToSlash(rel)
}

// DependencySet returns the closed artifact-fingerprint map for one page:
// its own source file plus every component, every data file, and the config
// file. Map equality against a cache entry's recorded set is the staleness
// test; additions and deletions both surface as inequality.
func (s *Snapshot) DependencySet(pageSource string) map[string]string {
	deps := make(map[string]string, 2+len(s.Components)+len(s.Data))
	if page, ok := s.Pages[pageSource]; ok {
		deps[page.Path] = page.Fingerprint.Short()
	}
	for path, a := range s.Components {
		deps[path] = a.Fingerprint.Short()
	}
	for path, a := range s.Data {
		deps[path] = a.Fingerprint.Short()
	}
	if s.Config != nil {
		deps[s.Config.Path] = s.Config.Fingerprint.Short()
	}
	return deps
}

// ConfigFingerprint returns the short config hash, or "" when absent.
func (s *Snapshot) ConfigFingerprint() string {
	if s.Config == nil {
		return ""
	}
	return s.Config.Fingerprint.Short()
}

// SortedPageSources returns page source paths in deterministic order.
func (s *Snapshot) SortedPageSources() []string {
	paths := make([]string, 0, len(s.Pages))
	for p := range s.Pages {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
