// Package manifest emits the post-build artifacts describing the output
// tree: the asset manifest, sitemap.xml and robots.txt.
package manifest

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/nitrosh/nitro-cli/internal/hashing"
)

// FileName is the asset manifest location inside the output tree.
const FileName = "asset-manifest.json"

// Asset is one published file in the manifest.
type Asset struct {
	Output string `json:"output"`
	Hash   string `json:"hash"`
	Size   int64  `json:"size"`
}

// AssetManifest describes the output tree. Assets maps logical source paths
// to their published renditions so deploy tooling and templates can resolve
// fingerprinted names; Files covers every file under the output root, keyed
// by output-relative path. The document carries only content-derived fields,
// so rebuilding an unchanged site rewrites identical bytes.
type AssetManifest struct {
	Assets map[string]Asset `json:"assets"`
	Files  map[string]Asset `json:"files"`
}

// ScanOutput hashes every file under the output root except the manifest
// itself. Keys are slash-separated paths relative to outputDir.
func ScanOutput(outputDir string) (map[string]Asset, error) {
	files := make(map[string]Asset)
	err := filepath.WalkDir(outputDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(outputDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == FileName {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		fp, err := hashing.HashFile(path)
		if err != nil {
			return err
		}
		files[rel] = Asset{Output: rel, Hash: fp.Short(), Size: info.Size()}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan output tree: %w", err)
	}
	return files, nil
}

// WriteAssetManifest scans the output tree and serializes the manifest into
// it. Must run after every other output file is in place. Map keys marshal
// sorted, which keeps repeated no-change builds byte-identical.
func WriteAssetManifest(outputDir string, assets map[string]Asset) error {
	files, err := ScanOutput(outputDir)
	if err != nil {
		return err
	}
	m := AssetManifest{Assets: assets, Files: files}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal asset manifest: %w", err)
	}
	data = append(data, '\n')

	dest := filepath.Join(outputDir, FileName)
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return fmt.Errorf("write asset manifest: %w", err)
	}
	return nil
}

// ReadAssetManifest loads a previously written manifest.
func ReadAssetManifest(outputDir string) (*AssetManifest, error) {
	data, err := os.ReadFile(filepath.Join(outputDir, FileName))
	if err != nil {
		return nil, fmt.Errorf("read asset manifest: %w", err)
	}
	var m AssetManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse asset manifest: %w", err)
	}
	return &m, nil
}
