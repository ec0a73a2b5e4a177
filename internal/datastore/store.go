package datastore

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Store holds all site data keyed by the data file's path relative to the
// data root, without extension, with path separators mapped to dots. A file
// "src/data/site/authors.yaml" is addressable as "site.authors.<path>".
type Store struct {
	root Value
}

// Load walks the data root and parses every *.json, *.yaml and *.yml file.
// A missing data root yields an empty store.
func Load(dataDir string) (*Store, error) {
	files := make(map[string]Value)

	err := filepath.WalkDir(dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".json" && ext != ".yaml" && ext != ".yml" {
			return nil
		}

		val, err := parseFile(path, ext)
		if err != nil {
			return fmt.Errorf("parse data file %s: %w", path, err)
		}

		rel, err := filepath.Rel(dataDir, path)
		if err != nil {
			return err
		}
		key := strings.TrimSuffix(rel, filepath.Ext(rel))
		key = strings.ReplaceAll(filepath.ToSlash(key), "/", ".")
		files[key] = val
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			slog.Debug("No data directory, using empty store", "dir", dataDir)
			return &Store{root: Map(map[string]Value{})}, nil
		}
		return nil, err
	}

	root := map[string]Value{}
	for key, val := range files {
		insert(root, strings.Split(key, "."), val)
	}
	return &Store{root: Map(root)}, nil
}

func insert(m map[string]Value, segs []string, val Value) {
	if len(segs) == 1 {
		m[segs[0]] = val
		return
	}
	child, ok := m[segs[0]]
	childMap, isMap := child.AsMap()
	if !ok || !isMap {
		childMap = map[string]Value{}
	}
	insert(childMap, segs[1:], val)
	m[segs[0]] = Map(childMap)
}

func parseFile(path, ext string) (Value, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Null(), err
	}

	var raw any
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &raw); err != nil {
			return Null(), err
		}
	default:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Null(), err
		}
	}
	return FromAny(raw), nil
}

// GetPath resolves a dotted path against the loaded data tree.
func (s *Store) GetPath(path string) (Value, error) {
	return s.root.GetPath(path)
}

// Root returns the full data tree.
func (s *Store) Root() Value { return s.root }
