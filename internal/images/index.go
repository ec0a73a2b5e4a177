package images

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// VariantIndex persists generated variant sets in SQLite so repeated builds
// skip regeneration for unchanged sources.
// Use ":memory:" for an in-memory index.
type VariantIndex struct {
	db *sql.DB
	mu sync.RWMutex
}

// OpenVariantIndex opens (and initializes) the index database at dbPath.
func OpenVariantIndex(dbPath string) (*VariantIndex, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open variant index: %w", err)
	}

	idx := &VariantIndex{db: db}
	if err := idx.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize variant index schema: %w", err)
	}
	return idx, nil
}

func (x *VariantIndex) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS variants (
		source_path TEXT PRIMARY KEY,
		source_hash TEXT NOT NULL,
		variants BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_source_hash ON variants(source_hash);
	`
	_, err := x.db.Exec(schema)
	return err
}

// Put records (or replaces) the variant set for a source image.
func (x *VariantIndex) Put(ctx context.Context, set VariantSet) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	payload, err := json.Marshal(set.Variants)
	if err != nil {
		return fmt.Errorf("marshal variants: %w", err)
	}

	_, err = x.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO variants (source_path, source_hash, variants, updated_at) VALUES (?, ?, ?, ?)",
		set.Source, set.Hash, payload, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert variants: %w", err)
	}
	return nil
}

// Get retrieves the recorded variant set for a source image.
func (x *VariantIndex) Get(ctx context.Context, sourcePath string) (VariantSet, bool, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var (
		hash    string
		payload []byte
	)
	err := x.db.QueryRowContext(ctx,
		"SELECT source_hash, variants FROM variants WHERE source_path = ?",
		sourcePath,
	).Scan(&hash, &payload)
	if err == sql.ErrNoRows {
		return VariantSet{}, false, nil
	}
	if err != nil {
		return VariantSet{}, false, fmt.Errorf("query variants: %w", err)
	}

	set := VariantSet{Source: sourcePath, Hash: hash}
	if err := json.Unmarshal(payload, &set.Variants); err != nil {
		return VariantSet{}, false, fmt.Errorf("unmarshal variants: %w", err)
	}
	return set, true, nil
}

// Prune removes index rows whose source path is not in keep. Returns the
// number of rows removed.
func (x *VariantIndex) Prune(ctx context.Context, keep map[string]bool) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	rows, err := x.db.QueryContext(ctx, "SELECT source_path FROM variants")
	if err != nil {
		return 0, fmt.Errorf("query variant sources: %w", err)
	}
	var stale []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan variant source: %w", err)
		}
		if !keep[p] {
			stale = append(stale, p)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate variant sources: %w", err)
	}

	for _, p := range stale {
		if _, err := x.db.ExecContext(ctx, "DELETE FROM variants WHERE source_path = ?", p); err != nil {
			return 0, fmt.Errorf("delete variants for %s: %w", p, err)
		}
	}
	return len(stale), nil
}

// Close closes the database connection.
func (x *VariantIndex) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.db.Close()
}
