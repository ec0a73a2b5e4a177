// Package hashing provides content fingerprints for change detection and
// cache-busting filenames.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ShortLen is the number of hex characters used for short fingerprints in
// cache entries and asset filenames.
const ShortLen = 16

// Fingerprint is a hex-encoded SHA-256 digest of some content.
type Fingerprint string

// Short returns the truncated form used in filenames and cache entries.
func (f Fingerprint) Short() string {
	if len(f) <= ShortLen {
		return string(f)
	}
	return string(f)[:ShortLen]
}

// IsZero reports whether the fingerprint is unset.
func (f Fingerprint) IsZero() bool { return f == "" }

// HashBytes computes the fingerprint of an in-memory buffer.
func HashBytes(data []byte) Fingerprint {
	sum := sha256.Sum256(data)
	return Fingerprint(hex.EncodeToString(sum[:]))
}

// HashFile computes the fingerprint of a file's contents. The digest depends
// only on the bytes, never on the path or modification time, so it is stable
// across checkouts and CI machines.
func HashFile(path string) (Fingerprint, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return Fingerprint(hex.EncodeToString(h.Sum(nil))), nil
}

// FingerprintName inserts the short content hash before the file extension,
// e.g. "main.css" -> "main.3a5b1c9d0e2f4a6b.css".
func FingerprintName(name string, fp Fingerprint) string {
	ext := filepath.Ext(name)
	base := name[:len(name)-len(ext)]
	return base + "." + fp.Short() + ext
}
