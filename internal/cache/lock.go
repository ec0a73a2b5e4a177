package cache

import (
	"fmt"
	"os"
	"path/filepath"
)

// Lock is a best-effort advisory lock preventing concurrent build
// invocations against the same project. Concurrent builds are not supported;
// the second invocation fails fast instead of corrupting shared state.
type Lock struct {
	path string
}

// AcquireLock creates the lock file exclusively. It returns an error if the
// lock is already held.
func AcquireLock(dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	path := filepath.Join(dir, "build.lock")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("another build appears to be running (lock file %s exists); remove it if stale", path)
		}
		return nil, fmt.Errorf("create lock file: %w", err)
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	_ = f.Close()
	return &Lock{path: path}, nil
}

// Release removes the lock file.
func (l *Lock) Release() {
	if l != nil {
		_ = os.Remove(l.path)
	}
}
