package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherBatchesChanges(t *testing.T) {
	dir := t.TempDir()
	w, err := New([]string{dir}, WithDebounce(50*time.Millisecond))
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("one"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.md"), []byte("two"), 0o644))

	select {
	case batch := <-w.Changes():
		assert.NotEmpty(t, batch)
	case <-time.After(3 * time.Second):
		t.Fatal("no change notification received")
	}
}

func TestWatcherIgnoresHiddenAndTempFiles(t *testing.T) {
	dir := t.TempDir()
	w, err := New([]string{dir}, WithDebounce(50*time.Millisecond))
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "draft.swp"), []byte("x"), 0o644))

	select {
	case batch := <-w.Changes():
		t.Fatalf("unexpected notification: %v", batch)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherPicksUpNewDirectories(t *testing.T) {
	dir := t.TempDir()
	w, err := New([]string{dir}, WithDebounce(50*time.Millisecond))
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(sub, 0o755))

	// Drain the mkdir notification, then change a file inside the new dir.
	select {
	case <-w.Changes():
	case <-time.After(3 * time.Second):
		t.Fatal("no notification for new directory")
	}

	require.NoError(t, os.WriteFile(filepath.Join(sub, "deep.md"), []byte("x"), 0o644))

	select {
	case batch := <-w.Changes():
		assert.NotEmpty(t, batch)
	case <-time.After(3 * time.Second):
		t.Fatal("no notification for nested file")
	}
}

func TestWatcherMissingRootIsSkipped(t *testing.T) {
	w, err := New([]string{filepath.Join(t.TempDir(), "does-not-exist")})
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func TestIgnored(t *testing.T) {
	assert.True(t, ignored("/p/.git"))
	assert.True(t, ignored("/p/file~"))
	assert.True(t, ignored("/p/x.swp"))
	assert.False(t, ignored("/p/index.md"))
}
