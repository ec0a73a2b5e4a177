package commands

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nitrosh/nitro-cli/internal/metrics"
)

func testGlobal() *Global {
	return &Global{
		Ctx:      context.Background(),
		Logger:   slog.Default(),
		Recorder: metrics.NoopRecorder{},
	}
}

func TestNewScaffoldsProject(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "mysite")
	cmd := &NewCmd{Name: dir}
	require.NoError(t, cmd.Run(testGlobal(), &CLI{}))

	assert.FileExists(t, filepath.Join(dir, "nitro.yaml"))
	assert.FileExists(t, filepath.Join(dir, "src", "pages", "index.md"))
	assert.FileExists(t, filepath.Join(dir, "src", "components", "header.html"))
	assert.FileExists(t, filepath.Join(dir, ".gitignore"))
}

func TestNewRefusesNonEmptyDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "existing.txt"), []byte("x"), 0o644))

	cmd := &NewCmd{Name: dir}
	assert.Error(t, cmd.Run(testGlobal(), &CLI{}))

	cmd.Force = true
	assert.NoError(t, cmd.Run(testGlobal(), &CLI{}))
}

func TestBuildCommandOverScaffold(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "site")
	require.NoError(t, (&NewCmd{Name: dir}).Run(testGlobal(), &CLI{}))

	cli := &CLI{Config: "nitro.yaml", Dir: dir}
	buildCmd := &BuildCmd{NoImages: true}
	require.NoError(t, buildCmd.Run(testGlobal(), cli))

	assert.FileExists(t, filepath.Join(dir, "build", "index.html"))
	assert.FileExists(t, filepath.Join(dir, "build", "about", "index.html"))
	assert.FileExists(t, filepath.Join(dir, "build", "sitemap.xml"))
}

func TestBuildCommandFailsOnBrokenPage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "site")
	require.NoError(t, (&NewCmd{Name: dir}).Run(testGlobal(), &CLI{}))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "pages", "bad.md"),
		[]byte("---\ntitle: x\nno closing"), 0o644))

	cli := &CLI{Config: "nitro.yaml", Dir: dir}
	err := (&BuildCmd{NoImages: true}).Run(testGlobal(), cli)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pages failed")

	// Healthy pages were still written.
	assert.FileExists(t, filepath.Join(dir, "build", "index.html"))
}

func TestCleanRemovesOutputAndCache(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "site")
	require.NoError(t, (&NewCmd{Name: dir}).Run(testGlobal(), &CLI{}))
	cli := &CLI{Config: "nitro.yaml", Dir: dir}
	require.NoError(t, (&BuildCmd{NoImages: true}).Run(testGlobal(), cli))
	require.DirExists(t, filepath.Join(dir, "build"))

	require.NoError(t, (&CleanCmd{}).Run(testGlobal(), cli))
	assert.NoDirExists(t, filepath.Join(dir, "build"))
	assert.DirExists(t, filepath.Join(dir, ".nitro"))

	require.NoError(t, (&CleanCmd{Cache: true}).Run(testGlobal(), cli))
	assert.NoDirExists(t, filepath.Join(dir, ".nitro"))
}

func TestDisableFlagMapping(t *testing.T) {
	assert.Nil(t, disable(false))
	if v := disable(true); assert.NotNil(t, v) {
		assert.False(t, *v)
	}
}
