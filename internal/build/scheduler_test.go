package build

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nitrosh/nitro-cli/internal/cache"
	"github.com/nitrosh/nitro-cli/internal/config"
	"github.com/nitrosh/nitro-cli/internal/datastore"
	"github.com/nitrosh/nitro-cli/internal/hooks"
	"github.com/nitrosh/nitro-cli/internal/metrics"
	"github.com/nitrosh/nitro-cli/internal/render"
)

// countingRecorder tallies per-page outcome counters; everything else is a
// no-op.
type countingRecorder struct {
	metrics.NoopRecorder
	pages map[metrics.PageResultLabel]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{pages: make(map[metrics.PageResultLabel]int)}
}

func (r *countingRecorder) IncPageResult(result metrics.PageResultLabel) {
	r.pages[result]++
}

// readTree loads every file under dir keyed by relative path.
func readTree(t *testing.T, dir string) map[string]string {
	t.Helper()
	tree := make(map[string]string)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		tree[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	require.NoError(t, err)
	return tree
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// newProject lays out a minimal site: config, two pages, one component.
func newProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, config.DefaultFile), `
site_name: Fixture
base_url: https://example.com
pipeline:
  optimize_images: false
`)
	writeFile(t, filepath.Join(root, "src", "pages", "index.md"), "---\ntitle: Home\n---\n# Home\n")
	writeFile(t, filepath.Join(root, "src", "pages", "about.md"), "---\ntitle: About\n---\n# About\n")
	writeFile(t, filepath.Join(root, "src", "components", "header.html"), "<header>{{.SiteName}}</header>")
	return root
}

func runBuild(t *testing.T, root string, mutate func(*Options)) (*Result, error) {
	t.Helper()
	cfg, err := config.Load(filepath.Join(root, config.DefaultFile))
	require.NoError(t, err)
	store, err := datastore.Load(cfg.DataDir(root))
	require.NoError(t, err)
	r, err := render.NewMarkdownRenderer(cfg.SiteName, cfg.BaseURL, cfg.ComponentsDir(root), store)
	require.NoError(t, err)

	opts := Options{
		Config:      cfg,
		ProjectRoot: root,
		Renderer:    r,
		Enumerator:  r,
		Workers:     2,
	}
	if mutate != nil {
		mutate(&opts)
	}
	return New(opts).Run(context.Background())
}

func TestBuildProducesOutputsAndManifests(t *testing.T) {
	root := newProject(t)
	res, err := runBuild(t, root, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Built)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, "success", res.Outcome())
	assert.NotEmpty(t, res.BuildID)

	out := filepath.Join(root, "build")
	assert.FileExists(t, filepath.Join(out, "index.html"))
	assert.FileExists(t, filepath.Join(out, "about", "index.html"))
	assert.FileExists(t, filepath.Join(out, "sitemap.xml"))
	assert.FileExists(t, filepath.Join(out, "robots.txt"))
	assert.FileExists(t, filepath.Join(out, "asset-manifest.json"))
	assert.FileExists(t, filepath.Join(root, ".nitro", "cache.json"))

	data, err := os.ReadFile(filepath.Join(out, "about", "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "<header>Fixture</header>")
}

func TestSecondBuildSkipsEverything(t *testing.T) {
	root := newProject(t)
	_, err := runBuild(t, root, nil)
	require.NoError(t, err)

	res, err := runBuild(t, root, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Built)
	assert.Equal(t, 2, res.Skipped)
}

func TestPageEditRebuildsOnlyThatPage(t *testing.T) {
	root := newProject(t)
	_, err := runBuild(t, root, nil)
	require.NoError(t, err)

	writeFile(t, filepath.Join(root, "src", "pages", "about.md"), "---\ntitle: About\n---\n# About v2\n")

	res, err := runBuild(t, root, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Built)
	assert.Equal(t, 1, res.Skipped)
	for _, p := range res.Pages {
		if p.Status == StatusBuilt {
			assert.Equal(t, "src/pages/about.md", p.Unit.SourcePath)
		}
	}
}

func TestComponentChangeRebuildsAllPages(t *testing.T) {
	root := newProject(t)
	_, err := runBuild(t, root, nil)
	require.NoError(t, err)

	writeFile(t, filepath.Join(root, "src", "components", "header.html"), "<header>v2 {{.SiteName}}</header>")

	res, err := runBuild(t, root, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Built)
	assert.Equal(t, 0, res.Skipped)
}

func TestConfigChangeInvalidatesCache(t *testing.T) {
	root := newProject(t)
	_, err := runBuild(t, root, nil)
	require.NoError(t, err)

	writeFile(t, filepath.Join(root, config.DefaultFile), `
site_name: Fixture Renamed
base_url: https://example.com
pipeline:
  optimize_images: false
`)

	res, err := runBuild(t, root, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Built)
}

func TestForceRebuildsEverything(t *testing.T) {
	root := newProject(t)
	_, err := runBuild(t, root, nil)
	require.NoError(t, err)

	res, err := runBuild(t, root, func(o *Options) { o.Force = true })
	require.NoError(t, err)
	assert.Equal(t, 2, res.Built)
}

func TestDraftExcludedInProductionOnly(t *testing.T) {
	root := newProject(t)
	writeFile(t, filepath.Join(root, "src", "pages", "wip.md"), "---\ntitle: WIP\ndraft: true\n---\nsoon\n")

	res, err := runBuild(t, root, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Built)
	draftOut := filepath.Join(root, "build", "wip", "index.html")
	assert.FileExists(t, draftOut)

	// Drafts never reach the sitemap, even in dev builds.
	sm, err := os.ReadFile(filepath.Join(root, "build", "sitemap.xml"))
	require.NoError(t, err)
	assert.NotContains(t, string(sm), "wip")

	res, err = runBuild(t, root, func(o *Options) { o.Production = true })
	require.NoError(t, err)
	assert.Equal(t, 0, res.Built)
	assert.Equal(t, 3, res.Skipped)
	assert.NoFileExists(t, draftOut)
}

func TestUnitFailureIsIsolated(t *testing.T) {
	root := newProject(t)
	writeFile(t, filepath.Join(root, "src", "pages", "broken.md"), "---\ntitle: x\nnever closed")

	res, err := runBuild(t, root, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Built)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, "partial", res.Outcome())
	require.Len(t, res.Errors(), 1)

	var ue *UnitError
	require.ErrorAs(t, res.Errors()[0], &ue)
	assert.Equal(t, "src/pages/broken.md", ue.SourcePath)
}

func TestFailedPageIsRetriedNextBuild(t *testing.T) {
	root := newProject(t)
	writeFile(t, filepath.Join(root, "src", "pages", "broken.md"), "---\ntitle: x\nnever closed")

	_, err := runBuild(t, root, nil)
	require.NoError(t, err)

	writeFile(t, filepath.Join(root, "src", "pages", "broken.md"), "---\ntitle: Fixed\n---\nok\n")

	res, err := runBuild(t, root, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Built)
	assert.Equal(t, 0, res.Failed)
	assert.FileExists(t, filepath.Join(root, "build", "broken", "index.html"))
}

func TestDynamicRouteEnumeration(t *testing.T) {
	root := newProject(t)
	writeFile(t, filepath.Join(root, "src", "data", "posts.yaml"), "- hello\n- second-post\n")
	writeFile(t, filepath.Join(root, "src", "pages", "blog", "[slug].md"),
		"---\ntitle: Post\nenumerate: posts\n---\n# {{param \"slug\"}}\n")

	res, err := runBuild(t, root, nil)
	require.NoError(t, err)

	assert.Equal(t, 4, res.Built)
	assert.FileExists(t, filepath.Join(root, "build", "blog", "hello", "index.html"))
	assert.FileExists(t, filepath.Join(root, "build", "blog", "second-post", "index.html"))
}

func TestDynamicEnumerationFailureFailsFamily(t *testing.T) {
	root := newProject(t)
	// No enumerate key: the route cannot be expanded.
	writeFile(t, filepath.Join(root, "src", "pages", "blog", "[slug].md"), "---\ntitle: Post\n---\nbody\n")

	res, err := runBuild(t, root, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Built)
	assert.Equal(t, 1, res.Failed)
}

func TestRemovedPageIsPruned(t *testing.T) {
	root := newProject(t)
	_, err := runBuild(t, root, nil)
	require.NoError(t, err)
	aboutOut := filepath.Join(root, "build", "about", "index.html")
	require.FileExists(t, aboutOut)

	require.NoError(t, os.Remove(filepath.Join(root, "src", "pages", "about.md")))

	res, err := runBuild(t, root, nil)
	require.NoError(t, err)
	assert.NoFileExists(t, aboutOut)
	assert.Equal(t, 1, res.Built+res.Skipped)
}

func TestCancellationSkipsCacheCommit(t *testing.T) {
	root := newProject(t)
	for _, name := range []string{"p1", "p2", "p3", "p4", "p5", "p6"} {
		writeFile(t, filepath.Join(root, "src", "pages", name+".md"), "---\ntitle: "+name+"\n---\nbody\n")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(filepath.Join(root, config.DefaultFile))
	require.NoError(t, err)
	store, err := datastore.Load(cfg.DataDir(root))
	require.NoError(t, err)
	r, err := render.NewMarkdownRenderer(cfg.SiteName, cfg.BaseURL, cfg.ComponentsDir(root), store)
	require.NoError(t, err)

	bus := hooks.NewBus()
	bus.OnPostRender("cancel-after-first", 0, func(context.Context, *hooks.PostRenderPayload) ([]byte, error) {
		cancel()
		return nil, nil
	})

	res, err := New(Options{
		Config:      cfg,
		ProjectRoot: root,
		Renderer:    r,
		Enumerator:  r,
		Hooks:       bus,
		Workers:     1,
	}).Run(ctx)

	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, res.Canceled)
	assert.Equal(t, "canceled", res.Outcome())
	assert.NoFileExists(t, filepath.Join(root, ".nitro", "cache.json"))
}

func TestConcurrentBuildRejectedByLock(t *testing.T) {
	root := newProject(t)
	lock, err := cache.AcquireLock(filepath.Join(root, ".nitro"))
	require.NoError(t, err)
	defer lock.Release()

	_, err = runBuild(t, root, nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "another build")
}

func TestSecondBuildOutputIsByteIdentical(t *testing.T) {
	root := newProject(t)
	_, err := runBuild(t, root, nil)
	require.NoError(t, err)
	first := readTree(t, filepath.Join(root, "build"))

	_, err = runBuild(t, root, nil)
	require.NoError(t, err)
	second := readTree(t, filepath.Join(root, "build"))

	assert.Equal(t, first, second)
}

func TestDuplicateOutputPathReportedFailed(t *testing.T) {
	root := newProject(t)
	// about.md and about/index.md both map to about/index.html.
	writeFile(t, filepath.Join(root, "src", "pages", "about", "index.md"), "---\ntitle: About Too\n---\nbody\n")

	res, err := runBuild(t, root, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Built)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, "partial", res.Outcome())

	require.Len(t, res.Errors(), 1)
	var ue *UnitError
	require.ErrorAs(t, res.Errors()[0], &ue)
	assert.Equal(t, "about/index.html", ue.OutputPath)
	assert.Contains(t, ue.Error(), "already produced by")
}

func TestSkippedPagesReachRecorder(t *testing.T) {
	root := newProject(t)
	_, err := runBuild(t, root, nil)
	require.NoError(t, err)

	rec := newCountingRecorder()
	res, err := runBuild(t, root, func(o *Options) { o.Recorder = rec })
	require.NoError(t, err)

	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, 2, rec.pages[metrics.PageSkipped])
	assert.Equal(t, 0, rec.pages[metrics.PageBuilt])
}

func TestCancellationDuringLastUnitSkipsCommit(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, config.DefaultFile), `
site_name: Fixture
base_url: https://example.com
pipeline:
  optimize_images: false
`)
	writeFile(t, filepath.Join(root, "src", "pages", "index.md"), "---\ntitle: Home\n---\nbody\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(filepath.Join(root, config.DefaultFile))
	require.NoError(t, err)
	store, err := datastore.Load(cfg.DataDir(root))
	require.NoError(t, err)
	r, err := render.NewMarkdownRenderer(cfg.SiteName, cfg.BaseURL, cfg.ComponentsDir(root), store)
	require.NoError(t, err)

	// With a single unit all work is dispatched before the cancel lands; the
	// run must still count as canceled and leave no cache behind.
	bus := hooks.NewBus()
	bus.OnPostRender("cancel", 0, func(context.Context, *hooks.PostRenderPayload) ([]byte, error) {
		cancel()
		return nil, nil
	})

	res, err := New(Options{
		Config:      cfg,
		ProjectRoot: root,
		Renderer:    r,
		Enumerator:  r,
		Hooks:       bus,
		Workers:     1,
	}).Run(ctx)

	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, res.Canceled)
	assert.NoFileExists(t, filepath.Join(root, ".nitro", "cache.json"))
}

func TestSitemapExcludesOptedOutPages(t *testing.T) {
	root := newProject(t)
	writeFile(t, filepath.Join(root, "src", "pages", "hidden.md"), "---\ntitle: Hidden\nsitemap: false\n---\nbody\n")

	_, err := runBuild(t, root, nil)
	require.NoError(t, err)

	sm, err := os.ReadFile(filepath.Join(root, "build", "sitemap.xml"))
	require.NoError(t, err)
	assert.NotContains(t, string(sm), "hidden")
	assert.Contains(t, string(sm), "https://example.com/about/")
}
