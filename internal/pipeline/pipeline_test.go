package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nitrosh/nitro-cli/internal/images"
)

type namedStage struct {
	name string
	fn   func(*Page) error
}

func (s namedStage) Name() string { return s.name }
func (s namedStage) Apply(_ context.Context, p *Page) error {
	if s.fn != nil {
		return s.fn(p)
	}
	return nil
}

func TestPipelineRunsStagesInOrder(t *testing.T) {
	var order []string
	p := New([]Stage{
		namedStage{name: "a", fn: func(*Page) error { order = append(order, "a"); return nil }},
		namedStage{name: "b", fn: func(*Page) error { order = append(order, "b"); return nil }},
	})

	require.NoError(t, p.Run(context.Background(), &Page{}))
	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, []string{"a", "b"}, p.StageNames())
}

func TestPipelineStopsOnStageError(t *testing.T) {
	boom := errors.New("boom")
	ran := false
	p := New([]Stage{
		namedStage{name: "fails", fn: func(*Page) error { return boom }},
		namedStage{name: "after", fn: func(*Page) error { ran = true; return nil }},
	})

	err := p.Run(context.Background(), &Page{})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "stage fails")
	assert.False(t, ran)
}

func TestPipelineHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := New([]Stage{namedStage{name: "never"}})
	assert.ErrorIs(t, p.Run(ctx, &Page{}), context.Canceled)
}

func TestMinifyHTML(t *testing.T) {
	in := []byte("<html>\n  <body>\n    <p>hello   world</p>\n    <!-- gone -->\n    <pre>  keep\n  this  </pre>\n  </body>\n</html>")
	out := string(MinifyHTML(in))

	assert.Contains(t, out, "<body><p>")
	assert.NotContains(t, out, "gone")
	assert.Contains(t, out, "<pre>  keep\n  this  </pre>")
	assert.Contains(t, out, "hello world")
}

func TestMinifyCSS(t *testing.T) {
	in := []byte("/* c */\nbody {\n  color : red ;\n  margin: 0 ;\n}\n")
	out := string(MinifyCSS(in))
	assert.Equal(t, "body{color:red;margin:0}", out)
}

func TestFingerprintStageRewritesRefs(t *testing.T) {
	assets := &AssetSet{Refs: map[string]string{
		"/styles/main.css": "/styles/main.abc123.css",
		"/app.js":          "/app.def456.js",
	}}
	page := &Page{HTML: []byte(`<html><head><link rel="stylesheet" href="/styles/main.css"></head><body><script src="/app.js"></script><a href="/about/">x</a></body></html>`)}

	require.NoError(t, FingerprintStage{Assets: assets}.Apply(context.Background(), page))
	s := string(page.HTML)
	assert.Contains(t, s, `href="/styles/main.abc123.css"`)
	assert.Contains(t, s, `src="/app.def456.js"`)
	assert.Contains(t, s, `href="/about/"`)
}

func TestImageStageAddsSrcset(t *testing.T) {
	assets := &AssetSet{
		Refs: map[string]string{"/img/a.png": "/img/a.h.png"},
		Variants: map[string]images.VariantSet{
			"/img/a.png": {Source: "img/a.png", Hash: "h", Variants: []images.Variant{
				{Width: 320, Format: "png", Path: "img/a.h.w320.png"},
				{Width: 640, Format: "png", Path: "img/a.h.w640.png"},
			}},
		},
	}
	page := &Page{HTML: []byte(`<html><body><img src="/img/a.png" alt="a"></body></html>`)}

	require.NoError(t, ImageStage{Assets: assets}.Apply(context.Background(), page))
	s := string(page.HTML)
	assert.Contains(t, s, `srcset="/img/a.h.w320.png 320w, /img/a.h.w640.png 640w"`)
	assert.Contains(t, s, `loading="lazy"`)
}

func TestImageStageResolvesFingerprintedSrc(t *testing.T) {
	assets := &AssetSet{
		Refs: map[string]string{"/img/a.png": "/img/a.h.png"},
		Variants: map[string]images.VariantSet{
			"/img/a.png": {Variants: []images.Variant{{Width: 320, Format: "png", Path: "img/a.h.w320.png"}}},
		},
	}
	page := &Page{HTML: []byte(`<html><body><img src="/img/a.h.png"></body></html>`)}

	require.NoError(t, ImageStage{Assets: assets}.Apply(context.Background(), page))
	assert.Contains(t, string(page.HTML), "srcset=")
}

func TestIslandStageInjectsOnlyWhenMarked(t *testing.T) {
	assets := &AssetSet{RuntimeSrc: "/_islands/runtime.x.js"}

	marked := &Page{HTML: []byte(`<html><body><div data-island="c"></div></body></html>`)}
	require.NoError(t, IslandStage{Assets: assets}.Apply(context.Background(), marked))
	assert.Contains(t, string(marked.HTML), "/_islands/runtime.x.js")

	plain := &Page{HTML: []byte(`<html><body><p>static</p></body></html>`)}
	require.NoError(t, IslandStage{Assets: assets}.Apply(context.Background(), plain))
	assert.NotContains(t, string(plain.HTML), "runtime.x.js")
}

func TestWriteStagePersistsAndHashes(t *testing.T) {
	outDir := t.TempDir()
	page := &Page{OutputPath: "blog/hello/index.html", HTML: []byte("<html></html>")}

	require.NoError(t, WriteStage{OutputDir: outDir}.Apply(context.Background(), page))
	assert.NotEmpty(t, page.OutputHash)

	data, err := os.ReadFile(filepath.Join(outDir, "blog", "hello", "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(data))
}

func TestPublishAssetsFingerprintsAndMinifies(t *testing.T) {
	root := t.TempDir()
	publicDir := filepath.Join(root, "public")
	stylesDir := filepath.Join(root, "styles")
	outDir := filepath.Join(root, "dist")
	require.NoError(t, os.MkdirAll(publicDir, 0o755))
	require.NoError(t, os.MkdirAll(stylesDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(publicDir, "robots-allow.txt"), []byte("ok"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(stylesDir, "main.css"), []byte("body { color : red ; }"), 0o644))

	set, err := PublishAssets(context.Background(), PublishOptions{
		PublicDir:   publicDir,
		StylesDir:   stylesDir,
		OutputDir:   outDir,
		Fingerprint: true,
		Minify:      true,
		EmitRuntime: true,
	})
	require.NoError(t, err)

	cssOut, ok := set.Refs["/styles/main.css"]
	require.True(t, ok)
	assert.NotEqual(t, "/styles/main.css", cssOut)

	data, err := os.ReadFile(filepath.Join(outDir, filepath.FromSlash(strings.TrimPrefix(cssOut, "/"))))
	require.NoError(t, err)
	assert.Equal(t, "body{color:red}", string(data))

	assert.NotEmpty(t, set.RuntimeSrc)
	assert.Contains(t, set.RuntimeSrc, "runtime")
	require.Len(t, set.Entries, 3)
}

func TestPublishAssetsWithoutFingerprinting(t *testing.T) {
	root := t.TempDir()
	publicDir := filepath.Join(root, "public")
	require.NoError(t, os.MkdirAll(publicDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(publicDir, "favicon.ico"), []byte{1, 2, 3}, 0o644))

	set, err := PublishAssets(context.Background(), PublishOptions{
		PublicDir: publicDir,
		OutputDir: filepath.Join(root, "dist"),
	})
	require.NoError(t, err)
	assert.Equal(t, "/favicon.ico", set.Refs["/favicon.ico"])
	assert.FileExists(t, filepath.Join(root, "dist", "favicon.ico"))
}

func TestPublishAssetsMissingDirs(t *testing.T) {
	root := t.TempDir()
	set, err := PublishAssets(context.Background(), PublishOptions{
		PublicDir: filepath.Join(root, "nope"),
		StylesDir: filepath.Join(root, "also-nope"),
		OutputDir: filepath.Join(root, "dist"),
	})
	require.NoError(t, err)
	assert.Empty(t, set.Entries)
}

func TestDefaultStagesOrder(t *testing.T) {
	assets := &AssetSet{}
	stages := DefaultStages(assets, t.TempDir(), true, true, true, true)
	p := New(stages)
	assert.Equal(t, []string{"minify", "fingerprint-assets", "optimize-images", "inject-islands", "write"}, p.StageNames())

	onlyWrite := New(DefaultStages(assets, t.TempDir(), false, false, false, false))
	assert.Equal(t, []string{"write"}, onlyWrite.StageNames())
}
