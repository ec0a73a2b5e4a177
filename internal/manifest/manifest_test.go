package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAndReadAssetManifest(t *testing.T) {
	outDir := t.TempDir()
	assets := map[string]Asset{
		"/styles/main.css": {Output: "/styles/main.abc.css", Hash: "abc", Size: 120},
		"/app.js":          {Output: "/app.def.js", Hash: "def", Size: 64},
	}

	require.NoError(t, WriteAssetManifest(outDir, assets))

	m, err := ReadAssetManifest(outDir)
	require.NoError(t, err)
	assert.Equal(t, assets["/app.js"], m.Assets["/app.js"])
}

func TestAssetManifestCoversOutputTree(t *testing.T) {
	outDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(outDir, "about"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(outDir, "index.html"), []byte("<html>home</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(outDir, "about", "index.html"), []byte("<html>about</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(outDir, "sitemap.xml"), []byte("<urlset/>"), 0o644))

	require.NoError(t, WriteAssetManifest(outDir, nil))

	m, err := ReadAssetManifest(outDir)
	require.NoError(t, err)
	assert.Contains(t, m.Files, "index.html")
	assert.Contains(t, m.Files, "about/index.html")
	assert.Contains(t, m.Files, "sitemap.xml")
	// The manifest never lists itself.
	assert.NotContains(t, m.Files, FileName)
	assert.Equal(t, int64(17), m.Files["index.html"].Size)
	assert.Len(t, m.Files["index.html"].Hash, 16)
}

func TestAssetManifestDeterministic(t *testing.T) {
	outDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outDir, "index.html"), []byte("<html>home</html>"), 0o644))
	assets := map[string]Asset{
		"/app.js": {Output: "/app.def.js", Hash: "def", Size: 64},
	}

	require.NoError(t, WriteAssetManifest(outDir, assets))
	first, err := os.ReadFile(filepath.Join(outDir, FileName))
	require.NoError(t, err)

	require.NoError(t, WriteAssetManifest(outDir, assets))
	second, err := os.ReadFile(filepath.Join(outDir, FileName))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestReadAssetManifestMissing(t *testing.T) {
	_, err := ReadAssetManifest(t.TempDir())
	assert.Error(t, err)
}

func TestWriteSitemapOrderedAndFiltered(t *testing.T) {
	outDir := t.TempDir()
	pages := []PageEntry{
		{OutputPath: "zebra/index.html", Priority: 0.5, Changefreq: "weekly"},
		{OutputPath: "about/index.html", LastMod: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		{OutputPath: "secret/index.html", Exclude: true},
		{OutputPath: "index.html"},
	}

	require.NoError(t, WriteSitemap(outDir, "https://example.com/", pages))

	data, err := os.ReadFile(filepath.Join(outDir, "sitemap.xml"))
	require.NoError(t, err)
	s := string(data)

	assert.NotContains(t, s, "secret")
	assert.Contains(t, s, "<loc>https://example.com/</loc>")
	assert.Contains(t, s, "<loc>https://example.com/about/</loc>")
	assert.Contains(t, s, "<lastmod>2026-03-01</lastmod>")
	assert.Contains(t, s, "<changefreq>weekly</changefreq>")
	assert.Contains(t, s, "<priority>0.5</priority>")

	// Ordered by output path: about before index before zebra.
	assert.Less(t, strings.Index(s, "about"), strings.Index(s, "zebra"))
}

func TestWriteSitemapDeterministic(t *testing.T) {
	pages := []PageEntry{
		{OutputPath: "b/index.html"},
		{OutputPath: "a/index.html"},
	}

	dir1, dir2 := t.TempDir(), t.TempDir()
	require.NoError(t, WriteSitemap(dir1, "https://example.com", pages))
	require.NoError(t, WriteSitemap(dir2, "https://example.com", []PageEntry{pages[1], pages[0]}))

	a, err := os.ReadFile(filepath.Join(dir1, "sitemap.xml"))
	require.NoError(t, err)
	b, err := os.ReadFile(filepath.Join(dir2, "sitemap.xml"))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestWriteRobots(t *testing.T) {
	outDir := t.TempDir()
	require.NoError(t, WriteRobots(outDir, "https://example.com"))

	data, err := os.ReadFile(filepath.Join(outDir, "robots.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Sitemap: https://example.com/sitemap.xml")
}

func TestWriteRobotsKeepsExisting(t *testing.T) {
	outDir := t.TempDir()
	custom := "User-agent: *\nDisallow: /\n"
	require.NoError(t, os.WriteFile(filepath.Join(outDir, "robots.txt"), []byte(custom), 0o644))

	require.NoError(t, WriteRobots(outDir, "https://example.com"))

	data, err := os.ReadFile(filepath.Join(outDir, "robots.txt"))
	require.NoError(t, err)
	assert.Equal(t, custom, string(data))
}

func TestPageURL(t *testing.T) {
	assert.Equal(t, "https://x.com/", pageURL("https://x.com", "index.html"))
	assert.Equal(t, "https://x.com/blog/post/", pageURL("https://x.com", "blog/post/index.html"))
	assert.Equal(t, "https://x.com/feed.html", pageURL("https://x.com/", "feed.html"))
}
