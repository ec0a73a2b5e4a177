package manifest

import (
	"encoding/xml"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const sitemapNamespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

// PageEntry describes one built page considered for the sitemap.
type PageEntry struct {
	// OutputPath is output-root relative, e.g. blog/hello/index.html.
	OutputPath string
	// Exclude drops the page from the sitemap (drafts, sitemap: false).
	Exclude    bool
	Priority   float64
	Changefreq string
	LastMod    time.Time
}

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	Changefreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

// WriteSitemap emits sitemap.xml into the output directory. Entries are
// ordered by output path so repeated builds produce identical bytes.
func WriteSitemap(outputDir, baseURL string, pages []PageEntry) error {
	included := make([]PageEntry, 0, len(pages))
	for _, p := range pages {
		if !p.Exclude {
			included = append(included, p)
		}
	}
	sort.Slice(included, func(i, j int) bool { return included[i].OutputPath < included[j].OutputPath })

	set := urlSet{Xmlns: sitemapNamespace}
	for _, p := range included {
		u := sitemapURL{Loc: pageURL(baseURL, p.OutputPath)}
		if !p.LastMod.IsZero() {
			u.LastMod = p.LastMod.UTC().Format("2006-01-02")
		}
		u.Changefreq = p.Changefreq
		if p.Priority > 0 {
			u.Priority = fmt.Sprintf("%.1f", p.Priority)
		}
		set.URLs = append(set.URLs, u)
	}

	body, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sitemap: %w", err)
	}
	out := append([]byte(xml.Header), body...)
	out = append(out, '\n')

	if err := os.WriteFile(filepath.Join(outputDir, "sitemap.xml"), out, 0o644); err != nil {
		return fmt.Errorf("write sitemap: %w", err)
	}
	return nil
}

// pageURL converts an output path into its canonical site URL:
// blog/hello/index.html -> <base>/blog/hello/
func pageURL(baseURL, outputPath string) string {
	p := path.Clean("/" + outputPath)
	if path.Base(p) == "index.html" {
		p = path.Dir(p)
		if p != "/" {
			p += "/"
		}
	}
	return strings.TrimSuffix(baseURL, "/") + p
}

// WriteRobots emits robots.txt referencing the sitemap. An existing
// robots.txt in the output tree (published from public/) is left alone.
func WriteRobots(outputDir, baseURL string) error {
	dest := filepath.Join(outputDir, "robots.txt")
	if _, err := os.Stat(dest); err == nil {
		return nil
	}
	content := fmt.Sprintf("User-agent: *\nAllow: /\n\nSitemap: %s/sitemap.xml\n", strings.TrimSuffix(baseURL, "/"))
	if err := os.WriteFile(dest, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write robots.txt: %w", err)
	}
	return nil
}
