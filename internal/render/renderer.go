// Package render defines the page-rendering collaborator interface consumed
// by the build scheduler, and a markdown-backed implementation of it.
package render

import (
	"context"
	"time"
)

// RouteParam is one name/value pair of a dynamic route.
type RouteParam struct {
	Name  string
	Value string
}

// RouteParams is the ordered parameter list of one dynamic page instance.
// Order matters for output path construction.
type RouteParams []RouteParam

// Get returns the value for name, or "".
func (rp RouteParams) Get(name string) string {
	for _, p := range rp {
		if p.Name == name {
			return p.Value
		}
	}
	return ""
}

// Map returns the params as a plain map for template contexts.
func (rp RouteParams) Map() map[string]string {
	m := make(map[string]string, len(rp))
	for _, p := range rp {
		m[p.Name] = p.Value
	}
	return m
}

// Metadata carries the page-declared flags the build core acts on.
type Metadata struct {
	// Draft pages are excluded from production output and the sitemap.
	Draft bool
	// Sitemap defaults to true; pages may opt out.
	Sitemap bool
	// SitemapPriority is 0 when unset.
	SitemapPriority float64
	// SitemapChangefreq is empty when unset.
	SitemapChangefreq string
	// LastMod is zero when unset.
	LastMod time.Time
}

// Result is a rendered page document.
type Result struct {
	Title string
	HTML  []byte
	Meta  Metadata
}

// Renderer renders a single page. Implementations must be safe for
// concurrent calls and must not share mutable state across calls.
type Renderer interface {
	Render(ctx context.Context, sourcePath string, params RouteParams) (*Result, error)
}

// Enumerator is the path-enumeration hook for dynamic routes: it returns one
// RouteParams per page instance the dynamic source expands to. A failure
// here is fatal for the whole route family, not silently dropped.
type Enumerator interface {
	Enumerate(ctx context.Context, sourcePath string) ([]RouteParams, error)
}
