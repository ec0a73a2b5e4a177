package render

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrMissingClosingDelimiter indicates an unterminated frontmatter block.
var ErrMissingClosingDelimiter = errors.New("frontmatter: missing closing delimiter")

// FrontMatter is the YAML header of a markdown page.
type FrontMatter struct {
	Title     string  `yaml:"title"`
	Slug      string  `yaml:"slug"`
	Draft     bool    `yaml:"draft"`
	Sitemap   *bool   `yaml:"sitemap"`
	Priority  float64 `yaml:"sitemap_priority"`
	Changefreq string `yaml:"sitemap_changefreq"`
	LastMod   string  `yaml:"lastmod"`
	// Enumerate names a datastore path whose list elements produce the route
	// params of a dynamic page.
	Enumerate string `yaml:"enumerate"`
	// Params carries arbitrary page-scoped template values.
	Params map[string]any `yaml:"params"`
}

// splitFrontMatter separates a `---` delimited YAML header from the body.
// Documents without a header return the full input as body.
func splitFrontMatter(content []byte) (header, body []byte, err error) {
	open := []byte("---\n")
	if !bytes.HasPrefix(content, open) {
		return nil, content, nil
	}
	rest := content[len(open):]
	if bytes.HasPrefix(rest, open) {
		// Empty frontmatter block.
		return nil, rest[len(open):], nil
	}
	idx := bytes.Index(rest, []byte("\n---\n"))
	if idx < 0 {
		if bytes.HasSuffix(rest, []byte("\n---")) {
			return rest[:len(rest)-len("\n---")+1], nil, nil
		}
		return nil, nil, ErrMissingClosingDelimiter
	}
	return rest[:idx+1], rest[idx+len("\n---\n"):], nil
}

// parseFrontMatter decodes the YAML header. An empty header yields zero
// values.
func parseFrontMatter(header []byte) (*FrontMatter, error) {
	var fm FrontMatter
	if len(header) == 0 {
		return &fm, nil
	}
	if err := yaml.Unmarshal(header, &fm); err != nil {
		return nil, fmt.Errorf("parse frontmatter: %w", err)
	}
	return &fm, nil
}

// metadata converts frontmatter fields into the build-core metadata.
func (fm *FrontMatter) metadata() Metadata {
	meta := Metadata{
		Draft:             fm.Draft,
		Sitemap:           fm.Sitemap == nil || *fm.Sitemap,
		SitemapPriority:   fm.Priority,
		SitemapChangefreq: fm.Changefreq,
	}
	if fm.LastMod != "" {
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if ts, err := time.Parse(layout, fm.LastMod); err == nil {
				meta.LastMod = ts
				break
			}
		}
	}
	return meta
}
