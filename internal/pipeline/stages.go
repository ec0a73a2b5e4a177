package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"

	"github.com/nitrosh/nitro-cli/internal/hashing"
	"github.com/nitrosh/nitro-cli/internal/islands"
)

// FingerprintStage rewrites asset references in page HTML to their
// fingerprinted published paths.
type FingerprintStage struct {
	Assets *AssetSet
}

func (FingerprintStage) Name() string { return "fingerprint-assets" }

func (s FingerprintStage) Apply(_ context.Context, page *Page) error {
	if s.Assets == nil || len(s.Assets.Refs) == 0 {
		return nil
	}
	out, changed, err := rewriteDocument(page.HTML, func(n *html.Node) bool {
		mutated := false
		for i, attr := range n.Attr {
			switch attr.Key {
			case "href", "src", "poster":
				if repl, ok := s.Assets.Refs[attr.Val]; ok && repl != attr.Val {
					n.Attr[i].Val = repl
					mutated = true
				}
			}
		}
		return mutated
	})
	if err != nil {
		return err
	}
	if changed {
		page.HTML = out
	}
	return nil
}

// ImageStage decorates img elements with srcset attributes built from the
// generated responsive variants of their source image.
type ImageStage struct {
	Assets *AssetSet
}

func (ImageStage) Name() string { return "optimize-images" }

func (s ImageStage) Apply(_ context.Context, page *Page) error {
	if s.Assets == nil || len(s.Assets.Variants) == 0 {
		return nil
	}
	out, changed, err := rewriteDocument(page.HTML, func(n *html.Node) bool {
		if n.Data != "img" {
			return false
		}
		src := attrValue(n, "src")
		set, ok := s.Assets.Variants[src]
		if !ok {
			// The fingerprint stage may have rewritten src already.
			if orig, found := s.Assets.sourceFor(src); found {
				set, ok = s.Assets.Variants[orig]
			}
		}
		if !ok || len(set.Variants) == 0 || attrValue(n, "srcset") != "" {
			return false
		}
		var parts []string
		for _, v := range set.Variants {
			parts = append(parts, fmt.Sprintf("/%s %dw", v.Path, v.Width))
		}
		n.Attr = append(n.Attr, html.Attribute{Key: "srcset", Val: strings.Join(parts, ", ")})
		if attrValue(n, "loading") == "" {
			n.Attr = append(n.Attr, html.Attribute{Key: "loading", Val: "lazy"})
		}
		return true
	})
	if err != nil {
		return err
	}
	if changed {
		page.HTML = out
	}
	return nil
}

// sourceFor reverse-maps a published path back to its logical source.
func (a *AssetSet) sourceFor(published string) (string, bool) {
	for src, out := range a.Refs {
		if out == published {
			return src, true
		}
	}
	return "", false
}

// IslandStage injects the hydration runtime into pages that contain island
// markers. Pages without markers pass through untouched.
type IslandStage struct {
	Assets *AssetSet
}

func (IslandStage) Name() string { return "inject-islands" }

func (s IslandStage) Apply(_ context.Context, page *Page) error {
	if s.Assets == nil || s.Assets.RuntimeSrc == "" {
		return nil
	}
	found, err := islands.HasIslands(page.HTML)
	if err != nil {
		return err
	}
	if found {
		page.HTML = islands.InjectRuntime(page.HTML, s.Assets.RuntimeSrc)
	}
	return nil
}

// WriteStage persists the final page bytes under the output root and
// records the output hash.
type WriteStage struct {
	OutputDir string
}

func (WriteStage) Name() string { return "write" }

func (s WriteStage) Apply(_ context.Context, page *Page) error {
	dest := filepath.Join(s.OutputDir, filepath.FromSlash(page.OutputPath))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(dest, page.HTML, 0o644); err != nil {
		return fmt.Errorf("write page %s: %w", page.OutputPath, err)
	}
	page.OutputHash = hashing.HashBytes(page.HTML).Short()
	return nil
}

// rewriteDocument parses, mutates and re-renders an HTML document. The
// document is only re-rendered when visit reports a mutation.
func rewriteDocument(doc []byte, visit func(*html.Node) bool) ([]byte, bool, error) {
	root, err := html.Parse(bytes.NewReader(doc))
	if err != nil {
		return nil, false, fmt.Errorf("parse html: %w", err)
	}

	changed := false
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if visit(n) {
				changed = true
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	if !changed {
		return doc, false, nil
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return nil, false, fmt.Errorf("render html: %w", err)
	}
	return buf.Bytes(), true, nil
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// DefaultStages assembles the standard stage order with the given toggles.
func DefaultStages(assets *AssetSet, outputDir string, minify, fingerprint, optimizeImages, injectIslands bool) []Stage {
	var stages []Stage
	if minify {
		stages = append(stages, MinifyStage{})
	}
	if fingerprint {
		stages = append(stages, FingerprintStage{Assets: assets})
	}
	if optimizeImages {
		stages = append(stages, ImageStage{Assets: assets})
	}
	if injectIslands {
		stages = append(stages, IslandStage{Assets: assets})
	}
	stages = append(stages, WriteStage{OutputDir: outputDir})
	return stages
}
