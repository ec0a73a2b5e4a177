package render

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	texttemplate "text/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nitrosh/nitro-cli/internal/datastore"
)

// MarkdownRenderer renders markdown pages with YAML frontmatter through the
// site layout. It is stateless per call and safe for concurrent use.
//
// A component file named "layout.html" replaces the built-in page shell.
type MarkdownRenderer struct {
	siteName string
	baseURL  string
	store    *datastore.Store
	layout   *template.Template
	md       goldmark.Markdown
}

// NewMarkdownRenderer constructs a renderer over the given components
// directory and data store.
func NewMarkdownRenderer(siteName, baseURL, componentsDir string, store *datastore.Store) (*MarkdownRenderer, error) {
	layout, err := loadLayout(componentsDir)
	if err != nil {
		return nil, err
	}
	return &MarkdownRenderer{
		siteName: siteName,
		baseURL:  baseURL,
		store:    store,
		layout:   layout,
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithUnsafe()),
		),
	}, nil
}

// Render renders one page source file. The markdown body is first executed
// as a text template with access to route params and the data store, then
// converted to HTML and wrapped in the layout.
func (r *MarkdownRenderer) Render(ctx context.Context, sourcePath string, params RouteParams) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(filepath.Clean(sourcePath))
	if err != nil {
		return nil, fmt.Errorf("read page source: %w", err)
	}

	header, body, err := splitFrontMatter(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", sourcePath, err)
	}
	fm, err := parseFrontMatter(header)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", sourcePath, err)
	}

	expanded, err := r.expandBody(string(body), params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", sourcePath, err)
	}

	var content bytes.Buffer
	if err := r.md.Convert([]byte(expanded), &content); err != nil {
		return nil, fmt.Errorf("convert markdown %s: %w", sourcePath, err)
	}

	title := fm.Title
	if title == "" {
		title = titleFromPath(sourcePath, params)
	}

	lctx := layoutContext{
		Title:    title,
		SiteName: r.siteName,
		BaseURL:  r.baseURL,
		Content:  template.HTML(content.String()),
		Params:   fm.Params,
		Route:    params.Map(),
	}

	var out bytes.Buffer
	if err := r.layout.ExecuteTemplate(&out, "layout", lctx); err != nil {
		return nil, fmt.Errorf("execute layout for %s: %w", sourcePath, err)
	}

	return &Result{Title: title, HTML: out.Bytes(), Meta: fm.metadata()}, nil
}

// expandBody runs the markdown source through text/template so pages can
// interpolate route params and site data.
func (r *MarkdownRenderer) expandBody(body string, params RouteParams) (string, error) {
	if !strings.Contains(body, "{{") {
		return body, nil
	}

	t := texttemplate.New("body").Funcs(texttemplate.FuncMap{
		"param": func(name string) string { return params.Get(name) },
		"data": func(path string) (any, error) {
			v, err := r.store.GetPath(path)
			if err != nil {
				return nil, err
			}
			return v.ToAny(), nil
		},
	})
	if _, err := t.Parse(body); err != nil {
		return "", fmt.Errorf("parse page template: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, map[string]any{"Route": params.Map()}); err != nil {
		return "", fmt.Errorf("execute page template: %w", err)
	}
	return buf.String(), nil
}

// Enumerate implements the path-enumeration hook for dynamic pages. The
// page's frontmatter names a datastore path holding a list; each element
// yields one RouteParams. Elements may be scalars (used directly as the
// param value) or maps carrying the param name as a key.
func (r *MarkdownRenderer) Enumerate(ctx context.Context, sourcePath string) ([]RouteParams, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	paramName, ok := DynamicParamName(sourcePath)
	if !ok {
		return []RouteParams{nil}, nil
	}

	raw, err := os.ReadFile(filepath.Clean(sourcePath))
	if err != nil {
		return nil, fmt.Errorf("read page source: %w", err)
	}
	header, _, err := splitFrontMatter(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", sourcePath, err)
	}
	fm, err := parseFrontMatter(header)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", sourcePath, err)
	}
	if fm.Enumerate == "" {
		return nil, fmt.Errorf("dynamic page %s missing 'enumerate' frontmatter", sourcePath)
	}

	v, err := r.store.GetPath(fm.Enumerate)
	if err != nil {
		return nil, fmt.Errorf("enumerate %s: %w", sourcePath, err)
	}
	items, ok := v.AsList()
	if !ok {
		return nil, fmt.Errorf("enumerate %s: data path %q is %s, want list", sourcePath, fm.Enumerate, v.Kind())
	}

	out := make([]RouteParams, 0, len(items))
	for i, item := range items {
		value, err := paramValue(item, paramName)
		if err != nil {
			return nil, fmt.Errorf("enumerate %s: element %d: %w", sourcePath, i, err)
		}
		out = append(out, RouteParams{{Name: paramName, Value: value}})
	}
	return out, nil
}

func paramValue(item datastore.Value, paramName string) (string, error) {
	if s, ok := item.AsString(); ok {
		return s, nil
	}
	if n, ok := item.AsNumber(); ok {
		return strconv.FormatFloat(n, 'f', -1, 64), nil
	}
	if m, ok := item.AsMap(); ok {
		if v, ok := m[paramName]; ok {
			if s, ok := v.AsString(); ok {
				return s, nil
			}
		}
		if v, ok := m["slug"]; ok {
			if s, ok := v.AsString(); ok {
				return s, nil
			}
		}
		return "", fmt.Errorf("no %q or \"slug\" key", paramName)
	}
	return "", fmt.Errorf("unsupported element kind %s", item.Kind())
}

// DynamicParamName extracts the bracketed parameter from a dynamic page
// filename such as "blog/[slug].md". Returns false for static pages.
func DynamicParamName(sourcePath string) (string, bool) {
	base := filepath.Base(sourcePath)
	start := strings.IndexByte(base, '[')
	end := strings.IndexByte(base, ']')
	if start < 0 || end <= start+1 {
		return "", false
	}
	return base[start+1 : end], true
}

func titleFromPath(sourcePath string, params RouteParams) string {
	if len(params) > 0 {
		return params[0].Value
	}
	base := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	if base == "index" {
		return "Home"
	}
	return cases.Title(language.English).String(strings.ReplaceAll(base, "-", " "))
}
