package render

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
)

// defaultLayout wraps rendered page content when the project supplies no
// layout component. Components named "header" and "footer" are included when
// present.
const defaultLayout = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}} | {{.SiteName}}</title>
<link rel="stylesheet" href="/styles/main.css">
</head>
<body>
{{partial "header" .}}
<main>
{{.Content}}
</main>
{{partial "footer" .}}
</body>
</html>
`

// layoutContext is the data passed to the layout and component templates.
type layoutContext struct {
	Title    string
	SiteName string
	BaseURL  string
	Content  template.HTML
	Params   map[string]any
	Route    map[string]string
}

// loadLayout parses the default layout plus every component template under
// componentsDir. Each component file defines a template named after its
// basename without extension ("header.html" -> "header").
func loadLayout(componentsDir string) (*template.Template, error) {
	root := template.New("layout")

	// partial renders a named component, or nothing when the project does
	// not define it.
	root.Funcs(template.FuncMap{
		"partial": func(name string, ctx any) (template.HTML, error) {
			t := root.Lookup(name)
			if t == nil {
				return "", nil
			}
			var buf bytes.Buffer
			if err := t.Execute(&buf, ctx); err != nil {
				return "", fmt.Errorf("render component %q: %w", name, err)
			}
			return template.HTML(buf.String()), nil
		},
	})

	if _, err := root.Parse(defaultLayout); err != nil {
		return nil, fmt.Errorf("parse default layout: %w", err)
	}

	entries, err := os.ReadDir(componentsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return root, nil
		}
		return nil, fmt.Errorf("read components dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".html") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(componentsDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read component %s: %w", entry.Name(), err)
		}
		name := strings.TrimSuffix(entry.Name(), ".html")
		if _, err := root.New(name).Parse(string(data)); err != nil {
			return nil, fmt.Errorf("parse component %s: %w", entry.Name(), err)
		}
	}
	return root, nil
}
