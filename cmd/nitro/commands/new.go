package commands

import (
	"fmt"
	"os"
	"path/filepath"
)

// NewCmd implements the 'new' command.
type NewCmd struct {
	Name  string `arg:"" help:"Project directory to create"`
	Force bool   `help:"Scaffold into a non-empty directory"`
}

// Run scaffolds a minimal project layout.
func (cmd *NewCmd) Run(g *Global, cli *CLI) error {
	root, err := filepath.Abs(cmd.Name)
	if err != nil {
		return fmt.Errorf("resolve project directory: %w", err)
	}

	if entries, err := os.ReadDir(root); err == nil && len(entries) > 0 && !cmd.Force {
		return fmt.Errorf("directory %s is not empty (use --force to scaffold anyway)", root)
	}

	siteName := filepath.Base(root)
	files := map[string]string{
		"nitro.yaml": fmt.Sprintf(`site_name: %s
base_url: http://localhost:8008

dev_server:
  host: localhost
  port: 8008
`, siteName),
		"src/pages/index.md": `---
title: Home
---
# Welcome

This site is built with nitro. Edit ` + "`src/pages/index.md`" + ` to get started.
`,
		"src/pages/about.md": `---
title: About
sitemap_priority: 0.5
---
# About

Tell the world about this site.
`,
		"src/components/header.html": `<header>
  <nav>
    <a href="/">{{.SiteName}}</a>
    <a href="/about/">About</a>
  </nav>
</header>
`,
		"src/components/footer.html": `<footer>
  <p>&copy; {{.SiteName}}</p>
</footer>
`,
		"src/styles/main.css": `:root {
  --fg: #1a1a1a;
  --bg: #ffffff;
}

body {
  color: var(--fg);
  background: var(--bg);
  font-family: system-ui, sans-serif;
  max-width: 42rem;
  margin: 0 auto;
  padding: 1rem;
}
`,
		"src/data/.gitkeep":   "",
		"src/public/.gitkeep": "",
		".gitignore": `build/
.nitro/
.env.local
`,
	}

	for rel, content := range files {
		dest := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return fmt.Errorf("create %s: %w", filepath.Dir(dest), err)
		}
		if err := os.WriteFile(dest, []byte(content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", rel, err)
		}
	}

	g.Logger.Info("Project scaffolded", "dir", root)
	fmt.Printf("Created %s\n\nNext steps:\n  cd %s\n  nitro serve\n", root, cmd.Name)
	return nil
}
