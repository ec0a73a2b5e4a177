// Package config loads and validates the nitro.yaml project configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the project-relative configuration file name.
const DefaultFile = "nitro.yaml"

// Config represents the project configuration.
type Config struct {
	SiteName string `yaml:"site_name"`
	BaseURL  string `yaml:"base_url"`

	SourceDir string `yaml:"source_dir"`
	BuildDir  string `yaml:"build_dir"`

	DevServer DevServerConfig `yaml:"dev_server"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Images    ImagesConfig    `yaml:"images"`
	Deploy    DeployConfig    `yaml:"deploy"`

	Metadata map[string]any `yaml:"metadata,omitempty"`
}

// DevServerConfig configures the development server.
type DevServerConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	LiveReload      *bool  `yaml:"live_reload,omitempty"`
	RebuildInterval string `yaml:"rebuild_interval,omitempty"` // e.g. "30m"; empty disables periodic rebuilds
	Metrics         bool   `yaml:"metrics"`
}

// LiveReloadEnabled reports whether live reload is on (default true).
func (d DevServerConfig) LiveReloadEnabled() bool {
	return d.LiveReload == nil || *d.LiveReload
}

// PipelineConfig toggles individual transform stages.
type PipelineConfig struct {
	Minify         *bool `yaml:"minify,omitempty"`
	Fingerprint    *bool `yaml:"fingerprint,omitempty"`
	OptimizeImages *bool `yaml:"optimize_images,omitempty"`
	Islands        *bool `yaml:"islands,omitempty"`
}

func enabled(v *bool) bool { return v == nil || *v }

// MinifyEnabled reports whether the minify stage runs (default true).
func (p PipelineConfig) MinifyEnabled() bool { return enabled(p.Minify) }

// FingerprintEnabled reports whether asset fingerprinting runs (default true).
func (p PipelineConfig) FingerprintEnabled() bool { return enabled(p.Fingerprint) }

// OptimizeImagesEnabled reports whether image optimization runs (default true).
func (p PipelineConfig) OptimizeImagesEnabled() bool { return enabled(p.OptimizeImages) }

// IslandsEnabled reports whether island hydration injection runs (default true).
func (p PipelineConfig) IslandsEnabled() bool { return enabled(p.Islands) }

// ImagesConfig configures the responsive image matrix.
type ImagesConfig struct {
	Widths  []int    `yaml:"widths,omitempty"`
	Formats []string `yaml:"formats,omitempty"`
	Quality int      `yaml:"quality,omitempty"`
}

// DeployConfig configures git-based deployment of the build output.
type DeployConfig struct {
	Branch  string `yaml:"branch,omitempty"`
	Remote  string `yaml:"remote,omitempty"`
	Message string `yaml:"message,omitempty"`
}

// Load reads and parses the configuration file, expanding environment
// variables in the YAML content and applying defaults. A missing file yields
// the default configuration rather than an error so that freshly scaffolded
// projects work without one.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := &Config{}
		cfg.applyDefaults()
		return cfg, nil
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.SiteName == "" {
		c.SiteName = "Nitro Site"
	}
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:8008"
	}
	if c.SourceDir == "" {
		c.SourceDir = "src"
	}
	if c.BuildDir == "" {
		c.BuildDir = "build"
	}
	if c.DevServer.Host == "" {
		c.DevServer.Host = "localhost"
	}
	if c.DevServer.Port == 0 {
		c.DevServer.Port = 8008
	}
	if len(c.Images.Widths) == 0 {
		c.Images.Widths = []int{320, 640, 768, 1024, 1280, 1920}
	}
	if len(c.Images.Formats) == 0 {
		c.Images.Formats = []string{"webp", "original"}
	}
	if c.Images.Quality == 0 {
		c.Images.Quality = 85
	}
	if c.Deploy.Branch == "" {
		c.Deploy.Branch = "gh-pages"
	}
	if c.Deploy.Remote == "" {
		c.Deploy.Remote = "origin"
	}
}

// PagesDir returns the directory containing page sources.
func (c *Config) PagesDir(root string) string {
	return filepath.Join(root, c.SourceDir, "pages")
}

// ComponentsDir returns the shared-component directory.
func (c *Config) ComponentsDir(root string) string {
	return filepath.Join(root, c.SourceDir, "components")
}

// DataDir returns the data-file directory.
func (c *Config) DataDir(root string) string {
	return filepath.Join(root, c.SourceDir, "data")
}

// PublicDir returns the verbatim-copied static asset directory.
func (c *Config) PublicDir(root string) string {
	return filepath.Join(root, c.SourceDir, "public")
}

// StylesDir returns the stylesheet directory.
func (c *Config) StylesDir(root string) string {
	return filepath.Join(root, c.SourceDir, "styles")
}

// OutputDir returns the build output root.
func (c *Config) OutputDir(root string) string {
	return filepath.Join(root, c.BuildDir)
}
