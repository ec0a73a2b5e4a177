// Package commands implements the nitro subcommands.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/nitrosh/nitro-cli/internal/build"
	"github.com/nitrosh/nitro-cli/internal/config"
	"github.com/nitrosh/nitro-cli/internal/datastore"
	"github.com/nitrosh/nitro-cli/internal/hooks"
	"github.com/nitrosh/nitro-cli/internal/images"
	"github.com/nitrosh/nitro-cli/internal/metrics"
	"github.com/nitrosh/nitro-cli/internal/render"
)

// Global state shared by subcommands.
type Global struct {
	Ctx      context.Context
	Logger   *slog.Logger
	Registry *prom.Registry
	Recorder metrics.Recorder
}

// CLI is the root command definition with global flags.
type CLI struct {
	Config   string           `short:"c" help:"Configuration file name relative to the project root" default:"nitro.yaml"`
	Dir      string           `short:"C" help:"Project root directory" default:"." type:"existingdir"`
	Verbose  bool             `short:"v" help:"Enable verbose logging"`
	LogLevel string           `help:"Log level: debug, info, warn, error" default:"info" enum:"debug,info,warn,error"`
	Version  kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build  BuildCmd  `cmd:"" help:"Build the site incrementally"`
	Serve  ServeCmd  `cmd:"" help:"Run the development server with live reload"`
	New    NewCmd    `cmd:"" help:"Scaffold a new project"`
	Clean  CleanCmd  `cmd:"" help:"Remove build output and caches"`
	Deploy DeployCmd `cmd:"" help:"Build for production and push the output to a git branch"`
}

// AfterApply runs after flag parsing; sets up logging once.
func (c *CLI) AfterApply() error {
	level := config.NormalizeLogLevel(c.LogLevel).SlogLevel()
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	config.LoadEnvironment()
	return nil
}

// ProjectRoot resolves the project root to an absolute path.
func (c *CLI) ProjectRoot() (string, error) {
	root, err := filepath.Abs(c.Dir)
	if err != nil {
		return "", fmt.Errorf("resolve project root: %w", err)
	}
	return root, nil
}

// LoadConfig loads the project configuration from the root.
func (c *CLI) LoadConfig(root string) (*config.Config, error) {
	return config.Load(filepath.Join(root, c.Config))
}

// BuildOverrides carries the per-invocation flags into scheduler options.
type BuildOverrides struct {
	ConfigFile  string
	Output      string
	Force       bool
	Production  bool
	Workers     int
	Minify      *bool
	Fingerprint *bool
	Images      *bool
	Islands     *bool
	Hooks       *hooks.Bus
}

func applyStageOverrides(cfg *config.Config, o BuildOverrides) {
	if o.Minify != nil {
		cfg.Pipeline.Minify = o.Minify
	}
	if o.Fingerprint != nil {
		cfg.Pipeline.Fingerprint = o.Fingerprint
	}
	if o.Images != nil {
		cfg.Pipeline.OptimizeImages = o.Images
	}
	if o.Islands != nil {
		cfg.Pipeline.Islands = o.Islands
	}
}

// RunBuild wires a scheduler for one invocation and executes it. The
// renderer and datastore are rebuilt every call so repeated builds in serve
// mode pick up data changes.
func RunBuild(ctx context.Context, g *Global, root string, cfg *config.Config, o BuildOverrides) (*build.Result, error) {
	applyStageOverrides(cfg, o)

	store, err := datastore.Load(cfg.DataDir(root))
	if err != nil {
		return nil, err
	}
	renderer, err := render.NewMarkdownRenderer(cfg.SiteName, cfg.BaseURL, cfg.ComponentsDir(root), store)
	if err != nil {
		return nil, err
	}

	var optimizer *images.Optimizer
	if cfg.Pipeline.OptimizeImagesEnabled() {
		index, err := images.OpenVariantIndex(filepath.Join(root, ".nitro", "images.db"))
		if err != nil {
			return nil, err
		}
		defer index.Close()
		outDir := o.Output
		if outDir == "" {
			outDir = cfg.OutputDir(root)
		}
		optimizer = images.NewOptimizer(images.PassthroughEngine{}, index, outDir,
			cfg.Images.Widths, cfg.Images.Formats, g.Logger)
	}

	scheduler := build.New(build.Options{
		Config:      cfg,
		ProjectRoot: root,
		OutputDir:   o.Output,
		Renderer:    renderer,
		Enumerator:  renderer,
		Hooks:       o.Hooks,
		Recorder:    g.Recorder,
		Logger:      g.Logger,
		Optimizer:   optimizer,
		Force:       o.Force,
		Production:  o.Production,
		Workers:     o.Workers,
		ConfigFile:  o.ConfigFile,
	})
	return scheduler.Run(ctx)
}
