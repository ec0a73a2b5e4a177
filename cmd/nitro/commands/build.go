package commands

import (
	"fmt"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Output     string `short:"o" help:"Output directory (default: the configured build_dir)"`
	Force      bool   `short:"f" help:"Rebuild everything, ignoring the cache"`
	Production bool   `help:"Production build: drafts are excluded from the output"`
	Workers    int    `short:"j" help:"Number of parallel page workers (default: number of CPUs)"`

	NoMinify      bool `help:"Disable HTML/CSS minification"`
	NoFingerprint bool `help:"Disable asset fingerprinting"`
	NoImages      bool `help:"Disable responsive image generation"`
	NoIslands     bool `help:"Disable island hydration injection"`
}

// Run executes the build command. Unit failures produce a non-zero exit
// while still writing every page that succeeded.
func (cmd *BuildCmd) Run(g *Global, cli *CLI) error {
	root, err := cli.ProjectRoot()
	if err != nil {
		return err
	}
	cfg, err := cli.LoadConfig(root)
	if err != nil {
		return err
	}

	res, err := RunBuild(g.Ctx, g, root, cfg, BuildOverrides{
		ConfigFile:  cli.Config,
		Output:      cmd.Output,
		Force:       cmd.Force,
		Production:  cmd.Production,
		Workers:     cmd.Workers,
		Minify:      disable(cmd.NoMinify),
		Fingerprint: disable(cmd.NoFingerprint),
		Images:      disable(cmd.NoImages),
		Islands:     disable(cmd.NoIslands),
	})
	if err != nil {
		return err
	}
	if res.Failed > 0 {
		for _, e := range res.Errors() {
			g.Logger.Error("Page failed", "error", e)
		}
		return fmt.Errorf("%d of %d pages failed", res.Failed, res.Built+res.Skipped+res.Failed)
	}
	return nil
}

// disable maps a --no-X flag to a pipeline toggle override; nil keeps the
// configured value.
func disable(no bool) *bool {
	if !no {
		return nil
	}
	off := false
	return &off
}
