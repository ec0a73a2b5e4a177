package commands

import (
	"fmt"
	"os"
	"path/filepath"
)

// CleanCmd implements the 'clean' command.
type CleanCmd struct {
	Cache bool `help:"Also remove the build cache and image variant index"`
}

// Run removes the build output tree, and optionally the .nitro state
// directory.
func (cmd *CleanCmd) Run(g *Global, cli *CLI) error {
	root, err := cli.ProjectRoot()
	if err != nil {
		return err
	}
	cfg, err := cli.LoadConfig(root)
	if err != nil {
		return err
	}

	outDir := cfg.OutputDir(root)
	if err := os.RemoveAll(outDir); err != nil {
		return fmt.Errorf("remove build output: %w", err)
	}
	g.Logger.Info("Build output removed", "dir", outDir)

	if cmd.Cache {
		stateDir := filepath.Join(root, ".nitro")
		if err := os.RemoveAll(stateDir); err != nil {
			return fmt.Errorf("remove cache directory: %w", err)
		}
		g.Logger.Info("Cache removed", "dir", stateDir)
	}
	return nil
}
