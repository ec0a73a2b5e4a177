package commands

import (
	"fmt"

	"github.com/nitrosh/nitro-cli/internal/deploy"
)

// DeployCmd implements the 'deploy' command.
type DeployCmd struct {
	Branch    string `help:"Target branch (overrides deploy.branch)"`
	Remote    string `help:"Remote name or URL (overrides deploy.remote)"`
	Message   string `short:"m" help:"Deploy commit message"`
	SkipBuild bool   `help:"Push the existing output without rebuilding"`
}

// Run produces a production build and pushes the output tree to the
// configured deploy branch.
func (cmd *DeployCmd) Run(g *Global, cli *CLI) error {
	root, err := cli.ProjectRoot()
	if err != nil {
		return err
	}
	cfg, err := cli.LoadConfig(root)
	if err != nil {
		return err
	}

	if !cmd.SkipBuild {
		res, err := RunBuild(g.Ctx, g, root, cfg, BuildOverrides{ConfigFile: cli.Config, Production: true})
		if err != nil {
			return err
		}
		if res.Failed > 0 {
			return fmt.Errorf("refusing to deploy: %d pages failed to build", res.Failed)
		}
	}

	branch := cfg.Deploy.Branch
	if cmd.Branch != "" {
		branch = cmd.Branch
	}
	remote := cfg.Deploy.Remote
	if cmd.Remote != "" {
		remote = cmd.Remote
	}
	message := cfg.Deploy.Message
	if cmd.Message != "" {
		message = cmd.Message
	}

	hash, err := deploy.Deploy(g.Ctx, deploy.Options{
		ProjectRoot: root,
		OutputDir:   cfg.OutputDir(root),
		Branch:      branch,
		Remote:      remote,
		Message:     message,
		Logger:      g.Logger,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Deployed %s to %s\n", hash[:8], branch)
	return nil
}
