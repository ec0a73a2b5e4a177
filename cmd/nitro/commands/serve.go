package commands

import (
	"context"

	"github.com/nitrosh/nitro-cli/internal/server"
)

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	Host         string `help:"Bind host (overrides dev_server.host)"`
	Port         int    `short:"p" help:"Bind port (overrides dev_server.port)"`
	NoLiveReload bool   `help:"Disable live reload injection"`
}

// Run starts the development server: initial build, watch-triggered
// incremental rebuilds, live reload over websocket.
func (cmd *ServeCmd) Run(g *Global, cli *CLI) error {
	root, err := cli.ProjectRoot()
	if err != nil {
		return err
	}
	cfg, err := cli.LoadConfig(root)
	if err != nil {
		return err
	}
	if cmd.Host != "" {
		cfg.DevServer.Host = cmd.Host
	}
	if cmd.Port != 0 {
		cfg.DevServer.Port = cmd.Port
	}
	if cmd.NoLiveReload {
		off := false
		cfg.DevServer.LiveReload = &off
	}

	rebuild := func(ctx context.Context) error {
		// Reload config so edits to nitro.yaml between rebuilds apply; the
		// scheduler separately invalidates the cache on config changes.
		freshCfg, err := cli.LoadConfig(root)
		if err != nil {
			return err
		}
		freshCfg.DevServer = cfg.DevServer
		_, err = RunBuild(ctx, g, root, freshCfg, BuildOverrides{ConfigFile: cli.Config})
		return err
	}

	srv := server.New(server.Options{
		Config:      cfg,
		ProjectRoot: root,
		Rebuild:     rebuild,
		Registry:    g.Registry,
		Logger:      g.Logger,
	})
	return srv.Run(g.Ctx)
}
