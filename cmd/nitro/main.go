package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/nitrosh/nitro-cli/cmd/nitro/commands"
	"github.com/nitrosh/nitro-cli/internal/metrics"
	"github.com/nitrosh/nitro-cli/internal/version"
)

func main() {
	var cli commands.CLI
	kctx := kong.Parse(&cli,
		kong.Name("nitro"),
		kong.Description("An incremental static site builder."),
		kong.UsageOnError(),
		kong.Vars{"version": version.Version},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prom.NewRegistry()
	g := &commands.Global{
		Ctx:      ctx,
		Logger:   slog.Default(),
		Registry: registry,
		Recorder: metrics.NewPrometheusRecorder(registry),
	}

	kctx.FatalIfErrorf(kctx.Run(g, &cli))
}
