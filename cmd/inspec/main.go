package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/pluginhost/pkg/cli"
	"github.com/platinummonkey/pluginhost/pkg/config"
	"github.com/platinummonkey/pluginhost/pkg/observability"
	"github.com/platinummonkey/pluginhost/pkg/plugins"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stderr)

	if err := run(cfg, logger, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *logrus.Logger, args []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = observability.MustRecover(r)
			logger.WithError(err).Error("PANIC recovered")
		}
	}()

	ctx, stop := observability.SignalContext(context.Background(), logger)
	defer stop()

	shutdown := observability.NewShutdownManager(logger, 5*time.Second)
	defer func() {
		if err := shutdown.Shutdown(); err != nil {
			logger.WithError(err).Warn("Shutdown incomplete")
		}
	}()

	opts := cfg.LoaderOptions()
	opts.Commands = cli.NewRootCommand()

	if path := cfg.Observability.MetricsTextfile; path != "" {
		registry := prometheus.NewRegistry()
		opts.Metrics = observability.NewPluginMetrics(registry)
		shutdown.RegisterShutdownFunc(func(context.Context) error {
			return observability.WriteTextfile(path, registry)
		})
	}

	loader, err := plugins.NewLoader(plugins.Default(), opts, logger)
	if err != nil {
		return err
	}

	if err := loader.LoadAll(ctx); err != nil {
		return err
	}

	opts.Commands.AddSubcommand(plugins.NewPluginCommand(loader.Registry()))

	return opts.Commands.Execute(args)
}
