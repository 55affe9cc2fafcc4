package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/exthost"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/exthost/manifest"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/reporting"
)

func main() {
	cfg := config.LoadOrDefault()

	mainAddr := flag.String("main", cfg.MainThread.Address, "Main process WebSocket endpoint")
	manifestPath := flag.String("manifest", cfg.ExtHost.Manifest, "Extension manifest (.yaml or .toml)")
	reconnect := flag.Duration("reconnect", 0, "Delay between reconnect attempts (0 exits on disconnect)")
	dev := flag.Bool("dev", cfg.Logging.Development, "Development logging")
	flag.Parse()

	level := cfg.Logging.Level
	if *dev && level == "info" {
		level = "debug"
	}
	logger := logging.FromSettings(level, *dev)
	defer logger.Sync()

	metrics := monitoring.NewMetrics(nil)
	sink := reporting.NewSink(logger.Logger, metrics)
	reporting.SetDefault(sink)

	m, err := manifest.Load(*manifestPath)
	if err != nil {
		logger.Fatal("Failed to load manifest", zap.String("path", *manifestPath), zap.Error(err))
	}
	logger.Info("Manifest loaded",
		zap.String("path", *manifestPath),
		zap.Int("extensions", len(m.Extensions)),
	)

	host := exthost.New(exthost.Config{
		MainAddr:       *mainAddr,
		DialTimeout:    cfg.ExtHost.DialTimeout,
		ReconnectDelay: *reconnect,
	}, m,
		exthost.WithLogger(logger.Logger),
		exthost.WithMetrics(metrics),
		exthost.WithReporter(sink),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := host.Run(ctx); err != nil {
		logger.Error("Extension host stopped", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("Extension host stopped")
}
