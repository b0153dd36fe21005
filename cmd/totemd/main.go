// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/totemview/totem/internal/config"
	"github.com/totemview/totem/internal/daemon"
	"github.com/totemview/totem/internal/log"
	"github.com/totemview/totem/internal/supervisor"
	"github.com/totemview/totem/internal/telemetry"
)

var (
	version   = "v1.0.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Explicit --config wins; otherwise pick up ${TOTEM_DATA}/config.yaml
	// when it exists.
	effectivePath := strings.TrimSpace(*configPath)
	if effectivePath == "" {
		if dataDir := os.Getenv("TOTEM_DATA"); dataDir != "" {
			candidate := filepath.Join(dataDir, "config.yaml")
			if _, err := os.Stat(candidate); err == nil {
				effectivePath = candidate
			}
		}
	}

	loader := config.NewLoader(effectivePath, version)
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "totemd: invalid configuration: %v\n", err)
		return 1
	}

	log.Configure(log.Config{
		Level:   cfg.LogLevel,
		Service: cfg.LogService,
		Version: version,
	})
	logger := log.WithComponent("main")

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.OTELEnabled,
		ServiceName:    cfg.LogService,
		ServiceVersion: version,
		Environment:    cfg.Environment,
		ExporterType:   cfg.OTELExporter,
		Endpoint:       cfg.OTELEndpoint,
		SamplingRate:   cfg.OTELSampleRate,
	})
	if err != nil {
		logger.Error().Err(err).Msg("telemetry init failed")
		return 1
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}()

	var holder *config.Holder
	if effectivePath != "" {
		holder = config.NewHolder(cfg, loader, effectivePath)
	}

	sup := supervisor.New()
	mgr, err := daemon.New(ctx, cfg, holder, sup)
	if err != nil {
		logger.Error().Err(err).Msg("daemon init failed")
		return 1
	}

	logger.Info().
		Str("event", "main.starting").
		Str("data_dir", cfg.DataDir).
		Str("listen_addr", cfg.ListenAddr).
		Str("version", version).
		Msg("totemd starting")

	err = mgr.Run(ctx)
	if code, restart := daemon.RestartExitCode(err); restart {
		logger.Info().
			Str("event", "main.restarting").
			Int("exit_code", code).
			Msg("exiting for relaunch")
		return code
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("daemon exited with error")
		return 1
	}

	logger.Info().Str("event", "main.stopped").Msg("totemd stopped")
	return 0
}
