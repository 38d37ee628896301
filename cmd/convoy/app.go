package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/artpar/convoy/internal/core/manifest"
	"github.com/artpar/convoy/internal/core/registry"
	"github.com/artpar/convoy/internal/shell/buildref"
	"github.com/artpar/convoy/internal/shell/marathon"
	"github.com/artpar/convoy/internal/shell/metrics"
	"github.com/artpar/convoy/internal/shell/reconcile"
)

// app is everything a command needs once settings and the manifest are loaded.
type app struct {
	cfg      *Config
	logger   *slog.Logger
	registry *registry.Registry
	resolver *buildref.Resolver
	stdout   io.Writer
}

// loader builds the app for a command.
type loader func(cmd *cobra.Command) (*app, error)

func newLoader(configPath *string, stdout, stderr io.Writer) loader {
	return func(cmd *cobra.Command) (*app, error) {
		cfg, err := LoadConfig(*configPath, cmd.Flags())
		if err != nil {
			return nil, err
		}
		logger := SetupLogger(cfg, stderr)

		data, err := os.ReadFile(cfg.Manifest)
		if err != nil {
			return nil, fmt.Errorf("read manifest: %w", err)
		}
		reg := registry.New()
		if err := manifest.LoadBytes(reg, data); err != nil {
			logger.Error("manifest is invalid", "manifest", cfg.Manifest, "error", err)
			return nil, err
		}
		logger.Debug("manifest loaded",
			"manifest", cfg.Manifest,
			"deployments", len(reg.Deployments()),
			"builds", len(reg.Builds()),
		)

		return &app{
			cfg:      cfg,
			logger:   logger,
			registry: reg,
			resolver: buildref.NewResolver(buildref.GitHead("")),
			stdout:   stdout,
		}, nil
	}
}

// newEngine wires the reconciliation engine. The recorder is nil unless a
// metrics file is configured.
func (a *app) newEngine() (*reconcile.Engine, *metrics.Recorder) {
	pool := marathon.NewPool(marathon.Config{
		Username: a.cfg.Marathon.Username,
		Password: a.cfg.Marathon.Password,
		ProxyURL: a.cfg.Marathon.Proxy,
		Timeout:  a.cfg.Marathon.Timeout,
	}, a.logger)

	var opts []reconcile.Option
	var recorder *metrics.Recorder
	if a.cfg.Metrics.File != "" {
		recorder = metrics.NewRecorder()
		opts = append(opts, reconcile.WithRecorder(recorder))
	}

	engine := reconcile.NewEngine(
		reconcile.PoolConnector(pool),
		a.registry,
		a.resolver,
		reconcile.Config{
			PollInterval: a.cfg.Poll.Interval,
			MaxRetries:   a.cfg.Poll.MaxRetries,
		},
		a.logger,
		opts...,
	)
	return engine, recorder
}
