// Benchtop - Experiment History Analytics and Result Caching
// Copyright 2026 A. Harstad (aharstad)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aharstad/benchtop

// Package main is the entry point for the Benchtop server.
//
// Benchtop serves metric history and table queries over experiment
// result files (Parquet and CSV) through a REST API, caching query
// results in memory so repeated reads of large result files stay cheap.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: settings from environment variables and config file (Koanf v2)
//  2. Dataset store: in-memory DuckDB over the results directory, with
//     bounded result caches for history and table queries
//  3. Authentication: optional JWT bearer tokens for mutating endpoints
//  4. Supervisor tree: filesystem watcher, cache sweeper, metrics
//     publisher, and the HTTP server, each restarted on failure
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (BENCHTOP_ prefix, e.g. BENCHTOP_SERVER_PORT)
//   - Config file (benchtop.yaml)
//   - Built-in defaults
//
// Common settings:
//   - BENCHTOP_DATA_DIR: directory of result files (default /data/results)
//   - BENCHTOP_DATA_WATCH: invalidate cached results when files change
//   - BENCHTOP_CACHE_TTL_SECONDS: result cache TTL (default 300)
//   - BENCHTOP_CACHE_MAX_ITEMS / BENCHTOP_CACHE_MAX_SIZE_BYTES: cache bounds
//   - BENCHTOP_AUTH_ENABLED / BENCHTOP_AUTH_JWT_SECRET: protect mutating endpoints
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM:
//   - Stops accepting new connections
//   - Waits for in-flight requests to complete (10s timeout)
//   - Closes the dataset store and its DuckDB connection
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/aharstad/benchtop/internal/api"
	"github.com/aharstad/benchtop/internal/config"
	"github.com/aharstad/benchtop/internal/dataset"
	"github.com/aharstad/benchtop/internal/logging"
	"github.com/aharstad/benchtop/internal/metrics"
	"github.com/aharstad/benchtop/internal/middleware"
	"github.com/aharstad/benchtop/internal/supervisor"
	"github.com/aharstad/benchtop/internal/supervisor/services"
)

const version = "0.4.0"

// metricsPublisher forwards cache statistics to the registry and keeps
// the uptime gauge current on the same schedule.
type metricsPublisher struct {
	store *dataset.Store
	start time.Time
}

func (p metricsPublisher) PublishMetrics() {
	p.store.PublishMetrics()
	metrics.AppUptime.Set(time.Since(p.start).Seconds())
}

func main() {
	start := time.Now()

	// Load configuration first to get logging settings.
	cfg, err := config.Load()
	if err != nil {
		// Default logger for config errors (config not yet available).
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("version", version).
		Str("data_dir", cfg.Data.Dir).
		Bool("watch", cfg.Data.Watch).
		Bool("auth", cfg.Auth.Enabled).
		Msg("Starting Benchtop")

	metrics.AppInfo.WithLabelValues(version, runtime.Version()).Set(1)

	store, err := dataset.NewStore(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize dataset store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing dataset store")
		}
	}()
	logging.Info().Str("dir", store.DataDir()).Msg("Dataset store initialized")

	var tokens *middleware.TokenManager
	if cfg.Auth.Enabled {
		tokens, err = middleware.NewTokenManager(&cfg.Auth)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize token manager")
		}
		logging.Info().Msg("JWT authentication enabled for mutating endpoints")
	} else {
		logging.Warn().Msg("Authentication disabled: cache clear and warm endpoints are open")
	}

	if cfg.Server.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bridge zerolog to slog for sutureslog.
	tree, err := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	if cfg.Data.Watch {
		tree.AddDataService(dataset.NewWatcher(store))
		logging.Info().Msg("Filesystem watcher added to supervisor tree")
	}

	tree.AddMaintenanceService(services.NewSweeperService(store, cfg.Cache.CleanupInterval))
	tree.AddMaintenanceService(services.NewPublisherService(metricsPublisher{store: store, start: start}, 15*time.Second))

	router := api.NewRouter(cfg, store, tokens)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Drain until the supervisor has fully stopped.
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Benchtop stopped gracefully")
}
