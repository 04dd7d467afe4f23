// Daybook - Save-Game Persistence for 365 Adventure: Cthulhu
// Copyright 2026 Grimoire Interactive
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/grimoire-interactive/daybook

// Package main is the entry point for the daybook daemon.
//
// Daybook is the local save-game companion for 365 Adventure: Cthulhu.
// The browser UI talks to it over a small HTTP API; daybook persists
// save slots in an embedded store and, when a save server is
// configured, mirrors slots to it in the background.
//
// # Application Architecture
//
// The daemon initializes components in the following order:
//
//  1. Configuration: Koanf v2 layered loading (defaults, YAML file, env)
//  2. Storage engine: Badger by default, SQLite fallback, pinned via
//     the ENGINE marker in the data directory
//  3. Normalized store: five-collection save decomposition with schema
//     upgrades and post-write verification
//  4. Remote client (optional): save-API uploads/downloads behind a
//     circuit breaker
//  5. Slot manager: slot CRUD, the active-slot pointer, export/import,
//     autosave with background sync
//  6. HTTP server: the API the game UI consumes, plus /metrics
//
// # Configuration
//
// Configuration is loaded via Koanf v2 (highest priority wins):
//   - Environment variables (DAYBOOK_DATA_DIR, HTTP_PORT, SAVE_API_URL, ...)
//   - Config file (config.yaml, or CONFIG_PATH)
//   - Built-in defaults
//
// # Offline Play
//
// The save server is optional. Without SAVE_API_ENABLED=true the daemon
// runs fully offline: saves land locally, sync endpoints no-op, and
// encounter data is served from the persistent cache when present.
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the HTTP server drains
// in-flight requests (10s timeout), the maintenance loop stops, and the
// storage engine is closed last so every accepted write is durable.
//
// # Example Usage
//
// Offline, data in the default directory:
//
//	./daybookd
//
// With a save server:
//
//	export SAVE_API_ENABLED=true
//	export SAVE_API_URL=https://save.365adventure.example
//	./daybookd
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

	"github.com/grimoire-interactive/daybook/internal/api"
	"github.com/grimoire-interactive/daybook/internal/cache"
	"github.com/grimoire-interactive/daybook/internal/config"
	"github.com/grimoire-interactive/daybook/internal/encounters"
	"github.com/grimoire-interactive/daybook/internal/engine"
	"github.com/grimoire-interactive/daybook/internal/logging"
	"github.com/grimoire-interactive/daybook/internal/metrics"
	"github.com/grimoire-interactive/daybook/internal/remote"
	"github.com/grimoire-interactive/daybook/internal/slots"
	"github.com/grimoire-interactive/daybook/internal/store"
	"github.com/grimoire-interactive/daybook/internal/supervisor"
	"github.com/grimoire-interactive/daybook/internal/supervisor/services"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		// Config errors surface through the default logger; Init never ran.
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("version", version).
		Str("data_dir", cfg.Storage.Dir).
		Str("engine", cfg.Storage.Engine).
		Bool("remote_enabled", cfg.Remote.Enabled).
		Msg("Starting daybook")

	metrics.AppInfo.WithLabelValues(version, runtime.Version()).Set(1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage engine: probe, fall back, and pin via the ENGINE marker.
	eng, err := engine.Open(ctx, cfg.Storage.Dir, cfg.Storage.Engine)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open storage engine")
	}
	defer func() {
		if err := eng.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing storage engine")
		}
	}()
	logging.Info().Str("engine", eng.Name()).Msg("Storage engine ready")

	// Normalized store. Open runs the schema upgrade, so a v1 data
	// directory is rewritten under the default slot before any request
	// is served.
	st, err := store.Open(ctx, eng)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open save store")
	}

	// Remote save-API client (optional).
	var remoteClient *remote.Client
	var slotRemote slots.RemoteClient
	var fetcher encounters.Fetcher
	if cfg.Remote.Enabled {
		remoteClient = remote.NewClient(cfg.Remote.BaseURL, cfg.Remote.Timeout)
		slotRemote = remoteClient
		fetcher = remoteClient
		logging.Info().Str("base_url", cfg.Remote.BaseURL).Msg("Save server sync enabled")
	} else {
		logging.Info().Msg("Save server sync disabled - running offline")
	}

	mgr := slots.NewManager(st, eng, slotRemote)

	// Encounter reference data: in-memory TTL cache in front of the
	// persistent engine-backed copy. Works offline once primed.
	memCache := cache.New("encounters", cfg.Encounters.TTL)
	defer memCache.Stop()
	encounterSvc := encounters.NewService(eng, memCache, fetcher, cfg.Encounters.Version)

	// HTTP server.
	mwConfig := api.DefaultChiMiddlewareConfig()
	mwConfig.CORSAllowedOrigins = cfg.Server.CORSOrigins
	mwConfig.RateLimitRequests = cfg.Server.RateLimitReqs
	mwConfig.RateLimitWindow = cfg.Server.RateLimitWindow

	router := api.NewRouter(api.NewHandlers(mgr, encounterSvc), mwConfig)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  2 * cfg.Server.Timeout,
	}

	// Supervisor tree: storage maintenance and the HTTP server run in
	// separate layers so one crashing never restarts the other.
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddStorageService(services.NewEngineMaintenanceService(eng, 10*time.Minute))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// Uptime gauge.
	go func() {
		start := time.Now()
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metrics.AppUptime.Set(time.Since(start).Seconds())
			}
		}
	}()

	// Signal handling.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
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
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Daybook stopped gracefully")
}
