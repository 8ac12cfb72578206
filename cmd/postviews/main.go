// Postviews - Post Engagement and View Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/postviews

// Package main runs the postviews engine as a service.
//
// Startup order:
//
//  1. Configuration (koanf: defaults, config.yaml, POSTVIEWS_* env)
//  2. Logging (zerolog)
//  3. Local store (badger, redis or memory)
//  4. Credentials and the remote analytics client
//  5. Event bus and tracker engine
//  6. WebSocket hub, event bridge, visibility adapter and HTTP router
//  7. Supervisor tree
//
// SIGINT and SIGTERM stop the tree, then pending backend calls get the
// shutdown timeout to finish before the store is closed.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/postviews/internal/api"
	"github.com/tomtom215/postviews/internal/auth"
	"github.com/tomtom215/postviews/internal/config"
	"github.com/tomtom215/postviews/internal/events"
	"github.com/tomtom215/postviews/internal/logging"
	"github.com/tomtom215/postviews/internal/remote"
	"github.com/tomtom215/postviews/internal/store"
	"github.com/tomtom215/postviews/internal/supervisor"
	"github.com/tomtom215/postviews/internal/supervisor/services"
	"github.com/tomtom215/postviews/internal/tracker"
	"github.com/tomtom215/postviews/internal/visibility"
	"github.com/tomtom215/postviews/internal/websocket"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("postviews exited with error")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		// Logger still has defaults here.
		return err
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing store")
		}
	}()

	creds := auth.FromConfig(cfg.Auth)
	rc := remote.New(cfg.Remote, creds)
	if rc == nil {
		logging.Warn().Msg("no remote backend configured, running local-only")
	}

	bus := events.NewBus(events.BusConfig{}, nil)
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing event bus")
		}
	}()

	opts := []tracker.Option{tracker.WithPublisher(bus)}
	if cfg.Auth.ResolveUserID {
		opts = append(opts, tracker.WithIdentity(auth.NewIdentityResolver(creds)))
	}
	if cfg.Remote.Timeout > 0 {
		opts = append(opts, tracker.WithRemoteTimeout(cfg.Remote.Timeout))
	}
	engine, err := tracker.New(ctx, cfg.Tracker, st, rc, opts...)
	if err != nil {
		return err
	}

	logging.Info().
		Str("store", cfg.Store.Backend).
		Bool("remote", rc != nil).
		Int("views", len(engine.Snapshot())).
		Msg("tracker engine ready")

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return err
	}

	if cfg.Retention.Schedule != "" {
		retention, err := services.NewRetentionService(engine, cfg.Retention.Schedule)
		if err != nil {
			return err
		}
		tree.AddDataService(retention)
	}

	var (
		hub      *websocket.Hub
		viewport *visibility.TimerAdapter
	)
	if cfg.Server.Enabled {
		hub = websocket.NewHub()
		tree.AddMessagingService(hub)
		tree.AddMessagingService(websocket.NewBridge(bus, hub))

		viewport = visibility.NewTimerAdapter(ctx, engine, cfg.Visibility)
		handler := api.NewHandler(engine, hub, cfg.Server.CORSOrigins, api.WithVisibility(viewport))
		router := api.NewRouter(handler, api.NewChiMiddleware(api.MiddlewareConfigFromServer(cfg.Server)))
		build := func() *http.Server {
			return &http.Server{
				Addr:              cfg.Server.Addr(),
				Handler:           router,
				ReadTimeout:       cfg.Server.ReadTimeout,
				ReadHeaderTimeout: cfg.Server.ReadTimeout,
				WriteTimeout:      cfg.Server.WriteTimeout,
			}
		}
		tree.AddAPIService(services.NewHTTPServerService(build, cfg.Server.ShutdownTimeout))
	} else {
		logging.Info().Msg("http server disabled")
	}

	logging.Info().Str("addr", cfg.Server.Addr()).Msg("starting postviews")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("supervisor tree stopped with error")
	}

	if viewport != nil {
		viewport.Close()
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		logging.Warn().Int("count", len(report)).Msg("services did not stop within the shutdown timeout")
	}

	drainTimeout := cfg.Server.ShutdownTimeout
	if drainTimeout <= 0 {
		drainTimeout = 10 * time.Second
	}
	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := engine.Drain(drainCtx); err != nil {
		logging.Warn().Err(err).Msg("pending backend calls abandoned at shutdown")
	}

	logging.Info().Msg("postviews stopped")
	return nil
}
