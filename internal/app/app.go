// Package app provides the top-level application lifecycle for the coinflip
// service. It wires together the stores, caches, randomness operator, event
// sinks and HTTP surfaces, and runs them until the context is cancelled.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/coinflip/internal/config"
	"github.com/alanyoungcy/coinflip/internal/domain"
	"github.com/alanyoungcy/coinflip/internal/engine"
	"github.com/alanyoungcy/coinflip/internal/events"
	"github.com/alanyoungcy/coinflip/internal/metrics"
	"github.com/alanyoungcy/coinflip/internal/server"
	"github.com/alanyoungcy/coinflip/internal/server/handler"
	"github.com/alanyoungcy/coinflip/internal/server/ws"
)

// shutdownTimeout bounds graceful HTTP shutdown after the run context ends.
const shutdownTimeout = 10 * time.Second

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, starts the server
// and background workers, and blocks until the context is cancelled. On
// return it runs all registered cleanup functions.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	a.logger.InfoContext(ctx, "starting coinflip service",
		slog.String("game_id", a.cfg.Game.ID),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	g, ctx := errgroup.WithContext(ctx)

	// Randomness fulfiller.
	if deps.Fulfiller != nil {
		g.Go(func() error {
			return deps.Fulfiller.Run(ctx)
		})
	}

	// Settlement archiver.
	if deps.Archiver != nil {
		g.Go(func() error {
			return deps.Archiver.Run(ctx)
		})
	}

	// WebSocket hub bridging the Redis event channel.
	hub := ws.NewHub(deps.Bus, events.Channel, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	// Metrics sidecar.
	if a.cfg.Metrics.Enabled {
		metricsSrv := metrics.StartServer(a.cfg.Metrics.Port, deps.Registry, func(ctx context.Context) error {
			return deps.RedisClient.Ping(ctx)
		})
		a.closers = append(a.closers, func() {
			shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = metricsSrv.Shutdown(shCtx)
		})
	}

	// Public HTTP API.
	handlers := server.Handlers{
		Health: handler.NewHealthHandler(map[string]handler.DependencyCheck{
			"postgres": func(ctx context.Context) error { return deps.PGClient.Pool().Ping(ctx) },
			"redis":    deps.RedisClient.Ping,
		}, a.logger),
		Bets:  handler.NewBetHandler(deps.Engine, deps.LockManager, a.logger),
		Stats: handler.NewStatsHandler(deps.Engine, deps.Treasury, deps.SettlementStore, a.logger),
		Admin: handler.NewAdminHandler(deps.Engine, deps.RedisPolicy, a.logger),
	}
	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, hub, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shCtx)
	})

	// Announce the deployment on the event stream.
	deps.Engine.AnnounceDeployed(ctx)

	err = g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close tears down all resources in reverse registration order. It is safe
// to call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down coinflip service")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// Compile-time interface checks.
var (
	_ handler.BetService = (*engine.Engine)(nil)
	_ domain.Emitter     = (*events.Fanout)(nil)
	_ events.Sink        = (*metrics.Metrics)(nil)
)
