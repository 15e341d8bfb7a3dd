// Package app initializes and orchestrates the main components of metroid.
// It runs the subscription supervisor, the operator HTTP server and the
// failed publish retry loop as one unit.
package app

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/sevigo/metroid/internal/config"
	"github.com/sevigo/metroid/internal/core"
	"github.com/sevigo/metroid/internal/failures"
	"github.com/sevigo/metroid/internal/jobs"
	"github.com/sevigo/metroid/internal/publish"
	"github.com/sevigo/metroid/internal/routing"
	"github.com/sevigo/metroid/internal/server"
	"github.com/sevigo/metroid/internal/subscriber"
)

// App holds the main application components.
type App struct {
	Cfg            *config.Config
	Store          core.Store
	Routes         *routing.Registry
	FailedMessages *failures.Service
	Publisher      *publish.Client

	server     *server.Server
	supervisor *subscriber.Supervisor
	dispatcher *jobs.Dispatcher
	logger     *slog.Logger
}

// NewApp sets up the application with all its dependencies.
func NewApp(
	cfg *config.Config,
	store core.Store,
	routes *routing.Registry,
	failedMessages *failures.Service,
	publisher *publish.Client,
	srv *server.Server,
	supervisor *subscriber.Supervisor,
	dispatcher *jobs.Dispatcher,
	logger *slog.Logger,
) *App {
	logger.Info("metroid application initialized",
		"subscriptions", len(routes.Subscriptions()),
		"max_workers", cfg.Jobs.MaxWorkers,
		"server_enabled", cfg.Server.Enabled,
	)
	return &App{
		Cfg:            cfg,
		Store:          store,
		Routes:         routes,
		FailedMessages: failedMessages,
		Publisher:      publisher,
		server:         srv,
		supervisor:     supervisor,
		dispatcher:     dispatcher,
		logger:         logger,
	}
}

// Run blocks until ctx is cancelled or a component stops. A subscription
// that ends on its own is returned as *subscriber.RunnerEndedError.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("starting metroid",
		"server_port", a.Cfg.Server.Port,
		"max_workers", a.Cfg.Jobs.MaxWorkers)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.supervisor.Run(gctx)
	})

	g.Go(func() error {
		return a.Publisher.RunRetryLoop(gctx, a.Cfg.Publish.RetryInterval)
	})

	if a.Cfg.Server.Enabled {
		g.Go(func() error {
			if err := a.server.Start(); err != nil {
				a.logger.Error("failed to start HTTP server", "error", err)
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			return a.server.Stop()
		})
	}

	return g.Wait()
}

// Stop shuts down the application cleanly.
func (a *App) Stop() error {
	a.logger.Info("shutting down metroid services")

	serverErr := a.server.Stop()
	if serverErr != nil {
		a.logger.Error("error during HTTP server shutdown", "error", serverErr)
	}

	// Queued jobs finish before the process exits.
	a.dispatcher.Stop()

	if serverErr != nil {
		a.logger.Error("metroid stopped with errors", "error", serverErr)
		return serverErr
	}

	a.logger.Info("metroid stopped successfully")
	return nil
}
