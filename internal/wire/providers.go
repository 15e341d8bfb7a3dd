package wire

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/google/wire"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sevigo/metroid/internal/app"
	"github.com/sevigo/metroid/internal/broker/natsbus"
	"github.com/sevigo/metroid/internal/config"
	"github.com/sevigo/metroid/internal/core"
	"github.com/sevigo/metroid/internal/db"
	"github.com/sevigo/metroid/internal/failures"
	"github.com/sevigo/metroid/internal/jobs"
	"github.com/sevigo/metroid/internal/logger"
	"github.com/sevigo/metroid/internal/metrics"
	"github.com/sevigo/metroid/internal/publish"
	"github.com/sevigo/metroid/internal/routing"
	"github.com/sevigo/metroid/internal/server"
	"github.com/sevigo/metroid/internal/storage"
	"github.com/sevigo/metroid/internal/subscriber"
)

var AppSet = wire.NewSet(
	app.NewApp,
	server.NewServer,
	config.LoadConfig,
	db.NewDatabase,
	storage.NewStore,
	failures.NewRecorder,
	failures.NewService,
	subscriber.NewRunners,
	subscriber.NewSupervisor,
	provideLoggerConfig,
	provideLogWriter,
	provideSlogLogger,
	provideDBConfig,
	provideSQLX,
	providePrometheusRegistry,
	provideMetrics,
	provideJobRegistry,
	provideRoutes,
	provideDispatcher,
	provideReceiver,
	providePublisher,
	provideServerDependencies,
	wire.Bind(new(core.JobDispatcher), new(*jobs.Dispatcher)),
	wire.Bind(new(jobs.FailureHook), new(*failures.Recorder)),
	wire.Bind(new(failures.HandlerLookup), new(*routing.Registry)),
)

func provideLoggerConfig(cfg *config.Config) logger.Config {
	return cfg.Logging
}

func provideLogWriter(cfg *config.Config) io.Writer {
	return logger.OutputWriter(cfg.Logging.Output)
}

func provideSlogLogger(loggerConfig logger.Config, writer io.Writer) *slog.Logger {
	l := logger.NewLogger(loggerConfig, writer)
	slog.SetDefault(l)
	return l
}

func provideDBConfig(cfg *config.Config) *config.DBConfig {
	return &cfg.Database
}

func provideSQLX(conn *db.DB) *sqlx.DB {
	return conn.DB
}

func providePrometheusRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func provideMetrics(reg *prometheus.Registry) *metrics.Metrics {
	return metrics.New(reg)
}

func provideJobRegistry(cfg *config.Config, logger *slog.Logger) (*jobs.Registry, error) {
	reg := jobs.NewRegistry()
	if err := jobs.RegisterBuiltins(reg, cfg.Jobs, logger); err != nil {
		return nil, fmt.Errorf("failed to register jobs: %w", err)
	}
	return reg, nil
}

func provideRoutes(cfg *config.Config, jobRegistry *jobs.Registry) (*routing.Registry, error) {
	return routing.NewRegistry(cfg.Subscriptions, jobRegistry)
}

func provideDispatcher(cfg *config.Config, jobRegistry *jobs.Registry, hook jobs.FailureHook, m *metrics.Metrics, logger *slog.Logger) (*jobs.Dispatcher, func()) {
	d := jobs.NewDispatcher(cfg.Jobs, jobRegistry, hook, m, logger)
	return d, d.Stop
}

func provideReceiver(cfg *config.Config, logger *slog.Logger) core.Receiver {
	return natsbus.NewReceiver(cfg.NATS, logger)
}

func providePublisher(cfg *config.Config, store core.Store, m *metrics.Metrics, logger *slog.Logger) *publish.Client {
	return publish.NewClient(cfg.Publish, cfg, store, m, logger)
}

func provideServerDependencies(svc *failures.Service, publisher *publish.Client, store core.Store, reg *prometheus.Registry) server.Dependencies {
	return server.Dependencies{
		FailedMessages: svc,
		Publisher:      publisher,
		FailedPublish:  store,
		Gatherer:       reg,
	}
}
