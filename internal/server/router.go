package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sevigo/metroid/internal/server/handler"
)

// Dependencies are the services exposed by the operator API.
type Dependencies struct {
	FailedMessages handler.FailedMessageService
	Publisher      handler.Publisher
	FailedPublish  handler.FailedPublishLister
	Gatherer       prometheus.Gatherer
}

// NewRouter creates and configures a new HTTP router with middleware and API routes.
func NewRouter(deps Dependencies, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Configure middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		failed := handler.NewFailedMessageHandler(deps.FailedMessages, logger)
		r.Route("/failed-messages", func(r chi.Router) {
			r.Get("/", failed.List)
			r.Get("/{id}", failed.Get)
			r.Post("/{id}/retry", failed.Retry)
			r.Delete("/{id}", failed.Delete)
		})

		publisher := handler.NewPublishHandler(deps.Publisher, deps.FailedPublish, logger)
		r.Get("/failed-publishes", publisher.ListFailed)
		r.Post("/failed-publishes/retry", publisher.RetryFailed)
		r.Post("/publish/{topic}", publisher.Publish)
	})

	return r
}
