package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sevigo/metroid/internal/core"
	"github.com/sevigo/metroid/internal/publish"
)

// Publisher posts events and replays failed posts.
type Publisher interface {
	Publish(ctx context.Context, topicName string, ev publish.Event) error
	RetryFailed(ctx context.Context) (publish.RetryReport, error)
}

// FailedPublishLister lists stored failed publishes.
type FailedPublishLister interface {
	ListFailedPublishes(ctx context.Context) ([]*core.FailedPublish, error)
}

// PublishHandler serves the publish and failed-publish endpoints.
type PublishHandler struct {
	publisher Publisher
	failed    FailedPublishLister
	logger    *slog.Logger
}

// NewPublishHandler creates a PublishHandler.
func NewPublishHandler(publisher Publisher, failed FailedPublishLister, logger *slog.Logger) *PublishHandler {
	return &PublishHandler{publisher: publisher, failed: failed, logger: logger}
}

type publishResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Publish posts the request body as an event to the {topic} URL parameter.
func (h *PublishHandler) Publish(w http.ResponseWriter, r *http.Request) {
	topic := chi.URLParam(r, "topic")

	var ev publish.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, errors.New("invalid event body"))
		return
	}
	if ev.EventType == "" || ev.Subject == "" || ev.DataVersion == "" {
		writeError(w, h.logger, http.StatusBadRequest, errors.New("eventType, subject and dataVersion are required"))
		return
	}

	err := h.publisher.Publish(r.Context(), topic, ev)
	switch {
	case err == nil:
		writeJSON(w, h.logger, http.StatusOK, publishResponse{Status: "published"})
	case errors.Is(err, publish.ErrNoPublishKey):
		writeError(w, h.logger, http.StatusNotFound, err)
	default:
		writeJSON(w, h.logger, http.StatusBadGateway, publishResponse{Status: "failed", Error: err.Error()})
	}
}

// ListFailed returns the stored failed publishes.
func (h *PublishHandler) ListFailed(w http.ResponseWriter, r *http.Request) {
	records, err := h.failed.ListFailedPublishes(r.Context())
	if err != nil {
		h.logger.Error("failed to list failed publishes", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, errors.New("failed to list failed publishes"))
		return
	}
	if records == nil {
		records = []*core.FailedPublish{}
	}
	writeJSON(w, h.logger, http.StatusOK, records)
}

// RetryFailed re-posts every stored failed publish.
func (h *PublishHandler) RetryFailed(w http.ResponseWriter, r *http.Request) {
	report, err := h.publisher.RetryFailed(r.Context())
	if err != nil {
		h.logger.Error("failed publish retry failed", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, errors.New("failed to retry failed publishes"))
		return
	}
	writeJSON(w, h.logger, http.StatusOK, report)
}
