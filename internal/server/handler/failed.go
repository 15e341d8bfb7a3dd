package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sevigo/metroid/internal/core"
	"github.com/sevigo/metroid/internal/failures"
)

// FailedMessageService is the operator entry point for failed messages.
type FailedMessageService interface {
	List(ctx context.Context, limit int) ([]*core.FailedMessage, error)
	Get(ctx context.Context, id int64) (*core.FailedMessage, error)
	Retry(ctx context.Context, id int64) (failures.RetryResult, error)
	Delete(ctx context.Context, id int64) error
}

// FailedMessageHandler serves /api/v1/failed-messages.
type FailedMessageHandler struct {
	service FailedMessageService
	logger  *slog.Logger
}

// NewFailedMessageHandler creates a FailedMessageHandler.
func NewFailedMessageHandler(service FailedMessageService, logger *slog.Logger) *FailedMessageHandler {
	return &FailedMessageHandler{service: service, logger: logger}
}

type retryResponse struct {
	Status failures.RetryResult `json:"status"`
	Error  string               `json:"error,omitempty"`
}

// List returns the newest failed messages. The optional limit query
// parameter caps the result.
func (h *FailedMessageHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, h.logger, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
		limit = n
	}

	records, err := h.service.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list failed messages", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, errors.New("failed to list failed messages"))
		return
	}
	if records == nil {
		records = []*core.FailedMessage{}
	}
	writeJSON(w, h.logger, http.StatusOK, records)
}

// Get returns one failed message.
func (h *FailedMessageHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, errors.New("invalid id"))
		return
	}

	record, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeLookupError(w, id, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, record)
}

// Retry resubmits a failed message to its handler job.
func (h *FailedMessageHandler) Retry(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, errors.New("invalid id"))
		return
	}

	result, err := h.service.Retry(r.Context(), id)
	switch {
	case result == failures.RetryResubmitted:
		resp := retryResponse{Status: result}
		if err != nil {
			resp.Error = err.Error()
		}
		writeJSON(w, h.logger, http.StatusOK, resp)
	case result == failures.RetryNoHandler:
		writeJSON(w, h.logger, http.StatusNotFound, retryResponse{Status: result, Error: err.Error()})
	case failures.IsNotFound(err):
		writeError(w, h.logger, http.StatusNotFound, fmt.Errorf("failed message %d not found", id))
	default:
		h.logger.Error("failed to retry failed message", "id", id, "error", err)
		writeJSON(w, h.logger, http.StatusBadGateway, retryResponse{Status: failures.RetryFailed, Error: err.Error()})
	}
}

// Delete drops a failed message without replaying it.
func (h *FailedMessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, errors.New("invalid id"))
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		h.writeLookupError(w, id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *FailedMessageHandler) writeLookupError(w http.ResponseWriter, id int64, err error) {
	if failures.IsNotFound(err) {
		writeError(w, h.logger, http.StatusNotFound, fmt.Errorf("failed message %d not found", id))
		return
	}
	h.logger.Error("failed message lookup failed", "id", id, "error", err)
	writeError(w, h.logger, http.StatusInternalServerError, errors.New("failed message lookup failed"))
}
