// Package handler provides the HTTP handlers of the operator API.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

type errorResponse struct {
	Status string `json:"status,omitempty"`
	Error  string `json:"error"`
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, err error) {
	writeJSON(w, logger, status, errorResponse{Error: err.Error()})
}

// idParam reads the {id} URL parameter.
func idParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
