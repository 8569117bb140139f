// Package handlers carries the HTTP surface. Handlers decode and sanitize
// input, delegate to the domain services, and translate domain errors into
// status codes; they never touch the database directly.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/whiskerwell/scheduling/internal/schederr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

type errorBody struct {
	Error string `json:"error"`
	Index *int   `json:"index,omitempty"`
}

// writeError maps the domain error taxonomy onto HTTP statuses. Anything
// unrecognized is a 500 with a generic body; the detail goes to the log,
// not the wire.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var ve *schederr.ValidationError
	if errors.As(err, &ve) {
		body := errorBody{Error: ve.Error()}
		if ve.Index >= 0 {
			idx := ve.Index
			body.Index = &idx
		}
		writeJSON(w, http.StatusBadRequest, body)
		return
	}
	switch {
	case schederr.IsAuthorization(err):
		writeJSON(w, http.StatusForbidden, errorBody{Error: err.Error()})
	case schederr.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case schederr.IsConflict(err):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	default:
		logger.Error("request failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, schederr.Validation("id", "must be a positive integer")
	}
	return id, nil
}

func parseLimit(r *http.Request, fallback, max int) int {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return fallback
	}
	if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= max {
		return n
	}
	return fallback
}
