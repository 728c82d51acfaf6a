// Package handler provides HTTP handlers for the API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/wpp-platform/customer-service/internal/service"
	apperrors "github.com/wpp-platform/customer-service/pkg/errors"
	"github.com/wpp-platform/customer-service/pkg/logger"
)

const (
	defaultPageLimit = 100
	maxPageLimit     = 1000
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// writeServiceError maps a service error to its HTTP status. Internal
// errors are logged and hidden from the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	if errors.Is(err, service.ErrNoSender) {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context(), log).Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
		if status == http.StatusInternalServerError {
			writeError(w, status, "internal server error")
			return
		}
	}
	writeError(w, status, err.Error())
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperrors.Validation("body", "invalid request body: %v", err)
	}
	return nil
}

// pagination reads skip and limit query parameters.
func pagination(r *http.Request) (skip, limit int) {
	limit = defaultPageLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= maxPageLimit {
			limit = parsed
		}
	}
	if s := r.URL.Query().Get("skip"); s != "" {
		if parsed, err := strconv.Atoi(s); err == nil && parsed >= 0 {
			skip = parsed
		}
	}
	return skip, limit
}
