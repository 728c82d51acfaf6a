package middleware

import (
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apperrors "github.com/wpp-platform/customer-service/pkg/errors"
)

// ValidateID checks that id is a UUID.
func ValidateID(field, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperrors.Validation(field, "invalid %s format", field)
	}
	return nil
}

// ValidIDParam rejects requests whose URL parameter is not a UUID.
func ValidIDParam(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := ValidateID(param, chi.URLParam(r, param)); err != nil {
				writeError(w, http.StatusBadRequest, "invalid "+param+" format")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireJSON rejects bodies that are not declared as JSON and caps their
// size.
func RequireJSON(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength != 0 && r.Body != nil && r.Body != http.NoBody {
				mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
				if err != nil || mt != "application/json" {
					writeError(w, http.StatusUnsupportedMediaType, "content type must be application/json")
					return
				}
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
