// Package middleware holds the net/http middleware of the molcore API.
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/turtacn/molcore/internal/infrastructure/monitoring/logging"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLength = 128

// RequestID keeps the caller's X-Request-ID or assigns a random one, echoes
// it on the response and stores it in the request context where
// Logger.WithContext picks it up.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLength {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.ContextWithRequestID(r.Context(), id)))
	})
}
