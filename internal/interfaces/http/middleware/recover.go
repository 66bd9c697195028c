package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/turtacn/molcore/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molcore/pkg/errors"
)

// Recover converts a handler panic into a logged internal error and a 500
// response with the masked error body. http.ErrAbortHandler is re-raised.
func Recover(logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}
				err := errors.Internal(fmt.Sprintf("panic: %v", v))
				logger.WithContext(r.Context()).Error("handler panicked",
					logging.Err(err),
					logging.String("method", r.Method),
					logging.String("path", r.URL.Path),
					logging.String("stack", err.Stack),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"code":    string(err.Code),
					"message": errors.DefaultMessageForCode(err.Code),
				})
			}()
			next.ServeHTTP(w, r)
		})
	}
}
