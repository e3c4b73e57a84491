package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	apierrors "github.com/vitaliisemenov/msg-store/internal/api/errors"
)

// RecoveryMiddleware recovers from panics and returns a proper error response
func RecoveryMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					requestID := GetRequestID(r.Context())
					logger.Error("Panic recovered",
						"request_id", requestID,
						"error", err,
						"stack", string(debug.Stack()),
						"method", r.Method,
						"path", r.URL.Path,
					)
					apierrors.WriteError(w,
						apierrors.InternalError("An internal error occurred").WithRequestID(requestID))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
