// Package middleware provides HTTP middleware components for the ingestord API.
package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// Recovery returns a middleware that converts a handler panic into a logged
// RFC 7807 500 response instead of tearing down the connection.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					correlationID := GetCorrelationID(r.Context())

					logger.Error("HTTP request panic recovered",
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.String("correlation_id", correlationID),
						slog.Any("panic", err),
						slog.String("stack_trace", string(debug.Stack())),
					)

					detail := "An unexpected error occurred while processing the request"
					if encodeErr := writeRFC7807Error(w, r, http.StatusInternalServerError, detail, correlationID); encodeErr != nil {
						logger.Error("Failed to encode error response",
							slog.Any("error", encodeErr),
							slog.String("correlation_id", correlationID),
						)
					}
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
