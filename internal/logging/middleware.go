package logging

import (
	"log/slog"
	"net/http"
)

// NewRequestLoggerMiddleware attaches a request-scoped logger to the request
// context, tagged with the requested repository and the caller's user agent.
func NewRequestLoggerMiddleware(logger *slog.Logger) func(next http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			owner := r.PathValue("owner")
			if owner == "" {
				owner = "<missing>"
			}
			name := r.PathValue("name")
			if name == "" {
				name = "<missing>"
			}

			userAgent := r.UserAgent()
			if userAgent == "" {
				userAgent = "<missing>"
			}

			requestLogger := logger.With(
				slog.String("owner", owner),
				slog.String("repo", name),
				slog.String("userAgent", userAgent),
			)

			next(w, r.WithContext(AddToContext(r.Context(), requestLogger)))
		}
	}
}
