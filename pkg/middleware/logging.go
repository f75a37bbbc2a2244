package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/RelistGo/pkg/logger"
)

// RequestLogging assigns each request a correlation ID (honoring an incoming
// X-Correlation-ID header, minting a UUID otherwise), echoes it back in the
// response, and writes one access-log line when the handler returns.
func RequestLogging(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			corrID := r.Header.Get("X-Correlation-ID")
			if corrID == "" {
				corrID = uuid.New().String()
			}
			ctx := logger.WithCorrelationID(r.Context(), corrID)
			w.Header().Set("X-Correlation-ID", corrID)

			sw := newStatusWriter(w)
			start := time.Now()
			next.ServeHTTP(sw, r.WithContext(ctx))

			l.InfoContext(ctx, "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", sw.status),
				slog.Duration("duration", time.Since(start)),
				slog.Int("bytes", sw.bytes),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("user_agent", r.UserAgent()),
				slog.String("correlation_id", corrID),
			)
		})
	}
}
