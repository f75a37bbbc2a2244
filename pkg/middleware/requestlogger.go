package middleware

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/RelistGo/pkg/logger"
)

// RequestLogger builds the request-scoped logger handlers retrieve with
// logger.FromContext: base enriched with correlation_id, user_id, trace_id,
// and span_id where present. Mount it after RequestLogging (correlation ID)
// and Tracing (span context) so both are already in the request context.
//
// The operator console identifies itself with an X-User-ID header; there is
// no authentication layer in front of this service.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if userID := r.Header.Get("X-User-ID"); userID != "" {
				ctx = logger.WithUserID(ctx, userID)
			}
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
