package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// recoveryBody is the fixed JSON payload returned when a handler panics.
// Marshaled once since no request data belongs in a panic response.
var recoveryBody = []byte(`{"code":"INTERNAL_ERROR","message":"an internal error occurred"}` + "\n")

// Recovery converts handler panics into 500 responses and logs the stack,
// keeping one misbehaving request from taking the process down.
func Recovery(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				l.ErrorContext(r.Context(), "panic recovered",
					slog.Any("panic", rec),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("stack", string(debug.Stack())),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				if _, err := w.Write(recoveryBody); err != nil {
					l.Error("write panic response", slog.String("error", err.Error()))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
