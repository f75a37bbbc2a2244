// Package logger builds the slog loggers used across the relist service and
// carries request-scoped logging state (correlation ID, user ID, the enriched
// logger itself) through context.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/trace"
)

type ctxKey int

const (
	ctxKeyCorrelationID ctxKey = iota
	ctxKeyUserID
	ctxKeyLogger
)

// parseLevel maps a config string to a slog level. Unknown values fall back
// to info so a typo in LOG_LEVEL never silences the service.
func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New returns a JSON logger for the named service writing to stdout.
func New(serviceName, level string) *slog.Logger {
	return NewWithWriter(serviceName, level, os.Stdout)
}

// NewWithWriter is New with an explicit destination, mainly for tests that
// capture output in a buffer. Source locations are attached only at debug
// level to keep production lines compact.
func NewWithWriter(serviceName, level string, w io.Writer) *slog.Logger {
	lvl := parseLevel(level)
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	})
	return slog.New(h).With(slog.String("service", serviceName))
}

// WithCorrelationID stores the request correlation ID in the context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyCorrelationID, id)
}

// CorrelationIDFromContext returns the stored correlation ID, or "".
func CorrelationIDFromContext(ctx context.Context) string {
	s, _ := ctx.Value(ctxKeyCorrelationID).(string)
	return s
}

// WithUserID stores the acting user's ID in the context for log enrichment.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyUserID, id)
}

// UserIDFromContext returns the stored user ID, or "".
func UserIDFromContext(ctx context.Context) string {
	s, _ := ctx.Value(ctxKeyUserID).(string)
	return s
}

// NewContext stores a logger in the context for retrieval by FromContext.
func NewContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKeyLogger, l)
}

// FromContext returns the request-scoped logger placed by NewContext, or
// slog.Default() when none was stored.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKeyLogger).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// WithContext enriches l with whatever identifiers the context carries:
// correlation_id, user_id, and the active OpenTelemetry trace/span IDs.
// Fields absent from the context are simply omitted.
func WithContext(ctx context.Context, l *slog.Logger) *slog.Logger {
	attrs := make([]any, 0, 4)
	if id := CorrelationIDFromContext(ctx); id != "" {
		attrs = append(attrs, slog.String("correlation_id", id))
	}
	if id := UserIDFromContext(ctx); id != "" {
		attrs = append(attrs, slog.String("user_id", id))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		attrs = append(attrs,
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	if len(attrs) == 0 {
		return l
	}
	return l.With(attrs...)
}
