package database

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/utafrali/RelistGo/pkg/database"

// slowQuerySettings is swapped atomically so TraceQuery never takes a lock
// on the hot path.
type slowQuerySettings struct {
	threshold time.Duration
	logger    *slog.Logger
}

var slowQuery atomic.Pointer[slowQuerySettings]

// SetSlowQueryLogging enables a warning log for queries that run at least
// threshold. A zero threshold or nil logger disables it.
func SetSlowQueryLogging(threshold time.Duration, logger *slog.Logger) {
	slowQuery.Store(&slowQuerySettings{threshold: threshold, logger: logger})
}

// TraceQuery opens a client span for one database operation and returns the
// completion callback:
//
//	ctx, end := database.TraceQuery(ctx, "GetProduct", query)
//	defer func() { end(err) }()
//
// The callback records the error on the span and, when slow query logging is
// configured, emits a warning for queries over the threshold.
func TraceQuery(ctx context.Context, operation, statement string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "db."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", operation),
			attribute.String("db.statement", statement),
		),
	)

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		s := slowQuery.Load()
		if s == nil || s.threshold <= 0 || s.logger == nil {
			return
		}
		elapsed := time.Since(start)
		if elapsed < s.threshold {
			return
		}
		attrs := []any{
			slog.String("operation", operation),
			slog.String("statement", statement),
			slog.Duration("duration", elapsed),
		}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		s.logger.WarnContext(ctx, "slow query detected", attrs...)
	}
}
