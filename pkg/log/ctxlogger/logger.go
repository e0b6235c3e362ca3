package ctxlogger

import (
	"context"

	"github.com/smallbiznis/posledger/pkg/telemetry/correlation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type eventSubjectKey struct{}

// ContextWithEventSubject annotates the context with the business event being booked.
func ContextWithEventSubject(ctx context.Context, subject string) context.Context {
	if subject == "" {
		return ctx
	}
	return context.WithValue(ctx, eventSubjectKey{}, subject)
}

func EventSubject(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	subject, _ := ctx.Value(eventSubjectKey{}).(string)
	return subject
}

// WithContext enriches base with the correlation, trace and event metadata carried by ctx.
func WithContext(ctx context.Context, base *zap.Logger) *zap.Logger {
	if ctx == nil || base == nil {
		return base
	}

	fields := make([]zap.Field, 0, 4)
	if cid := correlation.ExtractCorrelationID(ctx); cid != "" {
		fields = append(fields, zap.String("correlation_id", cid))
	}
	fields = append(fields, ExtractTrace(ctx)...)
	if subject := EventSubject(ctx); subject != "" {
		fields = append(fields, zap.String("event_subject", subject))
	}
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}

// ExtractTrace returns the trace and span IDs of the span in ctx, if any.
func ExtractTrace(ctx context.Context) []zap.Field {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil
	}
	return []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	}
}
