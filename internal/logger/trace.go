package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// traceIDFromContext pulls the active OTEL trace ID (if any) so log lines
// correlate with spans recorded by internal/apm.
func traceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
