// Package tracing wraps the OpenTelemetry tracer used by the agent.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName identifies spans created by the agent.
const InstrumentationName = "github.com/kimhsiao/tripplanner/backend"

var tracer trace.Tracer

// SetTracer overrides the tracer. Passing nil restores the global provider's tracer.
func SetTracer(t trace.Tracer) {
	tracer = t
}

func current() trace.Tracer {
	if tracer != nil {
		return tracer
	}
	return otel.Tracer(InstrumentationName)
}

// StartSpan starts a new span with the given name and returns the context and span.
func StartSpan(ctx context.Context, spanName string) (context.Context, trace.Span) {
	return current().Start(ctx, spanName)
}

// GetTraceID returns the trace ID from the context, or "" when no span is recording.
func GetTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return ""
	}
	return span.SpanContext().TraceID().String()
}
