package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer wraps OpenTelemetry tracing with execution-specific span management.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) *Tracer {
	return &Tracer{tracer: t}
}

// StartExecution starts a span for a resilient execution.
// Span name format: resilient.exec.<operation>.
func (t *Tracer) StartExecution(ctx context.Context, op, agent string) (context.Context, trace.Span) {
	if t == nil || t.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return t.tracer.Start(ctx, "resilient.exec."+op,
		trace.WithAttributes(
			attribute.String("op.name", op),
			attribute.String("op.agent", agent),
		),
	)
}

// EndExecution ends the span, recording the outcome source and any error.
func (t *Tracer) EndExecution(span trace.Span, source string, err error) {
	if t == nil || span == nil {
		return
	}
	span.SetAttributes(attribute.String("op.source", source))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
