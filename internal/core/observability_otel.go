package core

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelTracer adapts an OpenTelemetry tracer to the service Tracer.
type OTelTracer struct {
	tracer trace.Tracer
}

// NewOTelTracer wraps a tracer obtained from a provider, e.g.
// otel.GetTracerProvider().Tracer("labcore").
func NewOTelTracer(tracer trace.Tracer) *OTelTracer {
	return &OTelTracer{tracer: tracer}
}

// Start implements Tracer. The returned context carries the span.
func (t *OTelTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	ctx, span := t.tracer.Start(ctx, "labcore."+operation,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("labcore.operation", operation)))
	if id, ok := RequestIDFromContext(ctx); ok {
		span.SetAttributes(attribute.String("labcore.request_id", id))
	}
	return ctx, otelSpan{span: span}
}

type otelSpan struct {
	span trace.Span
}

func (s otelSpan) End(err error) {
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}
