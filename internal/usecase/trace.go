package usecase

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var usecaseTracer = otel.Tracer("oddsline/internal/usecase")
var usecaseNoopSpan = trace.SpanFromContext(context.Background())

// Supervisor cycles start root spans; everything else nests under a caller.
var usecaseRootSpans = map[string]struct{}{
	"usecase.Supervisor.runCycle": {},
}

func startUsecaseSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if strings.TrimSpace(name) == "" {
		return ctx, usecaseNoopSpan
	}
	if !trace.SpanFromContext(ctx).SpanContext().IsValid() {
		if _, ok := usecaseRootSpans[name]; !ok {
			return ctx, usecaseNoopSpan
		}
	}
	return usecaseTracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func recordSpanError(span trace.Span, err error) {
	if err == nil || !span.IsRecording() {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
