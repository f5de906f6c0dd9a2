package httpapi

import (
	"context"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var apiTracer = otel.Tracer("oddsline/internal/interfaces/httpapi")
var noopSpan = trace.SpanFromContext(context.Background())

// tracedPathValues are the route wildcards copied onto handler spans.
var tracedPathValues = map[string]string{
	"name":    "scraper.name",
	"action":  "scraper.action",
	"matchID": "match.id",
	"userID":  "account.user_id",
	"taskID":  "task.id",
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if !trace.SpanFromContext(ctx).SpanContext().IsValid() {
		// Untraced routes such as /healthz never get helper spans.
		return ctx, noopSpan
	}
	if !shouldCreateHTTPAPISpan(name) {
		return ctx, noopSpan
	}
	return apiTracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// startHandlerSpan starts a handler span tagged with the matched route and
// its wildcard values.
func startHandlerSpan(r *http.Request, name string) (context.Context, trace.Span) {
	return startSpan(r.Context(), name, routeAttributes(r)...)
}

func routeAttributes(r *http.Request) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	if r.Pattern != "" {
		attrs = append(attrs, attribute.String("http.route", r.Pattern))
	}
	for wildcard, key := range tracedPathValues {
		if v := strings.TrimSpace(r.PathValue(wildcard)); v != "" {
			attrs = append(attrs, attribute.String(key, v))
		}
	}
	return attrs
}

func shouldCreateHTTPAPISpan(name string) bool {
	return strings.HasPrefix(name, "httpapi.Handler.")
}
