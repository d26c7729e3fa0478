package tracing

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/sellerflow/internal/actorcontext"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// routeParamAttributes names the path parameters copied onto request spans
// so a trace can be found from a quote or approval id.
var routeParamAttributes = map[string]string{
	"id":     "sellerflow.resource_id",
	"itemId": "sellerflow.quote_item_id",
	"region": "sellerflow.region",
}

// GinMiddleware starts a server span per request. Span names use the route
// template, never the raw path.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("sellerflow/http")
	return func(c *gin.Context) {
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		method := strings.ToUpper(c.Request.Method)
		ctx, span := tracer.Start(ctx, "HTTP "+method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		if requestID := actorcontext.RequestIDFromContext(ctx); requestID != "" {
			ctx = withBaggage(ctx, "request_id", requestID)
			span.SetAttributes(attribute.String("request_id", requestID))
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		span.SetName("HTTP " + method + " " + route)

		attrs := []attribute.KeyValue{
			attribute.String("http.method", method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
		}
		for _, p := range c.Params {
			if key, ok := routeParamAttributes[p.Key]; ok {
				attrs = append(attrs, attribute.String(key, p.Value))
			}
		}
		// the actor is attached by route middleware further down the chain
		if actor, ok := actorcontext.ActorFromContext(c.Request.Context()); ok {
			attrs = append(attrs,
				attribute.String("enduser.id", actor.ID),
				attribute.String("enduser.role", actor.Role),
			)
		}
		span.SetAttributes(SafeAttributes(attrs...)...)

		lastErr := c.Errors.Last()
		switch {
		case status >= http.StatusInternalServerError:
			if lastErr != nil {
				if safeErr := SafeError(lastErr.Err); safeErr != nil {
					span.RecordError(safeErr)
				}
			}
			span.SetStatus(codes.Error, "request error")
		case lastErr != nil:
			// 4xx keeps the span status unset
			span.AddEvent("request.rejected", trace.WithAttributes(
				attribute.Int("http.status_code", status),
			))
		}
	}
}

func withBaggage(ctx context.Context, key, value string) context.Context {
	member, err := baggage.NewMember(key, value)
	if err != nil {
		return ctx
	}
	bag, err := baggage.FromContext(ctx).SetMember(member)
	if err != nil {
		return ctx
	}
	return baggage.ContextWithBaggage(ctx, bag)
}
