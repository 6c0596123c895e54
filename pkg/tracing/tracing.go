package tracing

import (
	"fmt"
	"net/http"
	"strings"

	"online_exam_backend/internal/util"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

const ServiceName = "exam-attempt-engine"

// Tracer resolves through the global provider, so spans become real once
// InitTracer has installed one and are no-ops before that.
var Tracer = otel.Tracer(ServiceName)

func InitTracer(serviceName, collectorEndpoint string) (*sdktrace.TracerProvider, error) {
	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(collectorEndpoint)))
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
		)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp, nil
}

// GinMiddleware opens a server span per request. Route, status and the
// resource ids bound by the route are attached once the handler returns.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		spanName := fmt.Sprintf("%s %s", c.Request.Method, route)

		ctx, span := otel.Tracer(ServiceName).Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		span.SetAttributes(RequestAttributes(c)...)
		if status := c.Writer.Status(); status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

// resource path segments whose ":id" names the traced entity
var idAttributes = []struct {
	segment string
	key     attribute.Key
}{
	{"/attempts/:id", "attempt.id"},
	{"/exams/:id", "exam.id"},
	{"/feedback/:id", "feedback.id"},
}

// RequestAttributes describes a handled request: method, route template,
// status, the attempt or exam it addressed and the caller when authenticated.
func RequestAttributes(c *gin.Context) []attribute.KeyValue {
	route := c.FullPath()
	attrs := []attribute.KeyValue{
		semconv.HTTPMethodKey.String(c.Request.Method),
		semconv.HTTPRouteKey.String(route),
		semconv.HTTPStatusCodeKey.Int(c.Writer.Status()),
	}

	if id := c.Param("id"); id != "" {
		for _, ia := range idAttributes {
			if strings.Contains(route, ia.segment) {
				attrs = append(attrs, ia.key.String(id))
				break
			}
		}
	}
	if answerID := c.Param("answerId"); answerID != "" {
		attrs = append(attrs, attribute.String("answer.id", answerID))
	}
	if user := util.GetUserFromContext(c); user != nil {
		attrs = append(attrs,
			attribute.Int64("user.id", int64(user.UserID)),
			attribute.String("user.role", string(user.Role)),
		)
	}
	return attrs
}
