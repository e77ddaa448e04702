package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

var tracer trace.Tracer

// SetTracer sets the tracer used by StartSpan. When no tracer is set, spans
// are no-ops so library code can trace unconditionally.
func SetTracer(t trace.Tracer) {
	tracer = t
}

// Init configures a process-wide tracer provider and registers the service
// tracer. Returns a shutdown func that flushes pending spans.
func Init(ctx context.Context, serviceName string) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	SetTracer(tp.Tracer(serviceName))
	return tp.Shutdown, nil
}

// GetActiveSpan returns the active span from the context, or nil when
// tracing is disabled or no real span is recording.
func GetActiveSpan(ctx context.Context) trace.Span {
	if tracer == nil {
		return nil
	}
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return nil
	}
	return span
}

// StartSpan starts a new span with the given name and returns the context and span.
func StartSpan(ctx context.Context, spanName string) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, spanName)
}

// GetTraceParent returns the W3C traceparent header value for the context.
func GetTraceParent(ctx context.Context) string {
	return injectField(ctx, "traceparent")
}

// GetTraceState returns the W3C tracestate header value for the context.
func GetTraceState(ctx context.Context) string {
	return injectField(ctx, "tracestate")
}

func injectField(ctx context.Context, field string) string {
	if GetActiveSpan(ctx) == nil {
		return ""
	}

	tp := propagation.TraceContext{}
	carrier := propagation.MapCarrier{}
	tp.Inject(ctx, carrier)

	return carrier.Get(field)
}

// GetTraceID returns the trace ID from the context.
func GetTraceID(ctx context.Context) string {
	span := GetActiveSpan(ctx)
	if span == nil {
		return ""
	}
	return span.SpanContext().TraceID().String()
}

// GetSpanID returns the span ID from the context.
func GetSpanID(ctx context.Context) string {
	span := GetActiveSpan(ctx)
	if span == nil {
		return ""
	}
	return span.SpanContext().SpanID().String()
}
