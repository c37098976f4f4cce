package observability

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	"go.opentelemetry.io/otel/trace"
)

// Tracer provides distributed tracing capabilities.
// It resolves the global provider lazily, so it is a no-op until InitTracing runs.
type Tracer struct {
	serviceName string
}

// NewTracer creates a new tracer instance
func NewTracer(serviceName string) *Tracer {
	return &Tracer{
		serviceName: serviceName,
	}
}

// Start starts a span named "<service>.<name>"
func (t *Tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(t.serviceName).Start(ctx, fmt.Sprintf("%s.%s", t.serviceName, name),
		trace.WithAttributes(attrs...),
	)
}

// TraceFunction wraps a function with a child span
func (t *Tracer) TraceFunction(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := otel.Tracer(t.serviceName).Start(ctx, name)
	defer span.End()

	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	return err
}

// AddAnnotation adds an attribute to the current span
func (t *Tracer) AddAnnotation(ctx context.Context, key string, value string) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.String(key, value))
}

// RecordError records an error in the current span
func (t *Tracer) RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// TracingConfig holds tracing configuration
type TracingConfig struct {
	ServiceName string
	Environment string
	Endpoint    string
}

// InitTracing installs an OTLP/gRPC tracer provider as the global provider.
// The returned function flushes and shuts it down.
func InitTracing(ctx context.Context, config TracingConfig) (func(context.Context) error, error) {
	endpoint := config.Endpoint
	if endpoint == "" {
		endpoint = "localhost:4317" // Default OTLP gRPC endpoint
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
	if endpoint == "localhost:4317" || endpoint == "127.0.0.1:4317" {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}

	attrs := []attribute.KeyValue{
		semconv.ServiceName(config.ServiceName),
		attribute.String("deployment.environment", config.Environment),
	}
	if functionName := os.Getenv("AWS_LAMBDA_FUNCTION_NAME"); functionName != "" {
		attrs = append(attrs, attribute.String("faas.name", functionName))
	}
	res := resource.NewWithAttributes(semconv.SchemaURL, attrs...)

	sampler := sdktrace.AlwaysSample()
	if config.Environment == "production" {
		sampler = sdktrace.ParentBased(sdktrace.TraceIDRatioBased(0.05))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}
