package obs

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// EndpointEnvVar is the environment variable that turns tracing on. When
// unset, every opensession command runs with a no-op tracer and never
// touches the network for telemetry.
const EndpointEnvVar = "OPENSESSION_OTEL_ENDPOINT"

// Tracer wraps an OpenTelemetry trace.Tracer together with whatever needs
// shutting down when the process exits.
type Tracer struct {
	trace.Tracer
	shutdown func(context.Context) error
}

// Shutdown flushes any buffered spans and releases exporter resources. A
// no-op tracer's Shutdown does nothing.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.shutdown == nil {
		return nil
	}
	return t.shutdown(ctx)
}

// NewTracer returns a Tracer for serviceName. If EndpointEnvVar isn't set,
// it returns a no-op tracer — spans cost nothing and go nowhere. If it is
// set, it stands up an OTLP/HTTP exporter against that endpoint.
func NewTracer(ctx context.Context, serviceName string) (*Tracer, error) {
	endpoint := os.Getenv(EndpointEnvVar)
	if endpoint == "" {
		return &Tracer{Tracer: noop.NewTracerProvider().Tracer(serviceName)}, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(endpoint))
	if err != nil {
		return nil, fmt.Errorf("obs: create otlp exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceNameKey.String(serviceName),
		attribute.String("opensession.otel_endpoint", endpoint),
	))
	if err != nil {
		return nil, fmt.Errorf("obs: build resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	return &Tracer{
		Tracer:   provider.Tracer(serviceName),
		shutdown: provider.Shutdown,
	}, nil
}
