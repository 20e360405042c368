package telemetry

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const DefaultServiceName = "rwtrace"

// TelemetryClient manages the lifecycle of the span exporter. A disabled
// client hands out no-op tracers.
type TelemetryClient struct {
	endpoint string
	insecure bool

	mu       sync.Mutex
	provider *sdktrace.TracerProvider
	disabled bool
}

// NewNoOpTelemetryClient creates a disabled telemetry client that does nothing.
func NewNoOpTelemetryClient() *TelemetryClient {
	return &TelemetryClient{disabled: true}
}

// NewTelemetryClient builds a client exporting spans over OTLP/HTTP to
// endpoint (host:port). An empty endpoint yields a disabled client.
func NewTelemetryClient(endpoint string, insecure bool) *TelemetryClient {
	if endpoint == "" {
		return NewNoOpTelemetryClient()
	}
	return &TelemetryClient{endpoint: endpoint, insecure: insecure}
}

// Connect creates the exporter and installs the tracer provider globally, so
// packages using otel.Tracer pick it up.
func (c *TelemetryClient) Connect(ctx context.Context, serviceName string) error {
	if c.disabled {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.provider != nil {
		return fmt.Errorf("telemetry client already connected to %s", c.endpoint)
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(c.endpoint)}
	if c.insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to create span exporter for %s: %w", c.endpoint, err)
	}
	res := resource.NewSchemaless(attribute.String("service.name", serviceName))
	c.provider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(c.provider)
	return nil
}

// Tracer returns a named tracer from the connected provider.
func (c *TelemetryClient) Tracer(name string) trace.Tracer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disabled || c.provider == nil {
		return noop.NewTracerProvider().Tracer(name)
	}
	return c.provider.Tracer(name)
}

// Enabled reports whether spans are exported.
func (c *TelemetryClient) Enabled() bool {
	return !c.disabled
}

// Close flushes pending spans and shuts the exporter down.
func (c *TelemetryClient) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.provider == nil {
		return nil
	}
	err := c.provider.Shutdown(ctx)
	c.provider = nil
	return err
}
