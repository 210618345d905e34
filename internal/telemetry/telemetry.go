// Package telemetry installs the OpenTelemetry tracer provider.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const shutdownTimeout = 5 * time.Second

// Config selects the exporter.
type Config struct {
	// Endpoint is host:port without a scheme.
	Endpoint    string
	ServiceName string
	Version     string
	SampleRate  float64
	Enabled     bool
	Insecure    bool
}

// ShutdownFunc flushes pending spans and stops the provider.
type ShutdownFunc func(context.Context) error

// Init installs a batching OTLP/HTTP tracer provider as the global one.
// When cfg.Enabled is false it changes nothing and returns a no-op.
func Init(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create exporter: %w", err)
	}

	return install(ctx, cfg, sdktrace.WithBatcher(exporter))
}

// InitRecorder installs a provider that keeps spans in memory, for tests.
func InitRecorder(ctx context.Context, cfg Config) (*tracetest.SpanRecorder, ShutdownFunc, error) {
	rec := tracetest.NewSpanRecorder()
	cfg.SampleRate = 1
	shutdown, err := install(ctx, cfg, sdktrace.WithSpanProcessor(rec))
	return rec, shutdown, err
}

func install(ctx context.Context, cfg Config, processor sdktrace.TracerProviderOption) (ShutdownFunc, error) {
	name := cfg.ServiceName
	if name == "" {
		name = "fetchkit"
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", name),
		attribute.String("service.version", version),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry: create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		processor,
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
		return tp.Shutdown(ctx)
	}, nil
}
