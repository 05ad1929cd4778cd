// Package otel wires OpenTelemetry tracing and metrics for tool-call
// observability.
package otel

import (
	"context"
	"fmt"

	otelapi "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// SetupConfig configures the telemetry pipeline.
type SetupConfig struct {
	// Endpoint is the OTLP/HTTP collector host:port. Empty disables
	// export; instruments still work but record nowhere.
	Endpoint    string
	ServiceName string
	Insecure    bool
}

// ShutdownFunc flushes and stops the providers.
type ShutdownFunc func(context.Context) error

// Setup installs global tracer and meter providers. With no endpoint the
// providers are still registered so instrument construction succeeds,
// but nothing is exported.
func Setup(ctx context.Context, cfg SetupConfig) (ShutdownFunc, error) {
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "boardpilot"
	}

	// Schemaless so the merge never conflicts with the schema URL
	// resource.Default() carries.
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName(serviceName),
	))
	if err != nil {
		return nil, fmt.Errorf("otel: build resource: %w", err)
	}

	traceOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.Endpoint != "" {
		exporterOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			exporterOpts = append(exporterOpts, otlptracehttp.WithInsecure())
		}
		exporter, err := otlptracehttp.New(ctx, exporterOpts...)
		if err != nil {
			return nil, fmt.Errorf("otel: create trace exporter: %w", err)
		}
		traceOpts = append(traceOpts, sdktrace.WithBatcher(exporter))
	}

	tracerProvider := sdktrace.NewTracerProvider(traceOpts...)
	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res))

	otelapi.SetTracerProvider(tracerProvider)
	otelapi.SetMeterProvider(meterProvider)

	return func(ctx context.Context) error {
		traceErr := tracerProvider.Shutdown(ctx)
		meterErr := meterProvider.Shutdown(ctx)
		if traceErr != nil {
			return traceErr
		}
		return meterErr
	}, nil
}
