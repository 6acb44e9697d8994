// Package telemetry provides OpenTelemetry integration for distributed tracing.
//
// Configuration comes from the standard OTEL_* environment variables
// (OTEL_ENABLED, OTEL_SERVICE_NAME, OTEL_EXPORTER_OTLP_ENDPOINT,
// OTEL_EXPORTER_OTLP_PROTOCOL, OTEL_EXPORTER_OTLP_HEADERS,
// OTEL_EXPORTER_OTLP_INSECURE, OTEL_TRACES_SAMPLER, OTEL_TRACES_SAMPLER_ARG
// and OTEL_RESOURCE_ATTRIBUTES), optionally adjusted with Configure. Until
// Init installs an exporting provider, tracers hand out no-op spans, so
// packages may create their tracer at init time:
//
//	var tracer = telemetry.Tracer("github.com/geocatalog/internal/loader")
//
//	shutdown, err := telemetry.Init(ctx)
//	...
//	defer shutdown(ctx)
package telemetry

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

var (
	globalConfig *Config
	configOnce   sync.Once
)

// ShutdownFunc flushes and stops the TracerProvider.
type ShutdownFunc func(ctx context.Context) error

func noopShutdown(_ context.Context) error {
	return nil
}

// Init installs the global TracerProvider. When tracing is disabled it does
// nothing and returns a no-op shutdown function.
func Init(ctx context.Context) (ShutdownFunc, error) {
	cfg := loadConfig()
	if !cfg.Enabled {
		return noopShutdown, nil
	}

	res, err := buildResource(ctx, cfg)
	if err != nil {
		return noopShutdown, fmt.Errorf("failed to build trace resource: %w", err)
	}
	exporter, err := createExporter(ctx, cfg)
	if err != nil {
		return noopShutdown, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithResource(res),
		trace.WithBatcher(exporter),
		trace.WithSampler(createSampler(cfg)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}

// Enabled returns whether OpenTelemetry tracing is enabled.
func Enabled() bool {
	return loadConfig().Enabled
}

// Configure applies fn to the configuration loaded from the environment.
// Call it before Init.
func Configure(fn func(cfg *Config)) {
	fn(loadConfig())
}

// Tracer returns a tracer of the global TracerProvider.
func Tracer(name string) oteltrace.Tracer {
	return otel.Tracer(name)
}

// GetConfig returns the current telemetry configuration.
func GetConfig() *Config {
	return loadConfig()
}

func loadConfig() *Config {
	configOnce.Do(func() {
		globalConfig = LoadFromEnv()
	})
	return globalConfig
}
