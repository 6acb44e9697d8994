package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Catalog resource attributes.
const (
	AttrDataDir      = attribute.Key("geocatalog.data_dir")
	AttrRecordFormat = attribute.Key("geocatalog.record_format")
)

// buildResource describes the catalogctl process: service name and version,
// the catalog being loaded, the host and process detectors, and the user
// supplied attributes, which win over everything else.
func buildResource(ctx context.Context, cfg *Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	}
	if cfg.DataDir != "" {
		attrs = append(attrs, AttrDataDir.String(cfg.DataDir))
	}
	if cfg.RecordFormat != "" {
		attrs = append(attrs, AttrRecordFormat.String(cfg.RecordFormat))
	}
	for k, v := range cfg.ResourceAttrs {
		attrs = append(attrs, attribute.String(k, v))
	}

	return resource.New(ctx,
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
		resource.WithProcessPID(),
		resource.WithProcessExecutableName(),
		resource.WithAttributes(attrs...),
	)
}
