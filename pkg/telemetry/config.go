// Package telemetry provides OpenTelemetry integration for distributed tracing.
package telemetry

import (
	"os"
	"strings"
)

// Config holds the tracer configuration. LoadFromEnv fills it from the
// standard OTEL_* variables; Configure lets the catalogctl config file
// override them.
type Config struct {
	Enabled        bool   // OTEL_ENABLED
	ServiceName    string // OTEL_SERVICE_NAME, default "geocatalog"
	ServiceVersion string // OTEL_SERVICE_VERSION, default "unknown"

	// Endpoint is host:port, optionally with an http:// or https:// scheme.
	// A http:// scheme implies a plaintext connection.
	Endpoint string            // OTEL_EXPORTER_OTLP_ENDPOINT
	Protocol string            // OTEL_EXPORTER_OTLP_PROTOCOL: grpc (default) or http/protobuf
	Headers  map[string]string // OTEL_EXPORTER_OTLP_HEADERS, "k1=v1,k2=v2"
	Insecure bool              // OTEL_EXPORTER_OTLP_INSECURE

	Sampler    string // OTEL_TRACES_SAMPLER, default always_on
	SamplerArg string // OTEL_TRACES_SAMPLER_ARG

	ResourceAttrs map[string]string // OTEL_RESOURCE_ATTRIBUTES, "k1=v1,k2=v2"

	// DataDir and RecordFormat describe the loaded catalog. They are set by
	// the caller, not read from the environment.
	DataDir      string
	RecordFormat string
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() *Config {
	return &Config{
		Enabled:        envBool("OTEL_ENABLED"),
		ServiceName:    getEnvOrDefault("OTEL_SERVICE_NAME", "geocatalog"),
		ServiceVersion: getEnvOrDefault("OTEL_SERVICE_VERSION", "unknown"),
		Endpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Protocol:       getEnvOrDefault("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"),
		Headers:        parseKeyValuePairs(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")),
		Insecure:       envBool("OTEL_EXPORTER_OTLP_INSECURE"),
		Sampler:        os.Getenv("OTEL_TRACES_SAMPLER"),
		SamplerArg:     os.Getenv("OTEL_TRACES_SAMPLER_ARG"),
		ResourceAttrs:  parseKeyValuePairs(os.Getenv("OTEL_RESOURCE_ATTRIBUTES")),
	}
}

// target splits Endpoint into the host:port the exporters dial and whether
// the connection is plaintext.
func (c *Config) target() (hostPort string, plaintext bool) {
	switch {
	case strings.HasPrefix(c.Endpoint, "http://"):
		return strings.TrimPrefix(c.Endpoint, "http://"), true
	case strings.HasPrefix(c.Endpoint, "https://"):
		return strings.TrimPrefix(c.Endpoint, "https://"), c.Insecure
	}
	return c.Endpoint, c.Insecure
}

func envBool(key string) bool {
	return strings.EqualFold(os.Getenv(key), "true")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseKeyValuePairs parses "k1=v1,k2=v2". Values may contain '='; pairs
// without a key are skipped.
func parseKeyValuePairs(s string) map[string]string {
	result := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			continue
		}
		result[k] = strings.TrimSpace(v)
	}
	return result
}
