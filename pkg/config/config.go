// Package config provides configuration management for catalogctl.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes the environment variables that override file values,
// e.g. GEOCATALOG_CATALOG_DATA_DIR.
const EnvPrefix = "GEOCATALOG"

// EnvLoadingThreads is a shorter alias of GEOCATALOG_CATALOG_LOADING_THREADS.
// The prefixed name wins when both are set.
const EnvLoadingThreads = EnvPrefix + "_LOADING_THREADS"

// Config holds all configuration for the application.
type Config struct {
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
}

// CatalogConfig holds data directory loading configuration.
type CatalogConfig struct {
	DataDir string `mapstructure:"data_dir" validate:"required"`
	Format  string `mapstructure:"format" validate:"oneof=xml yaml"`
	// LoadingThreads is parsed by the loader; invalid values fall back to a
	// CPU based default with a warning rather than failing validation.
	LoadingThreads string `mapstructure:"loading_threads"`
	QueueCapacity  int    `mapstructure:"queue_capacity" validate:"gte=1"`
	// SecretKey is the passphrase of encrypted store connection parameters.
	SecretKey          string `mapstructure:"secret_key"`
	ExtendedValidation bool   `mapstructure:"extended_validation"`
}

// DatabaseConfig holds the connection of the catalog export database.
type DatabaseConfig struct {
	Type     string `mapstructure:"type" validate:"omitempty,oneof=sqlite postgres postgresql mysql"` // empty disables export
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port" validate:"gte=0,lte=65535"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	MaxConns int    `mapstructure:"max_conns" validate:"gte=0"`
	Path     string `mapstructure:"path"` // sqlite only
}

// StorageConfig holds the resource store configuration. An empty type
// stores resources in the data directory itself.
type StorageConfig struct {
	Type      string `mapstructure:"type"` // datadir, cos or local
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	SecretID  string `mapstructure:"secret_id"`
	SecretKey string `mapstructure:"secret_key"`
	Domain    string `mapstructure:"domain"`     // e.g., "myqcloud.com"
	Scheme    string `mapstructure:"scheme"`     // e.g., "https" or "http"
	Prefix    string `mapstructure:"prefix"`     // key prefix in the bucket
	LocalPath string `mapstructure:"local_path"` // for local storage
}

// MetricsConfig holds load metrics configuration.
type MetricsConfig struct {
	// Textfile receives the Prometheus metrics of the load when set.
	Textfile string `mapstructure:"textfile"`
}

// TelemetryConfig overrides the OTEL_* environment of the tracer.
type TelemetryConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Protocol string `mapstructure:"protocol" validate:"omitempty,oneof=grpc http/protobuf"`
	Insecure bool   `mapstructure:"insecure"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `mapstructure:"level" validate:"omitempty,oneof=debug info warn warning error DEBUG INFO WARN WARNING ERROR"`
	OutputPath string `mapstructure:"output_path"` // empty logs to stderr
}

var validate = validator.New()

// Override adjusts a loaded configuration before it is validated, e.g. with
// command line flags.
type Override func(cfg *Config)

// Load reads configuration from the specified file path. A missing file
// yields the defaults; environment variables override both, and overrides
// are applied last.
func Load(configPath string, overrides ...Override) (*Config, error) {
	v, err := readFile(configPath)
	if err != nil {
		return nil, err
	}
	return unmarshal(v, overrides)
}

// LoadUnvalidated reads configuration like Load but skips validation, for
// commands that only need a few keys.
func LoadUnvalidated(configPath string) (*Config, error) {
	v, err := readFile(configPath)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func readFile(configPath string) (*viper.Viper, error) {
	v := newViper()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("catalogctl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/geocatalog")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return v, nil
}

// LoadFromReader loads configuration from an in-memory document (useful for
// testing). Unlike Load, it does not validate.
func LoadFromReader(configType string, content []byte) (*Config, error) {
	v := newViper()

	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("catalog.loading_threads", EnvPrefix+"_CATALOG_LOADING_THREADS", EnvLoadingThreads)
	return v
}

func unmarshal(v *viper.Viper, overrides []Override) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	for _, o := range overrides {
		o(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets default configuration values. Every key needs a default
// for AutomaticEnv to see it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("catalog.data_dir", "")
	v.SetDefault("catalog.format", "xml")
	v.SetDefault("catalog.loading_threads", "")
	v.SetDefault("catalog.queue_capacity", 1000)
	v.SetDefault("catalog.secret_key", "")
	v.SetDefault("catalog.extended_validation", false)

	v.SetDefault("storage.type", "")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.region", "")
	v.SetDefault("storage.secret_id", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.domain", "")
	v.SetDefault("storage.scheme", "https")
	v.SetDefault("storage.prefix", "")
	v.SetDefault("storage.local_path", "")

	v.SetDefault("database.type", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 0)
	v.SetDefault("database.database", "geocatalog")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.path", "catalog.db")

	v.SetDefault("metrics.textfile", "")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.protocol", "")
	v.SetDefault("telemetry.insecure", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.output_path", "")
}

// Validate checks struct tags first, then the rules tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}

	switch c.Database.Type {
	case "postgres", "postgresql", "mysql":
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required for %s", c.Database.Type)
		}
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required for sqlite")
		}
	}

	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" && os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") == "" {
		return fmt.Errorf("telemetry endpoint is required when telemetry is enabled")
	}
	return nil
}

// ExportEnabled reports whether a catalog export database is configured.
func (c *Config) ExportEnabled() bool {
	return c.Database.Type != ""
}

// DatabasePort returns the configured port or the default of the database type.
func (c *Config) DatabasePort() int {
	if c.Database.Port != 0 {
		return c.Database.Port
	}
	switch c.Database.Type {
	case "mysql":
		return 3306
	case "postgres", "postgresql":
		return 5432
	}
	return 0
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
