// Package config holds the pipeline configuration surface: environment
// variables under the TRACEPIPE prefix, optionally overridden by a YAML or
// TOML file. Validation is fail-fast; a pipeline never starts on a
// configuration it cannot fully honor.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// Config holds all pipeline configuration.
type Config struct {
	ServiceName string `envconfig:"SERVICE_NAME" default:"unknown-service" yaml:"service_name" toml:"service_name"`
	Environment string `envconfig:"ENVIRONMENT" default:"development" yaml:"environment" toml:"environment"`

	Sampler   SamplerConfig   `yaml:"sampler" toml:"sampler"`
	Redaction RedactionConfig `yaml:"redaction" toml:"redaction"`
	Queue     QueueConfig     `yaml:"queue" toml:"queue"`
	Exporter  ExporterConfig  `yaml:"exporter" toml:"exporter"`
}

// SamplerConfig selects the sampling strategy. Fields map to
// TRACEPIPE_SAMPLER_* environment variables.
type SamplerConfig struct {
	Strategy string  `envconfig:"STRATEGY" default:"always_on" yaml:"strategy" toml:"strategy"`
	Ratio    float64 `envconfig:"RATIO" default:"1.0" yaml:"ratio" toml:"ratio"`
}

// RedactionConfig selects attribute redaction. Fields map to
// TRACEPIPE_REDACTION_* environment variables.
type RedactionConfig struct {
	Mode    string   `envconfig:"MODE" default:"disabled" yaml:"mode" toml:"mode"`
	Keys    []string `envconfig:"KEYS" yaml:"keys" toml:"keys"`
	Pattern string   `envconfig:"PATTERN" yaml:"pattern" toml:"pattern"`
}

// QueueConfig sizes the span buffer and batching cadence. Fields map to
// TRACEPIPE_QUEUE_* environment variables.
type QueueConfig struct {
	Capacity      int      `envconfig:"CAPACITY" default:"2048" yaml:"capacity" toml:"capacity"`
	MaxBatchSize  int      `envconfig:"MAX_BATCH_SIZE" default:"512" yaml:"max_batch_size" toml:"max_batch_size"`
	FlushInterval Duration `envconfig:"FLUSH_INTERVAL" default:"5s" yaml:"flush_interval" toml:"flush_interval"`
}

// ExporterConfig points the exporter at a collector. Fields map to
// TRACEPIPE_EXPORTER_* environment variables.
type ExporterConfig struct {
	Enabled        bool              `envconfig:"ENABLED" default:"true" yaml:"enabled" toml:"enabled"`
	Endpoint       string            `envconfig:"ENDPOINT" default:"http://localhost:4318/v1/traces" yaml:"endpoint" toml:"endpoint"`
	Protocol       string            `envconfig:"PROTOCOL" default:"http_json" yaml:"protocol" toml:"protocol"`
	Compression    string            `envconfig:"COMPRESSION" default:"none" yaml:"compression" toml:"compression"`
	Headers        map[string]string `envconfig:"HEADERS" yaml:"headers" toml:"headers"`
	Insecure       bool              `envconfig:"INSECURE" default:"false" yaml:"insecure" toml:"insecure"`
	Timeout        Duration          `envconfig:"TIMEOUT" default:"30s" yaml:"timeout" toml:"timeout"`
	RetryLimit     int               `envconfig:"RETRY_LIMIT" default:"3" yaml:"retry_limit" toml:"retry_limit"`
	BackoffInitial Duration          `envconfig:"BACKOFF_INITIAL" default:"1s" yaml:"backoff_initial" toml:"backoff_initial"`
	BackoffMax     Duration          `envconfig:"BACKOFF_MAX" default:"30s" yaml:"backoff_max" toml:"backoff_max"`
}

// Load reads configuration from TRACEPIPE_* environment variables, with
// struct defaults for everything unset.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("tracepipe", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns defaults.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// LoadFile reads a YAML or TOML configuration file, selected by extension,
// over the defaults. Keys absent from the file keep their default values.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q (want .yaml, .yml, or .toml)", filepath.Ext(path))
	}
	return cfg, nil
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		ServiceName: "unknown-service",
		Environment: "development",
		Sampler: SamplerConfig{
			Strategy: "always_on",
			Ratio:    1.0,
		},
		Redaction: RedactionConfig{
			Mode: "disabled",
		},
		Queue: QueueConfig{
			Capacity:      2048,
			MaxBatchSize:  512,
			FlushInterval: Duration(5 * time.Second),
		},
		Exporter: ExporterConfig{
			Enabled:        true,
			Endpoint:       "http://localhost:4318/v1/traces",
			Protocol:       "http_json",
			Compression:    "none",
			Timeout:        Duration(30 * time.Second),
			RetryLimit:     3,
			BackoffInitial: Duration(1 * time.Second),
			BackoffMax:     Duration(30 * time.Second),
		},
	}
}
