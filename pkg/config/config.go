// Package config provides the unified configuration system for Arca.
// It defines a single Config structure covering logging, tracing and
// conversion options, loaded from YAML with ${VAR_NAME} environment
// substitution.
//
// Example usage:
//
//	cfg := config.Default()
//	if err := config.Load("arca.yaml", cfg); err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"github.com/ajitpratap0/arca/pkg/arcaerrors"
)

// Config is the top-level configuration for Arca tooling.
type Config struct {
	// Logging controls the global structured logger
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Trace controls schema inference
	Trace TraceConfig `yaml:"trace" json:"trace"`

	// Convert controls record serialization
	Convert ConvertConfig `yaml:"convert" json:"convert"`
}

// LoggingConfig selects the log level and encoder.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level" json:"level"`
	// Encoding is json or console
	Encoding string `yaml:"encoding" json:"encoding"`
	// Development enables colored, stack-traced output
	Development bool `yaml:"development" json:"development"`
}

// TraceConfig carries schema-tracing options.
type TraceConfig struct {
	// MaxSamples caps the records inspected during tracing; 0 means all
	MaxSamples int `yaml:"max_samples" json:"max_samples"`
	// StringSizeThreshold is the byte length escalating utf8 to large_utf8;
	// 0 disables the escalation
	StringSizeThreshold int `yaml:"string_size_threshold" json:"string_size_threshold"`
	// Permissive merges incompatible observations into unions instead of
	// failing
	Permissive bool `yaml:"permissive" json:"permissive"`
	// HintsFile points to a schema JSON document whose fields override
	// inference
	HintsFile string `yaml:"hints_file" json:"hints_file"`
}

// ConvertConfig carries serialization options.
type ConvertConfig struct {
	// IgnoreUnknownFields drops record fields the schema does not declare
	IgnoreUnknownFields bool `yaml:"ignore_unknown_fields" json:"ignore_unknown_fields"`
	// BatchSize splits record streams into batches of this many rows
	BatchSize int `yaml:"batch_size" json:"batch_size"`
}

// Default returns a configuration with production defaults: info-level JSON
// logging, strict tracing over all records, 10k-row batches.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "json",
		},
		Convert: ConvertConfig{
			BatchSize: 10000,
		},
	}
}

// Validate checks option ranges and enum values.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return arcaerrors.Newf(arcaerrors.ErrorTypeConfig, arcaerrors.CodeInvalidConfig,
			"invalid log level %q", c.Logging.Level)
	}
	switch c.Logging.Encoding {
	case "json", "console":
	default:
		return arcaerrors.Newf(arcaerrors.ErrorTypeConfig, arcaerrors.CodeInvalidConfig,
			"invalid log encoding %q", c.Logging.Encoding)
	}
	if c.Trace.MaxSamples < 0 {
		return arcaerrors.New(arcaerrors.ErrorTypeConfig, arcaerrors.CodeInvalidConfig,
			"trace.max_samples must be non-negative")
	}
	if c.Trace.StringSizeThreshold < 0 {
		return arcaerrors.New(arcaerrors.ErrorTypeConfig, arcaerrors.CodeInvalidConfig,
			"trace.string_size_threshold must be non-negative")
	}
	if c.Convert.BatchSize <= 0 {
		return arcaerrors.New(arcaerrors.ErrorTypeConfig, arcaerrors.CodeInvalidConfig,
			"convert.batch_size must be positive")
	}
	return nil
}
