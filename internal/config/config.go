// Package config defines the tool configuration and its YAML loading
// rules: file values first, then defaults, then environment overrides.
package config

import (
	"fmt"
	"strconv"
)

// Config is the top-level tool configuration.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Convert ConvertConfig `yaml:"convert"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is json or text.
	Format string `yaml:"format"`
}

// ConvertConfig controls conversion behavior.
type ConvertConfig struct {
	// DefaultTo is the target format used when none is given explicitly.
	DefaultTo string `yaml:"default_to"`
	// Strict promotes unresolved cross-reference warnings to failures.
	Strict bool `yaml:"strict"`
	// MaxFileSize is the largest input accepted, in bytes.
	MaxFileSize int64 `yaml:"max_file_size"`
}

// Default values applied to zero fields.
const (
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "json"
	DefaultTargetID    = "musicxml"
	DefaultMaxFileSize = 64 << 20
)

// ApplyDefaults fills zero-valued fields with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}
	if cfg.Convert.DefaultTo == "" {
		cfg.Convert.DefaultTo = DefaultTargetID
	}
	if cfg.Convert.MaxFileSize == 0 {
		cfg.Convert.MaxFileSize = DefaultMaxFileSize
	}
}

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level %q (want debug, info, warn or error)", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid logging format %q (want json or text)", cfg.Logging.Format)
	}
	if cfg.Convert.MaxFileSize < 0 {
		return fmt.Errorf("max_file_size must not be negative, got %d", cfg.Convert.MaxFileSize)
	}
	return nil
}

// parseBool is strconv.ParseBool with the error folded into a default.
func parseBool(s string, def bool) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return def
	}
	return b
}
