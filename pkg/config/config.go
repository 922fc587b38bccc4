package config

import (
	"github.com/sdejongh/skiff/pkg/models"
)

// Config represents the application configuration
type Config struct {
	Transfers TransfersConfig `yaml:"transfers"`
	Security  SecurityConfig  `yaml:"security"`
	Output    OutputConfig    `yaml:"output"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// TransfersConfig holds transfer queue and connection settings
type TransfersConfig struct {
	MaxConcurrent         int   `yaml:"max_concurrent"`
	QueueSize             int   `yaml:"queue_size"`
	ChunkSize             int   `yaml:"chunk_size"`
	RetryDelaySeconds     int   `yaml:"retry_delay_seconds"`
	BandwidthLimit        int64 `yaml:"bandwidth_limit"` // bytes/sec, 0 = unlimited
	ConnectTimeoutSeconds int   `yaml:"connect_timeout_seconds"`
	VerifyChecksums       bool  `yaml:"verify_checksums"`
}

// SecurityConfig holds credential handling settings
type SecurityConfig struct {
	StorePasswords bool `yaml:"store_passwords"`
	VerifyCerts    bool `yaml:"verify_certs"`
}

// OutputConfig holds output-related settings
type OutputConfig struct {
	Format   string `yaml:"format"`   // "human" or "json"
	Progress bool   `yaml:"progress"` // Show progress bars
	Quiet    bool   `yaml:"quiet"`    // Suppress non-error output
	Color    bool   `yaml:"color"`
}

// LoggingConfig holds logging-related settings
type LoggingConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Format     string `yaml:"format"` // "json" or "text"
	Level      string `yaml:"level"`  // "debug", "info", "warn", "error"
	File       string `yaml:"file"`   // Log file path (empty = default location)
	MaxSize    int64  `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Transfers: TransfersConfig{
			MaxConcurrent:         3,
			QueueSize:             1000,
			ChunkSize:             65536,
			RetryDelaySeconds:     5,
			BandwidthLimit:        0,
			ConnectTimeoutSeconds: 30,
			VerifyChecksums:       false,
		},
		Security: SecurityConfig{
			StorePasswords: true,
			VerifyCerts:    true,
		},
		Output: OutputConfig{
			Format:   "human",
			Progress: true,
			Quiet:    false,
			Color:    true,
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Format:     "text",
			Level:      "info",
			File:       "",
			MaxSize:    10 * 1024 * 1024,
			MaxBackups: 5,
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Transfers.MaxConcurrent < 1 {
		return &models.ValidationError{
			Field:   "transfers.max_concurrent",
			Message: "must be at least 1",
		}
	}

	if c.Transfers.QueueSize < 1 {
		return &models.ValidationError{
			Field:   "transfers.queue_size",
			Message: "must be at least 1",
		}
	}

	if c.Transfers.ChunkSize < 1024 {
		return &models.ValidationError{
			Field:   "transfers.chunk_size",
			Message: "must be at least 1024 bytes",
		}
	}

	if c.Transfers.RetryDelaySeconds < 0 {
		return &models.ValidationError{
			Field:   "transfers.retry_delay_seconds",
			Message: "must not be negative",
		}
	}

	if c.Transfers.BandwidthLimit < 0 {
		return &models.ValidationError{
			Field:   "transfers.bandwidth_limit",
			Message: "must not be negative",
		}
	}

	validFormats := map[string]bool{"human": true, "json": true}
	if !validFormats[c.Output.Format] {
		return &models.ValidationError{
			Field:   "output.format",
			Message: "must be 'human' or 'json'",
		}
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		return &models.ValidationError{
			Field:   "logging.format",
			Message: "must be 'json' or 'text'",
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return &models.ValidationError{
			Field:   "logging.level",
			Message: "must be 'debug', 'info', 'warn', or 'error'",
		}
	}

	return nil
}
