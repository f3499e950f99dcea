package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"
)

// Config represents the beacon configuration
type Config struct {
	// Collector endpoint
	Collector CollectorConfig `json:"collector" mapstructure:"collector"`

	// Session lifecycle
	Session SessionConfig `json:"session" mapstructure:"session"`

	// Offline queue
	Queue QueueConfig `json:"queue" mapstructure:"queue"`

	// Retry scheduler
	Retry RetryConfig `json:"retry" mapstructure:"retry"`

	// Dispatcher
	Dispatch DispatchConfig `json:"dispatch" mapstructure:"dispatch"`

	// Persistence backend
	Storage StorageConfig `json:"storage" mapstructure:"storage"`

	// Client context attached to events
	Client ClientConfig `json:"client" mapstructure:"client"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Metrics
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// Tracing
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// CollectorConfig holds the remote collector settings
type CollectorConfig struct {
	URL       string `json:"url" mapstructure:"url"`
	Timeout   int    `json:"timeout" mapstructure:"timeout"` // seconds
	UserAgent string `json:"user_agent" mapstructure:"user_agent"`
}

// SessionConfig holds session settings
type SessionConfig struct {
	TimeoutMinutes int `json:"timeout_minutes" mapstructure:"timeout_minutes"`
}

// QueueConfig holds offline queue settings
type QueueConfig struct {
	Capacity   int `json:"capacity" mapstructure:"capacity"`
	MaxRetries int `json:"max_retries" mapstructure:"max_retries"`
}

// RetryConfig holds retry scheduler settings
type RetryConfig struct {
	Schedule    string `json:"schedule" mapstructure:"schedule"`
	BaseDelayMs int    `json:"base_delay_ms" mapstructure:"base_delay_ms"`
	MaxDelayMs  int    `json:"max_delay_ms" mapstructure:"max_delay_ms"`
}

// DispatchConfig holds dispatcher settings
type DispatchConfig struct {
	DedupSize int `json:"dedup_size" mapstructure:"dedup_size"`
}

// StorageConfig selects the persistence backend
type StorageConfig struct {
	Driver string `json:"driver" mapstructure:"driver"` // file, sqlite, memory
	Path   string `json:"path" mapstructure:"path"`
}

// ClientConfig describes the client reported with each event
type ClientConfig struct {
	UserAgent string `json:"user_agent" mapstructure:"user_agent"`
	Screen    string `json:"screen" mapstructure:"screen"`
	Language  string `json:"language" mapstructure:"language"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
	Console   bool   `json:"console" mapstructure:"console"`
	AuditFile string `json:"audit_file" mapstructure:"audit_file"`
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Addr    string `json:"addr" mapstructure:"addr"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled     bool   `json:"enabled" mapstructure:"enabled"`
	ServiceName string `json:"service_name" mapstructure:"service_name"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Collector: CollectorConfig{
			URL:       "",
			Timeout:   10,
			UserAgent: "beacon/1.0",
		},
		Session: SessionConfig{
			TimeoutMinutes: 30,
		},
		Queue: QueueConfig{
			Capacity:   50,
			MaxRetries: 5,
		},
		Retry: RetryConfig{
			Schedule:    "@every 30s",
			BaseDelayMs: 2000,
			MaxDelayMs:  300000,
		},
		Dispatch: DispatchConfig{
			DedupSize: 1024,
		},
		Storage: StorageConfig{
			Driver: "file",
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
			Console:   true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9464",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "beacon",
		},
		DataDir: "",
	}
}

// CollectorTimeout returns the per-request timeout
func (c *Config) CollectorTimeout() time.Duration {
	return time.Duration(c.Collector.Timeout) * time.Second
}

// SessionTimeout returns the session inactivity window
func (c *Config) SessionTimeout() time.Duration {
	return time.Duration(c.Session.TimeoutMinutes) * time.Minute
}

// RetryBaseDelay returns the first backoff step
func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.Retry.BaseDelayMs) * time.Millisecond
}

// RetryMaxDelay returns the backoff ceiling
func (c *Config) RetryMaxDelay() time.Duration {
	return time.Duration(c.Retry.MaxDelayMs) * time.Millisecond
}

// StoragePath resolves the store location, defaulting under DataDir
func (c *Config) StoragePath() string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	switch c.Storage.Driver {
	case "sqlite":
		return filepath.Join(c.DataDir, "beacon.db")
	case "memory":
		return ""
	default:
		return filepath.Join(c.DataDir, "state")
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if errs := NewValidator().ValidateConfig(c); len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errs[0])
	}
	return nil
}
