package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/harun/beacon/pkg/retry"
	"github.com/harun/beacon/pkg/storage"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateCollectorURL requires an absolute http(s) URL
func (v *Validator) ValidateCollectorURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("collector url is required")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid collector url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("collector url must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("collector url has no host")
	}

	return nil
}

// ValidateSchedule checks a retry schedule expression
func (v *Validator) ValidateSchedule(spec string) error {
	_, err := retry.ParseSchedule(spec)
	return err
}

// ValidateStorageDriver validates the storage driver name
func (v *Validator) ValidateStorageDriver(driver string) error {
	validDrivers := []string{storage.DriverFile, storage.DriverSQLite, storage.DriverMemory}
	for _, valid := range validDrivers {
		if driver == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid storage driver: %s (must be one of: %s)", driver, strings.Join(validDrivers, ", "))
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidatePositive rejects zero and negative values
func (v *Validator) ValidatePositive(name string, value int) error {
	if value <= 0 {
		return fmt.Errorf("%s must be positive, got %d", name, value)
	}
	return nil
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if err := v.ValidateCollectorURL(cfg.Collector.URL); err != nil {
		errors = append(errors, err)
	}

	for _, check := range []struct {
		name  string
		value int
	}{
		{"collector.timeout", cfg.Collector.Timeout},
		{"session.timeout_minutes", cfg.Session.TimeoutMinutes},
		{"queue.capacity", cfg.Queue.Capacity},
		{"queue.max_retries", cfg.Queue.MaxRetries},
		{"retry.base_delay_ms", cfg.Retry.BaseDelayMs},
		{"retry.max_delay_ms", cfg.Retry.MaxDelayMs},
		{"dispatch.dedup_size", cfg.Dispatch.DedupSize},
	} {
		if err := v.ValidatePositive(check.name, check.value); err != nil {
			errors = append(errors, err)
		}
	}

	if cfg.Retry.MaxDelayMs > 0 && cfg.Retry.BaseDelayMs > cfg.Retry.MaxDelayMs {
		errors = append(errors, fmt.Errorf("retry.base_delay_ms must not exceed retry.max_delay_ms"))
	}

	if err := v.ValidateSchedule(cfg.Retry.Schedule); err != nil {
		errors = append(errors, err)
	}

	if err := v.ValidateStorageDriver(cfg.Storage.Driver); err != nil {
		errors = append(errors, err)
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	return errors
}
