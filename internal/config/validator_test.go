package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCollectorURL(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"https", "https://collect.example.com", false},
		{"http with port and path", "http://localhost:8080/api", false},
		{"empty", "", true},
		{"no scheme", "collect.example.com", true},
		{"ftp", "ftp://collect.example.com", true},
		{"no host", "https://", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateCollectorURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateSchedule(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateSchedule("@every 30s"))
	assert.NoError(t, v.ValidateSchedule("*/2 * * * *"))
	assert.Error(t, v.ValidateSchedule("every thirty seconds"))
}

func TestValidateStorageDriver(t *testing.T) {
	v := NewValidator()

	for _, driver := range []string{"file", "sqlite", "memory"} {
		assert.NoError(t, v.ValidateStorageDriver(driver), driver)
	}
	assert.Error(t, v.ValidateStorageDriver("redis"))
}

func TestValidateLogLevel(t *testing.T) {
	v := NewValidator()

	for _, level := range []string{"debug", "info", "warn", "error"} {
		assert.NoError(t, v.ValidateLogLevel(level), level)
	}
	assert.Error(t, v.ValidateLogLevel("trace"))
}

func TestValidateConfig_CollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Queue.Capacity = 0
	cfg.Logging.Level = "loud"

	errs := NewValidator().ValidateConfig(cfg)

	var msgs []string
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}
	joined := strings.Join(msgs, "\n")

	assert.Len(t, errs, 3)
	assert.Contains(t, joined, "collector url is required")
	assert.Contains(t, joined, "queue.capacity")
	assert.Contains(t, joined, "log level")
}
