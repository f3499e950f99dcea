package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("console output", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New(Config{Level: "info", Console: true, Out: &buf})
		require.NoError(t, err)
		defer logger.Close()

		zl := logger.GetZerolog()
		zl.Info().Str("event_id", "e1").Msg("tracked")

		assert.Contains(t, buf.String(), `"event_id":"e1"`)
		assert.Contains(t, buf.String(), `"message":"tracked"`)
	})

	t.Run("file output", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "logs", "beacon.log")

		logger, err := New(Config{Level: "debug", File: logFile})
		require.NoError(t, err)

		zl := logger.GetZerolog()
		zl.Debug().Msg("file message")
		require.NoError(t, logger.Close())

		content, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(content), "file message")
	})

	t.Run("redaction", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New(Config{Level: "info", Console: true, Redaction: true, Out: &buf})
		require.NoError(t, err)

		zl := logger.GetZerolog()
		zl.Warn().Str("email", "jane@example.com").Msg("invalid event")

		assert.NotContains(t, buf.String(), "jane@example.com")
		assert.Contains(t, buf.String(), "[REDACTED]")
	})

	t.Run("level filtering", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := New(Config{Level: "warn", Console: true, Out: &buf})
		require.NoError(t, err)

		zl := logger.GetZerolog()
		zl.Info().Msg("hidden")
		zl.Warn().Msg("shown")

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		logger, err := New(Config{Level: "loud", Out: &bytes.Buffer{}, Console: true})
		require.NoError(t, err)
		assert.Equal(t, zerolog.InfoLevel, logger.GetZerolog().GetLevel())
	})

	t.Run("sets global logger", func(t *testing.T) {
		var buf bytes.Buffer
		_, err := New(Config{Level: "info", Console: true, Out: &buf})
		require.NoError(t, err)

		log.Info().Msg("via global")
		assert.Contains(t, buf.String(), "via global")
	})
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Console: true, Out: &buf})
	require.NoError(t, err)

	l := logger.Component("dispatch")
	l.Info().Msg("sent")

	assert.Contains(t, buf.String(), `"component":"dispatch"`)
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Console: true, Out: &buf})
	require.NoError(t, err)

	require.NoError(t, logger.SetLevel("debug"))
	zl := logger.GetZerolog()
	zl.Debug().Msg("now visible")
	assert.Contains(t, buf.String(), "now visible")

	assert.Error(t, logger.SetLevel("nope"))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.True(t, cfg.Console)
	assert.True(t, cfg.Redaction)
	assert.Equal(t, 100, cfg.MaxSize)
}
