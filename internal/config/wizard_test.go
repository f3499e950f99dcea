package config

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWizardRun(t *testing.T) {
	t.Run("accepts answers", func(t *testing.T) {
		in := strings.NewReader("https://collect.example.com\nsqlite\n20\ndebug\n")
		var out bytes.Buffer

		cfg, err := NewWizardWithIO(in, &out).Run(nil)

		require.NoError(t, err)
		assert.Equal(t, "https://collect.example.com", cfg.Collector.URL)
		assert.Equal(t, "sqlite", cfg.Storage.Driver)
		assert.Equal(t, 20, cfg.Queue.Capacity)
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.Contains(t, out.String(), "Configuration complete!")
	})

	t.Run("reprompts invalid url", func(t *testing.T) {
		in := strings.NewReader("not a url\nhttps://collect.example.com\n\n\n\n")
		var out bytes.Buffer

		cfg, err := NewWizardWithIO(in, &out).Run(nil)

		require.NoError(t, err)
		assert.Equal(t, "https://collect.example.com", cfg.Collector.URL)
		assert.Contains(t, out.String(), "Error:")
		assert.Equal(t, "file", cfg.Storage.Driver)
	})

	t.Run("keeps base values", func(t *testing.T) {
		base := DefaultConfig()
		base.Collector.URL = "https://old.example.com"
		base.Queue.Capacity = 10

		in := strings.NewReader("\nredis\nabc\nloud\n")
		var out bytes.Buffer

		cfg, err := NewWizardWithIO(in, &out).Run(base)

		require.NoError(t, err)
		assert.Equal(t, "https://old.example.com", cfg.Collector.URL)
		assert.Equal(t, "file", cfg.Storage.Driver)
		assert.Equal(t, 10, cfg.Queue.Capacity)
		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Contains(t, out.String(), "Warning:")
	})

	t.Run("input ends early", func(t *testing.T) {
		_, err := NewWizardWithIO(strings.NewReader(""), &bytes.Buffer{}).Run(nil)
		assert.Error(t, err)
	})
}
