package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCommand(t *testing.T) {
	t.Run("fresh data directory", func(t *testing.T) {
		c := newCollector(t, 204)
		path, dir := writeTestConfig(t, c.server.URL)

		output, err := execute(t, "", "status", "--config", path)
		require.NoError(t, err)

		assert.Contains(t, output, "Collector: "+c.server.URL)
		assert.Contains(t, output, "Storage: file ("+filepath.Join(dir, "state")+")")
		assert.Contains(t, output, "Consent: not granted")
		assert.Contains(t, output, "Attribution: none")
		assert.Contains(t, output, "Queue: 0/50 (max retries 5)")
		assert.NotContains(t, output, "Warning")
		assert.Equal(t, int32(0), c.calls.Load())
	})

	t.Run("json output", func(t *testing.T) {
		c := newCollector(t, 204)
		path, _ := writeTestConfig(t, c.server.URL)

		output, err := execute(t, "", "status", "--config", path, "--json")
		require.NoError(t, err)

		var stats map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(output), &stats))
		assert.Equal(t, false, stats["consent"])
		assert.Equal(t, float64(0), stats["queued"])
		assert.Equal(t, float64(50), stats["queueCapacity"])
		assert.Equal(t, true, stats["durable"])
	})

	t.Run("environment override", func(t *testing.T) {
		c := newCollector(t, 204)
		path, _ := writeTestConfig(t, c.server.URL)
		t.Setenv("BEACON_QUEUE_CAPACITY", "7")

		output, err := execute(t, "", "status", "--config", path)
		require.NoError(t, err)
		assert.Contains(t, output, "Queue: 0/7")
	})

	t.Run("data dir override", func(t *testing.T) {
		c := newCollector(t, 204)
		path, _ := writeTestConfig(t, c.server.URL)
		other := t.TempDir()

		output, err := execute(t, "", "status", "--config", path, "--data-dir", other)
		require.NoError(t, err)
		assert.Contains(t, output, "Storage: file ("+filepath.Join(other, "state")+")")
	})

	t.Run("invalid config", func(t *testing.T) {
		path, _ := writeTestConfig(t, "ftp://collector")

		_, err := execute(t, "", "status", "--config", path)
		assert.Error(t, err)
	})
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{"seconds only", 45 * time.Second, "45s"},
		{"minutes and seconds", 2*time.Minute + 30*time.Second, "2m30s"},
		{"hours minutes seconds", 3*time.Hour + 15*time.Minute + 20*time.Second, "3h15m20s"},
		{"zero", 0, "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := formatDuration(tt.duration)
			assert.Equal(t, tt.expected, result)
		})
	}
}
