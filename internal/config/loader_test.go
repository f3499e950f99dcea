package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoader(t *testing.T) {
	loader := NewLoader("/path/to/config.json")
	assert.NotNil(t, loader)
	assert.Equal(t, "/path/to/config.json", loader.GetConfigPath())
}

func TestLoaderLoad(t *testing.T) {
	t.Run("load default config when file doesn't exist", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "nonexistent.json")

		cfg, err := NewLoader(configPath).Load()

		require.NoError(t, err)
		assert.Equal(t, 50, cfg.Queue.Capacity)
		assert.Equal(t, "@every 30s", cfg.Retry.Schedule)
	})

	t.Run("load config from file", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.json")

		testConfig := `{
			"collector": {"url": "https://collect.example.com", "timeout": 5},
			"queue": {"capacity": 20},
			"storage": {"driver": "sqlite"}
		}`
		require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0644))

		cfg, err := NewLoader(configPath).Load()

		require.NoError(t, err)
		assert.Equal(t, "https://collect.example.com", cfg.Collector.URL)
		assert.Equal(t, 5, cfg.Collector.Timeout)
		assert.Equal(t, 20, cfg.Queue.Capacity)
		assert.Equal(t, 5, cfg.Queue.MaxRetries, "unset keys keep defaults")
		assert.Equal(t, "sqlite", cfg.Storage.Driver)
	})

	t.Run("set default paths", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(configPath, []byte(`{}`), 0644))

		cfg, err := NewLoader(configPath).Load()

		require.NoError(t, err)
		assert.NotEmpty(t, cfg.DataDir)
		assert.Equal(t, filepath.Join(cfg.DataDir, "beacon.log"), cfg.Logging.File)
		assert.Equal(t, filepath.Join(cfg.DataDir, "state"), cfg.StoragePath())
	})

	t.Run("environment overrides file", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(configPath, []byte(`{"collector": {"url": "https://file.example.com"}}`), 0644))

		t.Setenv("BEACON_COLLECTOR_URL", "https://env.example.com")
		t.Setenv("BEACON_QUEUE_CAPACITY", "25")

		cfg, err := NewLoader(configPath).Load()

		require.NoError(t, err)
		assert.Equal(t, "https://env.example.com", cfg.Collector.URL)
		assert.Equal(t, 25, cfg.Queue.Capacity)
	})

	t.Run("environment without file", func(t *testing.T) {
		t.Setenv("BEACON_COLLECTOR_URL", "https://env.example.com")

		cfg, err := NewLoader(filepath.Join(t.TempDir(), "missing.json")).Load()

		require.NoError(t, err)
		assert.Equal(t, "https://env.example.com", cfg.Collector.URL)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "invalid.json")
		require.NoError(t, os.WriteFile(configPath, []byte("invalid json"), 0644))

		_, err := NewLoader(configPath).Load()
		assert.Error(t, err)
	})
}

func TestLoaderSave(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "beacon.json")
	loader := NewLoader(configPath)

	cfg := DefaultConfig()
	cfg.Collector.URL = "https://collect.example.com"
	cfg.Queue.MaxRetries = 3
	cfg.Storage.Driver = "memory"
	cfg.DataDir = t.TempDir()

	require.NoError(t, loader.Save(cfg))
	assert.FileExists(t, configPath)

	loaded, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "https://collect.example.com", loaded.Collector.URL)
	assert.Equal(t, 3, loaded.Queue.MaxRetries)
	assert.Equal(t, "memory", loaded.Storage.Driver)
	assert.Equal(t, cfg.DataDir, loaded.DataDir)
}

func TestLoad(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.NotNil(t, cfg)
}
