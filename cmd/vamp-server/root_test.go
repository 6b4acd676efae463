package main

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	viper.Reset()
	initConfig()

	cfg, err := loadConfig(rootCmd)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Listen)
	assert.Equal(t, "http://127.0.0.1:8081", cfg.Backend.URL)
	assert.Equal(t, "", cfg.Auth.APIKey)
	assert.Equal(t, 16, cfg.Limits.MaxPasses)
	assert.Equal(t, 1<<20, cfg.Limits.MaxPreviewCells)
	assert.Equal(t, 1, cfg.Generation.Workers)
	assert.Equal(t, 4, cfg.Generation.CoarseCodebooks)
	assert.Equal(t, 5*time.Minute, cfg.Generation.RequestTimeout)
	assert.Equal(t, "conf/generated", cfg.Models.ConfDir)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestConfigFromEnv(t *testing.T) {
	viper.Reset()
	env := map[string]string{
		"VAMP_LISTEN":          "0.0.0.0:9090",
		"VAMP_BACKEND":         "http://backend:8081",
		"VAMP_API_KEY":         "test-key",
		"VAMP_MAX_PASSES":      "4",
		"VAMP_WORKERS":         "3",
		"VAMP_REQUEST_TIMEOUT": "90s",
		"VAMP_METRICS":         "false",
		"VAMP_LOG_LEVEL":       "debug",
	}
	for k, v := range env {
		os.Setenv(k, v)
	}
	defer func() {
		for k := range env {
			os.Unsetenv(k)
		}
	}()

	initConfig()

	cfg, err := loadConfig(rootCmd)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Listen)
	assert.Equal(t, "http://backend:8081", cfg.Backend.URL)
	assert.Equal(t, "test-key", cfg.Auth.APIKey)
	assert.Equal(t, 4, cfg.Limits.MaxPasses)
	assert.Equal(t, 3, cfg.Generation.Workers)
	assert.Equal(t, 90*time.Second, cfg.Generation.RequestTimeout)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestConfigRejectsZeroWorkers(t *testing.T) {
	viper.Reset()
	os.Setenv("VAMP_WORKERS", "0")
	defer os.Unsetenv("VAMP_WORKERS")

	initConfig()

	_, err := loadConfig(rootCmd)
	assert.EqualError(t, err, "generation.workers must be >= 1, got 0")
}
