package stackjob

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv(EnvRunnerURL, "")
	t.Setenv(EnvRunnerToken, "")
	t.Setenv(EnvStackJobCheckSecs, "")
	t.Setenv(EnvStackJobMaxTimeSecs, "")

	cfg := FromEnv()
	assert.Equal(t, DefaultRunnerURL, cfg.Runner.URL)
	assert.Empty(t, cfg.Runner.Token)
	assert.Equal(t, 10*time.Second, cfg.Runner.CheckInterval)
	assert.Equal(t, 120*time.Second, cfg.Runner.MaxTime)
	require.NoError(t, cfg.Validate())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv(EnvRunnerURL, "https://runner.example.com:6443")
	t.Setenv(EnvRunnerToken, "token-123")
	t.Setenv(EnvStackJobCheckSecs, "5")
	t.Setenv(EnvStackJobMaxTimeSecs, "600")

	cfg := FromEnv()
	assert.Equal(t, "https://runner.example.com:6443", cfg.Runner.URL)
	assert.Equal(t, "token-123", cfg.Runner.Token)
	assert.Equal(t, 5*time.Second, cfg.Runner.CheckInterval)
	assert.Equal(t, 10*time.Minute, cfg.Runner.MaxTime)
}

func TestFromEnvIgnoresMalformedDurations(t *testing.T) {
	t.Setenv(EnvStackJobCheckSecs, "soon")
	t.Setenv(EnvStackJobMaxTimeSecs, "-1")

	cfg := FromEnv()
	assert.Equal(t, 10*time.Second, cfg.Runner.CheckInterval)
	assert.Equal(t, 120*time.Second, cfg.Runner.MaxTime)
}

func TestLoadConfig(t *testing.T) {
	t.Setenv(EnvRunnerURL, "")
	t.Setenv(EnvRunnerToken, "env-token")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
runner:
  url: https://runner.example.com:6443
processor:
  workers: 10
podified: true
`), 0644))

	cfg, err := LoadConfig(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "https://runner.example.com:6443", cfg.Runner.URL)
	assert.Equal(t, 10*time.Second, cfg.Runner.CheckInterval, "durations come from the environment")
	assert.Equal(t, 10, cfg.Processor.WorkerCount)
	assert.True(t, cfg.Podified)
	// environment still layered underneath
	assert.Equal(t, "env-token", cfg.Runner.Token)

	_, err = LoadConfig(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Runner.URL = ""
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Processor.WorkerCount = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Runner.CheckInterval = 0
	assert.Error(t, cfg.Validate())
}
