package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadParsesPoolAndMetrics(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "taskpool.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
pool:
  workers: 8
  max_queue: 128
metrics:
  enabled: true
  addr: ":9191"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Pool.Workers)
	assert.Equal(t, 128, cfg.Pool.MaxQueue)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9191", cfg.Metrics.Addr)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefaultIsUsable(t *testing.T) {
	cfg := Default()
	assert.Greater(t, cfg.Pool.Workers, 0)
	assert.Greater(t, cfg.Pool.MaxQueue, 0)
}
