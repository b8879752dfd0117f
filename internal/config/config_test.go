package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsAndOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
engine:
  queue_size: 16
  batch_interval: 20ms
storage:
  backend: minio
  minio:
    host: 127.0.0.1
    port: 9001
`), 0o644))

	t.Setenv("NETDRIVER_ENGINE_MAX_GROUPS", "3")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 16, cfg.Engine.QueueSize)
	assert.Equal(t, 20*time.Millisecond, cfg.Engine.BatchInterval)
	assert.Equal(t, 3, cfg.Engine.MaxGroups)
	assert.Equal(t, 10*time.Second, cfg.Engine.DefaultTimeout)
	assert.True(t, cfg.Engine.CatchError)
	assert.Equal(t, "minio", cfg.Storage.Backend)
	assert.Equal(t, 9001, cfg.Storage.Minio.Port)
	assert.Equal(t, 30*24*time.Hour, cfg.Database.SQLite.Retention)
	assert.Equal(t, "0.0.0.0:9000", cfg.GetServerAddr())
	assert.Same(t, cfg, Get())
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  backend: s3\n"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
