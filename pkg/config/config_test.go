package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/tiercache/pkg/pipeline"
	"github.com/marmos91/tiercache/pkg/repository"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_NoConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 5*time.Second, cfg.Engine.Pipeline.FetchTimeout)
	assert.Equal(t, "auto", cfg.Engine.Pipeline.MemoryClass)
	assert.Equal(t, int64(200_000_000), cfg.Engine.Pipeline.Budgets.Generous.MaxBytes)
	assert.Equal(t, 1000, cfg.Engine.Pipeline.Budgets.Generous.MaxItems)
	assert.Equal(t, 5, cfg.Engine.Tracker.Capacity)
	assert.Equal(t, 12, cfg.Engine.Prefetch.Horizon)
	assert.Equal(t, 25, cfg.Engine.Lifecycle.ForegroundEvictCount)
	assert.Equal(t, 9090, cfg.API.Port)
	assert.True(t, cfg.Engine.Worker.Codec.Recompress)
	assert.Equal(t, repository.DatabaseTypeSQLite, cfg.Repository.Type)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	path := writeConfig(t, `
logging:
  level: debug
pipeline:
  fetch_timeout: 2s
  memory_class: constrained
  budgets:
    constrained:
      max_items: 100
      max_bytes: 10MB
worker:
  codec:
    quality: 70
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, 2*time.Second, cfg.Engine.Pipeline.FetchTimeout)
	assert.Equal(t, "constrained", cfg.Engine.Pipeline.MemoryClass)
	assert.Equal(t, 100, cfg.Engine.Pipeline.Budgets.Constrained.MaxItems)
	assert.Equal(t, int64(10_000_000), cfg.Engine.Pipeline.Budgets.Constrained.MaxBytes)

	// Untouched keys keep their defaults.
	assert.Equal(t, int64(200_000_000), cfg.Engine.Pipeline.Budgets.Generous.MaxBytes)
	assert.Equal(t, int64(350_000_000), cfg.Engine.Pipeline.Budgets.Texture.MaxBytes)
	assert.True(t, cfg.Engine.Worker.Codec.Recompress)
	assert.Equal(t, 70, cfg.Engine.Worker.Codec.Quality)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("TIERCACHE_PIPELINE_FETCH_TIMEOUT", "750ms")
	t.Setenv("TIERCACHE_PIPELINE_BUDGETS_TEXTURE_MAX_BYTES", "100MiB")
	t.Setenv("TIERCACHE_TRACKER_CAPACITY", "8")

	cfg, err := Load(writeConfig(t, "logging:\n  level: warn\n"))
	require.NoError(t, err)

	assert.Equal(t, "WARN", cfg.Logging.Level)
	assert.Equal(t, 750*time.Millisecond, cfg.Engine.Pipeline.FetchTimeout)
	assert.Equal(t, int64(100*1024*1024), cfg.Engine.Pipeline.Budgets.Texture.MaxBytes)
	assert.Equal(t, 8, cfg.Engine.Tracker.Capacity)
}

func TestLoad_InvalidByteSize(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	_, err := Load(writeConfig(t, `
pipeline:
  budgets:
    texture:
      max_bytes: lots
`))
	require.Error(t, err)
}

func TestLoad_InvalidMemoryClass(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	_, err := Load(writeConfig(t, "pipeline:\n  memory_class: huge\n"))
	require.Error(t, err)
}

func TestSaveConfig_ReloadsEqual(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := GetDefaultConfig()
	cfg.Engine.Pipeline.FetchTimeout = 3 * time.Second
	cfg.Engine.Pipeline.MemoryClass = string(pipeline.ClassGenerous)
	cfg.Engine.Prefetch.MaxChildren = 4

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, SaveConfig(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestMustLoad_MissingFile(t *testing.T) {
	_, err := MustLoad(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tiercache init")
}

func TestInitConfigToPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")

	require.NoError(t, InitConfigToPath(path, false))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "# tiercache configuration file")
	assert.Contains(t, string(content), "pipeline:")
	assert.Contains(t, string(content), "prefetch:")

	require.Error(t, InitConfigToPath(path, false))
	require.NoError(t, InitConfigToPath(path, true))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfig(), cfg)
}

func TestInitConfig_DefaultLocation(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	path, err := InitConfig(false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "tiercache", "config.yaml"), path)
	assert.True(t, DefaultConfigExists())
}
