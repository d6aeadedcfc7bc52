package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 10, cfg.Passes.MaxPasses)
	assert.Empty(t, cfg.Passes.Rules)
	assert.True(t, cfg.Provenance.Enabled)
	assert.Equal(t, "./data", cfg.Storage.DataDir)
	assert.False(t, cfg.Storage.InMemory)
	assert.NoError(t, cfg.Validate())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("OVGRAPH_MAX_PASSES", "3")
	t.Setenv("OVGRAPH_RULES", "fold-constants, add-zero")
	t.Setenv("OVGRAPH_PROVENANCE_ENABLED", "false")
	t.Setenv("OVGRAPH_DATA_DIR", "/tmp/ov")
	t.Setenv("OVGRAPH_STORAGE_IN_MEMORY", "true")
	t.Setenv("OVGRAPH_VERBOSE", "true")

	cfg := LoadFromEnv()
	assert.Equal(t, 3, cfg.Passes.MaxPasses)
	assert.Equal(t, []string{"fold-constants", "add-zero"}, cfg.Passes.Rules)
	assert.False(t, cfg.Provenance.Enabled)
	assert.Equal(t, "/tmp/ov", cfg.Storage.DataDir)
	assert.True(t, cfg.Storage.InMemory)
	assert.True(t, cfg.Logging.Verbose)
}

func TestEnvIgnoresMalformedValues(t *testing.T) {
	t.Setenv("OVGRAPH_MAX_PASSES", "lots")
	t.Setenv("OVGRAPH_PROVENANCE_ENABLED", "maybe")

	cfg := LoadFromEnv()
	assert.Equal(t, 10, cfg.Passes.MaxPasses)
	assert.True(t, cfg.Provenance.Enabled)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
passes:
  max_passes: 5
  rules: [double-neg]
storage:
  in_memory: true
logging:
  verbose: true
`), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Passes.MaxPasses)
	assert.Equal(t, []string{"double-neg"}, cfg.Passes.Rules)
	assert.True(t, cfg.Storage.InMemory)
	assert.True(t, cfg.Logging.Verbose)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("passes:\n  max_passes: 5\n"), 0o644))
	t.Setenv("OVGRAPH_MAX_PASSES", "2")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Passes.MaxPasses)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Passes.MaxPasses = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Storage.DataDir = ""
	assert.Error(t, cfg.Validate())
	cfg.Storage.InMemory = true
	assert.NoError(t, cfg.Validate())
}
