package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
addr = ":9090"

[agent]
max_iterations = 4
oracle_timeout = "30s"

[selection]
tools = "tools.yaml"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 4, cfg.Agent.MaxIterations)
	assert.Equal(t, 30*time.Second, cfg.Agent.OracleTimeout)
	assert.Equal(t, "tools.yaml", cfg.Selection.Tools)

	// untouched keys keep their defaults
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "OPENAI_API_KEY", cfg.LLM.TokenEnv)
	assert.Equal(t, uint64(10_000_000), cfg.Agent.MaxSteps)
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, New(), cfg)
}

func TestLoadInvalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[agent\n"), 0o600))
	_, err := Load(bad)
	assert.Error(t, err)

	zero := filepath.Join(dir, "zero.toml")
	require.NoError(t, os.WriteFile(zero, []byte("[agent]\nmax_iterations = 0\n"), 0o600))
	_, err = Load(zero)
	assert.ErrorContains(t, err, "max_iterations")
}
