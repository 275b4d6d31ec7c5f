package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "gauntlet", cfg.Name)
	assert.Equal(t, "0.4.0", cfg.Version)
	assert.Equal(t, "30s", cfg.Arena.DefaultTimeout)
	assert.Equal(t, "60s", cfg.Arena.CompileTimeout)
	assert.False(t, cfg.Arena.AllowNetwork)
	assert.False(t, cfg.Arena.AllowExec)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "gauntlet.yaml")

	cfg := DefaultConfig()
	cfg.Arena.MaxConcurrent = 7
	cfg.Arena.MemoryLimit = "128MiB"
	cfg.Output.Dir = "artifacts"
	cfg.Synthesis.IncludeUnexported = true

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7, loaded.Arena.MaxConcurrent)
	assert.Equal(t, "128MiB", loaded.Arena.MemoryLimit)
	assert.Equal(t, "artifacts", loaded.Output.Dir)
	assert.True(t, loaded.Synthesis.IncludeUnexported)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gauntlet.yaml")
	partial := "arena:\n  max_concurrent: 2\n"
	require.NoError(t, os.WriteFile(path, []byte(partial), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Arena.MaxConcurrent)
	// Everything not mentioned keeps its default.
	assert.Equal(t, "30s", cfg.Arena.DefaultTimeout)
	assert.Equal(t, "go", cfg.Arena.GoBinary)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gauntlet.yaml")
	require.NoError(t, os.WriteFile(path, []byte("arena: [not a map"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "bad default timeout",
			mutate:  func(c *Config) { c.Arena.DefaultTimeout = "forever" },
			wantErr: "default_timeout",
		},
		{
			name:    "bad compile timeout",
			mutate:  func(c *Config) { c.Arena.CompileTimeout = "" },
			wantErr: "compile_timeout",
		},
		{
			name:    "zero concurrency",
			mutate:  func(c *Config) { c.Arena.MaxConcurrent = 0 },
			wantErr: "max_concurrent",
		},
		{
			name:    "tiny output cap",
			mutate:  func(c *Config) { c.Arena.MaxOutputBytes = 100 },
			wantErr: "max_output_bytes",
		},
		{
			name:    "unknown category",
			mutate:  func(c *Config) { c.Synthesis.Categories = []string{"happy", "chaos"} },
			wantErr: "invalid synthesis category",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTimeoutGetters(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "30s", cfg.GetDefaultTimeout().String())
	assert.Equal(t, "1m0s", cfg.GetCompileTimeout().String())
	assert.Equal(t, "30s", cfg.GetReviewTimeout().String())

	// Unparseable values fall back rather than exploding.
	cfg.Arena.DefaultTimeout = "bogus"
	assert.Equal(t, "30s", cfg.GetDefaultTimeout().String())
}
