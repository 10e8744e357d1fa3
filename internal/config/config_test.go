package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, runtime.NumCPU(), cfg.HashThreads)
	assert.Equal(t, DefaultBatchSize, cfg.BatchSize)
	assert.True(t, cfg.SkipSystemDirs)
	assert.False(t, cfg.FollowSymlinks)
	assert.True(t, cfg.ExtractExif)
	assert.Equal(t, DefaultListen, cfg.Server.Listen)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"zero threads", func(c *Config) { c.HashThreads = 0 }, ErrInvalidThreads},
		{"negative batch", func(c *Config) { c.BatchSize = -1 }, ErrInvalidBatchSize},
		{"empty listen", func(c *Config) { c.Server.Listen = "" }, ErrInvalidListen},
		{"empty db", func(c *Config) { c.Server.DB = "" }, ErrInvalidDBPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archivum.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
hashThreads: 3
batchSize: 250
followSymlinks: true
excludePatterns:
  - "*.tmp"
  - "node_modules"
server:
  listen: "0.0.0.0:9090"
  db: "/var/lib/archivum.db"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.HashThreads)
	assert.Equal(t, 250, cfg.BatchSize)
	assert.True(t, cfg.FollowSymlinks)
	assert.Equal(t, []string{"*.tmp", "node_modules"}, cfg.ExcludePatterns)
	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Listen)
	assert.Equal(t, "/var/lib/archivum.db", cfg.Server.DB)
	// Unset keys keep their defaults.
	assert.True(t, cfg.SkipSystemDirs)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err, "an explicitly named missing config file is fatal")
}

func TestLoadMissingDefaultFileFallsBack(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(cwd) })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultBatchSize, cfg.BatchSize)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archivum.yaml")
	require.NoError(t, os.WriteFile(path, []byte("batchSize: 100\n"), 0o644))

	t.Setenv("ARCHIVUM_BATCHSIZE", "42")
	t.Setenv("ARCHIVUM_SERVER_LISTEN", "127.0.0.1:7777")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 42, cfg.BatchSize)
	assert.Equal(t, "127.0.0.1:7777", cfg.Server.Listen)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archivum.yaml")
	require.NoError(t, os.WriteFile(path, []byte("batchSize: -5\n"), 0o644))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrInvalidBatchSize)
}
