package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	oldWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(oldWd) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "", cfg.Metamodel)
	assert.Equal(t, 1, cfg.Iterations)
	assert.Equal(t, "copy", cfg.Transformation)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Log.JSON)
	assert.Equal(t, "sqlite3", cfg.Store.Driver)
	assert.Equal(t, "file:modelgraph.db", cfg.Store.DSN)
	assert.False(t, cfg.Journal.Enabled)
	assert.Equal(t, "modelgraph:changes", cfg.Journal.Redis.Stream)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	content := `
metamodel: schema/pets.yaml
iterations: 10
transformation: pets
log:
  level: debug
  json: true
store:
  driver: postgres
  dsn: postgres://localhost/models
journal:
  enabled: true
  redis:
    addr: localhost:6379
    db: 2
`
	require.NoError(t, os.WriteFile("modelgraph.yaml", []byte(content), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "schema/pets.yaml", cfg.Metamodel)
	assert.Equal(t, 10, cfg.Iterations)
	assert.Equal(t, "pets", cfg.Transformation)
	assert.Equal(t, LogConfig{Level: "debug", JSON: true}, cfg.Log)
	assert.Equal(t, StoreConfig{Driver: "postgres", DSN: "postgres://localhost/models"}, cfg.Store)
	assert.True(t, cfg.Journal.Enabled)
	assert.Equal(t, RedisConfig{Addr: "localhost:6379", DB: 2, Stream: "modelgraph:changes"}, cfg.Journal.Redis)

	t.Run("explicit path", func(t *testing.T) {
		other := filepath.Join(t.TempDir(), "other.yaml")
		require.NoError(t, os.WriteFile(other, []byte("iterations: 3\n"), 0o644))

		cfg, err := Load(other)
		require.NoError(t, err)
		assert.Equal(t, 3, cfg.Iterations)
		assert.Equal(t, "copy", cfg.Transformation)
	})
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_Environment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("MODELGRAPH_ITERATIONS", "7")
	t.Setenv("MODELGRAPH_STORE_DRIVER", "pgx")
	t.Setenv("MODELGRAPH_JOURNAL_REDIS_ADDR", "redis:6379")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Iterations)
	assert.Equal(t, "pgx", cfg.Store.Driver)
	assert.Equal(t, "redis:6379", cfg.Journal.Redis.Addr)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"defaults", func(*Config) {}, ""},
		{"zero iterations", func(c *Config) { c.Iterations = 0 }, "iterations must be at least 1"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "invalid log.level"},
		{"unknown driver", func(c *Config) { c.Store.Driver = "mysql" }, `unsupported store.driver "mysql"`},
		{"redis without stream", func(c *Config) {
			c.Journal.Redis.Addr = "localhost:6379"
			c.Journal.Redis.Stream = ""
		}, "journal.redis.stream must be set"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
