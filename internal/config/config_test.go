package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "datamap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Log.Development)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	require.Contains(t, cfg.Storage, "default")
	assert.Equal(t, "memory", cfg.Storage["default"].Driver)
}

func TestLoadWithConfigFile(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
  development: true
http:
  addr: 127.0.0.1:9000
  allowed_origins:
    - https://cats.example
storage:
  default:
    driver: postgres
    host: db.internal
    port: 5433
    database: cats
    user: app
    password: hunter2
  cat:
    driver: redis
    addr: localhost:6379
    prefix: "cats:"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Development)
	assert.Equal(t, "127.0.0.1:9000", cfg.HTTP.Addr)
	assert.Equal(t, []string{"https://cats.example"}, cfg.HTTP.AllowedOrigins)

	def := cfg.Storage["default"]
	assert.Equal(t, "postgres", def.Driver)
	assert.Equal(t, "db.internal", def.Host)
	assert.Equal(t, 5433, def.Port)
	assert.Equal(t, "cats", def.Database)
	assert.Equal(t, "hunter2", def.Password)

	cat := cfg.Storage["cat"]
	assert.Equal(t, "redis", cat.Driver)
	assert.Equal(t, "cats:", cat.Prefix)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("DATAMAP_LOG_LEVEL", "warn")
	t.Setenv("DATAMAP_HTTP_ADDR", ":9999")
	t.Setenv("DATAMAP_STORAGE_DEFAULT_DRIVER", "sqlite3")
	t.Setenv("DATAMAP_STORAGE_DEFAULT_DATABASE", "/tmp/cats.db")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, ":9999", cfg.HTTP.Addr)
	assert.Equal(t, "sqlite3", cfg.Storage["default"].Driver)
	assert.Equal(t, "/tmp/cats.db", cfg.Storage["default"].Database)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "invalid log level",
			content: "log:\n  level: loud\n",
			wantErr: "log.level",
		},
		{
			name:    "empty http addr",
			content: "http:\n  addr: \"\"\n",
			wantErr: "http.addr",
		},
		{
			name:    "relative metrics path",
			content: "metrics:\n  path: metrics\n",
			wantErr: "metrics.path",
		},
		{
			name:    "unknown driver",
			content: "storage:\n  cat:\n    driver: oracle\n",
			wantErr: "storage.cat.driver",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
