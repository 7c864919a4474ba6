// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Timeouts.Auth)
	assert.Equal(t, 60*time.Second, cfg.Timeouts.Connection)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	content := `
server:
  port: "9999"
database:
  host: "db.internal"
  database: "ludo"
  username: "svc"
cors:
  origins: ["https://app.example.com"]
debug: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.True(t, cfg.Debug)
	assert.True(t, cfg.OriginAllowed("https://app.example.com"))
	assert.False(t, cfg.OriginAllowed("https://evil.example.com"))
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "7777")
	t.Setenv("SUPABASE_URL", "https://proj.supabase.co")
	t.Setenv("AUTH_TIMEOUT", "10")
	t.Setenv("WS_HEARTBEAT_INTERVAL", "15s")
	t.Setenv("CORS_ORIGINS", "http://a.example, http://b.example")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "7777", cfg.Server.Port)
	assert.Equal(t, "https://proj.supabase.co", cfg.Supabase.URL)
	assert.Equal(t, 10*time.Second, cfg.Timeouts.Auth)
	assert.Equal(t, 15*time.Second, cfg.Timeouts.Heartbeat)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.CORS.Origins)
}

func TestDSN(t *testing.T) {
	cfg := defaults()
	cfg.Database.Username = "svc"
	cfg.Database.Password = "pw"
	cfg.Database.Database = "ludo"
	assert.Contains(t, cfg.DSN(), "dbname=ludo")

	cfg.Database.URL = "postgres://u:p@host/db"
	assert.Equal(t, "postgres://u:p@host/db", cfg.DSN())
}

func TestOriginAllowedWildcard(t *testing.T) {
	cfg := defaults()
	assert.True(t, cfg.OriginAllowed("https://anything.example"))

	cfg.CORS.Origins = []string{"*"}
	assert.True(t, cfg.OriginAllowed("https://anything.example"))
}
