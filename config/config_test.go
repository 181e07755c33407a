package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromYAML_MissingFileReturnsDefaults(t *testing.T) {
	cfg := loadFromYAML(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Equal(t, getDefaultConfig(), cfg)
}

func TestLoadFromYAML_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("server:\n  port: \"9000\"\nwebsocket:\n  pingInterval: 5s\n")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg := loadFromYAML(path)
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.WebSocket.PingInterval)
	assert.Equal(t, 90*time.Second, cfg.WebSocket.ReadTimeout)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 5*time.Second, cfg.Database.QueryTimeout)
}

func TestLoadFromYAML_InvalidFileFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [oops"), 0o600))

	assert.Equal(t, getDefaultConfig(), loadFromYAML(path))
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "none.yaml"))
	t.Setenv("SERVER_PORT", "8081")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_QUERY_TIMEOUT", "2s")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("MAIL_ENABLED", "true")
	t.Setenv("EMAIL_FROM", "noreply@example.com")

	cfg := LoadConfig()
	assert.Equal(t, "8081", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 2*time.Second, cfg.Database.QueryTimeout)
	assert.Equal(t, "s3cret", cfg.JWT.Secret)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.True(t, cfg.Mail.Enabled)
	assert.Equal(t, "noreply@example.com", cfg.Mail.From)
}

func TestGetEnvHelpers_IgnoreGarbage(t *testing.T) {
	t.Setenv("X_INT", "abc")
	t.Setenv("X_BOOL", "maybe")
	t.Setenv("X_DUR", "forever")

	assert.Equal(t, 7, getEnvInt("X_INT", 7))
	assert.True(t, getEnvBool("X_BOOL", true))
	assert.Equal(t, time.Second, getEnvDuration("X_DUR", time.Second))
}
