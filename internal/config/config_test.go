package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SECRET_KEY", "test-secret")
	t.Setenv("USE_CONNECTION_STR", "true")
	t.Setenv("DB_CONNECTION_STR", "host=localhost user=u password=p dbname=d sslmode=disable")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 3, cfg.MatchingMaxRetries)
	assert.Equal(t, "withdrawal_notifications", cfg.NotificationQueue)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowOrigins)
	assert.Equal(t, "host=localhost user=u password=p dbname=d sslmode=disable", cfg.DB.DSN())
}

func TestLoad_EnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("ALLOW_ORIGIN", "https://a.example, https://b.example")
	t.Setenv("MATCHING_MAX_RETRIES", "5")
	t.Setenv("REQUEST_TIMEOUT", "3s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowOrigins)
	assert.Equal(t, 5, cfg.MatchingMaxRetries)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
}

func TestLoad_ConfigFile(t *testing.T) {
	setRequiredEnv(t)
	path := filepath.Join(t.TempDir(), "aotf.yaml")
	require.NoError(t, os.WriteFile(path, []byte("NOTIFICATION_QUEUE: from_file\nLOG_LEVEL: debug\n"), 0o600))
	t.Setenv("AOTF_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "from_file", cfg.NotificationQueue)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_MissingSecret(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SECRET_KEY", "")

	_, err := Load()
	assert.ErrorContains(t, err, "SECRET_KEY")
}

func TestDatabaseConfig(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", Name: "aotf"}
	assert.NoError(t, d.Validate())
	assert.Equal(t, "postgres://u:p@db:5432/aotf?sslmode=disable", d.DSN())

	d.Password = ""
	assert.Error(t, d.Validate())

	assert.Error(t, DatabaseConfig{UseConnString: true}.Validate())
}

func TestLoadDatabase_IgnoresServerSettings(t *testing.T) {
	t.Setenv("SECRET_KEY", "")
	t.Setenv("USE_CONNECTION_STR", "false")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_USERNAME", "u")
	t.Setenv("DB_PASSWORD", "p")
	t.Setenv("DB_DATABASE", "aotf")

	d, err := LoadDatabase()
	require.NoError(t, err)
	assert.Equal(t, "5432", d.Port)
	assert.Equal(t, "postgres://u:p@db:5432/aotf?sslmode=disable", d.DSN())
}
