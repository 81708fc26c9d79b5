package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-session-client/internal/config"
)

func clearEnv(t *testing.T, vars ...string) {
	t.Helper()
	for _, v := range vars {
		t.Setenv(v, "")
	}
}

func TestNew_Defaults(t *testing.T) {
	clearEnv(t, "ELEMO_BASE_URL", "ELEMO_SCOPES", "ELEMO_HTTP_TIMEOUT", "ELEMO_STORAGE",
		"ELEMO_EXPIRY_BUFFER", "ELEMO_EVENTS_REDIS", "REDIS_DB", "ELEMO_TOKEN_PATH")

	cfg := config.New()
	require.Equal(t, "http://localhost:35478", cfg.GetBaseURL())
	require.Equal(t, []string{"user", "organization", "namespace", "project", "role", "todo", "notification"}, cfg.GetScopes())
	require.Equal(t, "/oauth/token", cfg.GetTokenPath())
	require.Equal(t, 30*time.Second, cfg.GetHTTPTimeout())
	require.Equal(t, config.StorageFile, cfg.GetStorageBackend())
	require.Equal(t, 5*time.Minute, cfg.GetExpiryBuffer())
	require.Equal(t, time.Minute, cfg.GetMinRefreshDelay())
	require.Equal(t, 30*24*time.Hour, cfg.GetRefreshCookieTTL())
	require.False(t, cfg.GetEventsViaRedis())
	require.Zero(t, cfg.GetRedisDB())
}

func TestNew_Environment(t *testing.T) {
	t.Setenv("ELEMO_SCOPES", "user, todo")
	t.Setenv("ELEMO_HTTP_TIMEOUT", "5s")
	t.Setenv("ELEMO_STORAGE", "redis")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("ELEMO_EVENTS_REDIS", "true")

	cfg := config.New()
	require.Equal(t, []string{"user", "todo"}, cfg.GetScopes())
	require.Equal(t, 5*time.Second, cfg.GetHTTPTimeout())
	require.Equal(t, config.StorageRedis, cfg.GetStorageBackend())
	require.Equal(t, 3, cfg.GetRedisDB())
	require.True(t, cfg.GetEventsViaRedis())
}

func TestNew_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("ELEMO_HTTP_TIMEOUT", "soon")
	t.Setenv("REDIS_DB", "x")

	cfg := config.New()
	require.Equal(t, 30*time.Second, cfg.GetHTTPTimeout())
	require.Zero(t, cfg.GetRedisDB())
}

func TestLoad_FileOverlay(t *testing.T) {
	clearEnv(t, "ELEMO_BASE_URL", "ELEMO_SCOPES", "ELEMO_EXPIRY_BUFFER")
	t.Setenv("ELEMO_CLIENT_ID", "from-env")

	path := filepath.Join(t.TempDir(), "elemo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
elemo_base_url: https://api.elemo.app
ELEMO_CLIENT_ID: from-file
elemo_scopes:
  - user
  - project
elemo_expiry_buffer: 2m
`), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "https://api.elemo.app", cfg.GetBaseURL())
	require.Equal(t, "from-env", cfg.GetClientID())
	require.Equal(t, []string{"user", "project"}, cfg.GetScopes())
	require.Equal(t, 2*time.Minute, cfg.GetExpiryBuffer())
}

func TestLoad_PathFromEnvironment(t *testing.T) {
	clearEnv(t, "ELEMO_STORAGE")
	path := filepath.Join(t.TempDir(), "elemo.yaml")
	require.NoError(t, os.WriteFile(path, []byte("elemo_storage: postgres\n"), 0o600))
	t.Setenv("ELEMO_CONFIG_FILE", path)

	cfg, err := config.Load("")
	require.NoError(t, err)
	require.Equal(t, config.StoragePostgres, cfg.GetStorageBackend())
}

func TestLoad_Errors(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a: [unterminated"), 0o600))
	_, err = config.Load(path)
	require.Error(t, err)
}

func TestGetEnv(t *testing.T) {
	t.Setenv("ELEMO_TEST_VALUE", "")
	require.Equal(t, "fallback", config.GetEnv("ELEMO_TEST_VALUE", "fallback"))
	t.Setenv("ELEMO_TEST_VALUE", "set")
	require.Equal(t, "set", config.GetEnv("ELEMO_TEST_VALUE", "fallback"))
}
