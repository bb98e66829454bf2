package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	academy "github.com/goliatone/go-academy"
	"github.com/goliatone/go-academy/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ academy.Config = config.Config{}

func secretsEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ACADEMY_ACCESS_SECRET", strings.Repeat("a", 32))
	t.Setenv("ACADEMY_REFRESH_SECRET", strings.Repeat("r", 32))
	t.Setenv("ACADEMY_SETUP_SECRET", strings.Repeat("s", 32))
	t.Setenv("ACADEMY_RESET_SECRET", strings.Repeat("x", 32))
}

func TestLoad_Defaults(t *testing.T) {
	secretsEnv(t)

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 15*time.Minute, cfg.GetAccessTTL())
	assert.Equal(t, time.Hour, cfg.GetResetTTL())
	assert.Equal(t, "refresh_token", cfg.GetRefreshCookieName())
	assert.Equal(t, config.NotifierLog, cfg.Notifier)
	assert.True(t, cfg.GetSecureCookies())
}

func TestLoad_EnvOverrides(t *testing.T) {
	secretsEnv(t)
	t.Setenv("ACADEMY_ACCESS_TTL", "5m")
	t.Setenv("ACADEMY_SECURE_COOKIES", "false")
	t.Setenv("ACADEMY_NOTIFIER", "Redis")

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.AccessTTL)
	assert.False(t, cfg.SecureCookies)
	assert.Equal(t, config.NotifierRedis, cfg.Notifier)
}

func TestLoad_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := strings.Join([]string{
		"ACADEMY_ACCESS_SECRET=" + strings.Repeat("1", 32),
		"ACADEMY_REFRESH_SECRET=" + strings.Repeat("2", 32),
		"ACADEMY_SETUP_SECRET=" + strings.Repeat("3", 32),
		"ACADEMY_RESET_SECRET=" + strings.Repeat("4", 32),
		"ACADEMY_ISSUER=dotenv-issuer",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	keys := []string{"ACADEMY_ACCESS_SECRET", "ACADEMY_REFRESH_SECRET", "ACADEMY_SETUP_SECRET", "ACADEMY_RESET_SECRET", "ACADEMY_ISSUER"}
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "dotenv-issuer", cfg.GetIssuer())
	assert.Equal(t, strings.Repeat("1", 32), cfg.GetAccessSecret())
}

func TestLoad_RejectsSharedSecrets(t *testing.T) {
	secretsEnv(t)
	t.Setenv("ACADEMY_RESET_SECRET", strings.Repeat("a", 32))

	_, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ResetSecret")
}

func TestLoad_RequiresSecrets(t *testing.T) {
	for _, k := range []string{"ACADEMY_ACCESS_SECRET", "ACADEMY_REFRESH_SECRET", "ACADEMY_SETUP_SECRET", "ACADEMY_RESET_SECRET"} {
		t.Setenv(k, "")
	}

	_, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
}

func TestValidate_SendGridNeedsKey(t *testing.T) {
	secretsEnv(t)
	t.Setenv("ACADEMY_NOTIFIER", config.NotifierSendGrid)

	_, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SendGridKey")
}
