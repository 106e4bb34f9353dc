package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var clientKeys = []string{
	"LEDGER_BASE_URL", "CREDENTIALS_PATH", "CREDENTIALS_KEY",
	"REQUEST_TIMEOUT", "AMOUNT_VALIDATION", "LOG_LEVEL", "METRICS_ADDR",
}

var ledgerKeys = []string{
	"PORT", "DATABASE_URL", "JWT_SECRET", "ACCESS_TOKEN_EXPIRE_MINUTES",
	"CORS_ORIGINS", "LOGIN_RATE_PER_MINUTE", "LOG_LEVEL",
}

func clearEnv(t *testing.T, keys []string) {
	t.Helper()
	for _, key := range keys {
		unsetEnvWithCleanup(t, key)
	}
}

func TestLoadClientConfig_Defaults(t *testing.T) {
	clearEnv(t, clientKeys)

	cfg, err := LoadClientConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:8000", cfg.LedgerBaseURL)
	assert.Equal(t, "token", cfg.CredentialsKey)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "server", cfg.AmountValidation)
	assert.Equal(t, "warning", cfg.LogLevel)
	assert.Empty(t, cfg.MetricsAddr)
	assert.Equal(t, "credentials.json", filepath.Base(cfg.CredentialsPath))
}

func TestLoadClientConfig_EnvironmentOverrides(t *testing.T) {
	clearEnv(t, clientKeys)
	setEnvWithCleanup(t, "LEDGER_BASE_URL", "https://ledger.example.com/")
	setEnvWithCleanup(t, "REQUEST_TIMEOUT", "3s")
	setEnvWithCleanup(t, "AMOUNT_VALIDATION", "LOCAL")
	setEnvWithCleanup(t, "METRICS_ADDR", ":9100")

	cfg, err := LoadClientConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "https://ledger.example.com", cfg.LedgerBaseURL)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "local", cfg.AmountValidation)
	assert.Equal(t, ":9100", cfg.MetricsAddr)
}

func TestLoadClientConfig_CoercesInvalidValues(t *testing.T) {
	clearEnv(t, clientKeys)
	setEnvWithCleanup(t, "AMOUNT_VALIDATION", "strict")
	setEnvWithCleanup(t, "REQUEST_TIMEOUT", "0s")
	setEnvWithCleanup(t, "LOG_LEVEL", "loud")

	cfg, err := LoadClientConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "server", cfg.AmountValidation)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadClientConfig_ReadsDotEnv(t *testing.T) {
	clearEnv(t, clientKeys)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LEDGER_BASE_URL=http://ledger:9000\n"), 0o600))

	cfg, err := LoadClientConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "http://ledger:9000", cfg.LedgerBaseURL)
}

func TestLoadLedgerConfig_RequiresSecrets(t *testing.T) {
	clearEnv(t, ledgerKeys)

	_, err := LoadLedgerConfig(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")

	setEnvWithCleanup(t, "DATABASE_URL", "postgres://localhost/unibank")
	_, err = LoadLedgerConfig(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadLedgerConfig_Defaults(t *testing.T) {
	clearEnv(t, ledgerKeys)
	setEnvWithCleanup(t, "DATABASE_URL", "postgres://localhost/unibank")
	setEnvWithCleanup(t, "JWT_SECRET", "secret")
	setEnvWithCleanup(t, "LOGIN_RATE_PER_MINUTE", "-4")

	cfg, err := LoadLedgerConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, 30*time.Minute, cfg.TokenTTL())
	assert.Equal(t, "http://localhost:3000", cfg.CORSOrigins)
	assert.Equal(t, 10, cfg.LoginRatePerMinute)
	assert.Equal(t, "info", cfg.LogLevel)
}

func setEnvWithCleanup(t *testing.T, key string, value string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}

func unsetEnvWithCleanup(t *testing.T, key string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}
