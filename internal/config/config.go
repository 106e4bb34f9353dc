// Package config loads settings for the client and the reference ledger from
// an optional .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	defaultLedgerURL      = "http://127.0.0.1:8000"
	defaultRequestTimeout = 15 * time.Second
)

// ClientConfig configures the terminal client.
type ClientConfig struct {
	LedgerBaseURL    string        `mapstructure:"LEDGER_BASE_URL"`
	CredentialsPath  string        `mapstructure:"CREDENTIALS_PATH"`
	CredentialsKey   string        `mapstructure:"CREDENTIALS_KEY"`
	RequestTimeout   time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	AmountValidation string        `mapstructure:"AMOUNT_VALIDATION"`
	LogLevel         string        `mapstructure:"LOG_LEVEL"`
	MetricsAddr      string        `mapstructure:"METRICS_ADDR"`
}

// LedgerConfig configures the reference ledger service.
type LedgerConfig struct {
	Port                     string `mapstructure:"PORT"`
	DatabaseURL              string `mapstructure:"DATABASE_URL"`
	JWTSecret                string `mapstructure:"JWT_SECRET"`
	AccessTokenExpireMinutes int    `mapstructure:"ACCESS_TOKEN_EXPIRE_MINUTES"`
	CORSOrigins              string `mapstructure:"CORS_ORIGINS"`
	LoginRatePerMinute       int    `mapstructure:"LOGIN_RATE_PER_MINUTE"`
	LogLevel                 string `mapstructure:"LOG_LEVEL"`
}

// TokenTTL is the lifetime of issued access tokens.
func (c LedgerConfig) TokenTTL() time.Duration {
	return time.Duration(c.AccessTokenExpireMinutes) * time.Minute
}

// Level parses LOG_LEVEL. Unknown names were already coerced on load.
func (c ClientConfig) Level() logrus.Level {
	lvl, _ := logrus.ParseLevel(c.LogLevel)
	return lvl
}

func (c LedgerConfig) Level() logrus.Level {
	lvl, _ := logrus.ParseLevel(c.LogLevel)
	return lvl
}

var logger = logrus.WithField("component", "config")

// newViper reads path/.env into the process environment, then binds keys.
func newViper(path string, keys []string) *viper.Viper {
	if err := godotenv.Load(filepath.Join(path, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.WithError(err).Warn("failed to read .env file; using environment values")
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range keys {
		_ = v.BindEnv(key)
	}
	return v
}

// LoadClientConfig reads the client settings.
func LoadClientConfig(path string) (ClientConfig, error) {
	v := newViper(path, []string{
		"LEDGER_BASE_URL", "CREDENTIALS_PATH", "CREDENTIALS_KEY",
		"REQUEST_TIMEOUT", "AMOUNT_VALIDATION", "LOG_LEVEL", "METRICS_ADDR",
	})
	v.SetDefault("LEDGER_BASE_URL", defaultLedgerURL)
	v.SetDefault("CREDENTIALS_PATH", defaultCredentialsPath())
	v.SetDefault("CREDENTIALS_KEY", "token")
	v.SetDefault("REQUEST_TIMEOUT", defaultRequestTimeout.String())
	v.SetDefault("AMOUNT_VALIDATION", "server")
	v.SetDefault("LOG_LEVEL", "warn")

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return ClientConfig{}, fmt.Errorf("unable to decode client config: %w", err)
	}

	cfg.LedgerBaseURL = strings.TrimRight(strings.TrimSpace(cfg.LedgerBaseURL), "/")
	if cfg.LedgerBaseURL == "" {
		cfg.LedgerBaseURL = defaultLedgerURL
	}
	if cfg.RequestTimeout <= 0 {
		logger.WithField("value", cfg.RequestTimeout).Warn("REQUEST_TIMEOUT must be positive; using default")
		cfg.RequestTimeout = defaultRequestTimeout
	}
	switch mode := strings.ToLower(strings.TrimSpace(cfg.AmountValidation)); mode {
	case "server", "local":
		cfg.AmountValidation = mode
	default:
		logger.WithField("value", cfg.AmountValidation).Warn("AMOUNT_VALIDATION must be server or local; using server")
		cfg.AmountValidation = "server"
	}
	cfg.LogLevel = coerceLevel(cfg.LogLevel, "warn")
	return cfg, nil
}

// LoadLedgerConfig reads the reference ledger settings. DATABASE_URL and
// JWT_SECRET are required.
func LoadLedgerConfig(path string) (LedgerConfig, error) {
	v := newViper(path, []string{
		"PORT", "DATABASE_URL", "JWT_SECRET", "ACCESS_TOKEN_EXPIRE_MINUTES",
		"CORS_ORIGINS", "LOGIN_RATE_PER_MINUTE", "LOG_LEVEL",
	})
	v.SetDefault("PORT", "8000")
	v.SetDefault("ACCESS_TOKEN_EXPIRE_MINUTES", 30)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("LOGIN_RATE_PER_MINUTE", 10)
	v.SetDefault("LOG_LEVEL", "info")

	var cfg LedgerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return LedgerConfig{}, fmt.Errorf("unable to decode ledger config: %w", err)
	}

	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return LedgerConfig{}, errors.New("DATABASE_URL is not set")
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return LedgerConfig{}, errors.New("JWT_SECRET is not set")
	}
	if cfg.AccessTokenExpireMinutes <= 0 {
		logger.WithField("value", cfg.AccessTokenExpireMinutes).Warn("ACCESS_TOKEN_EXPIRE_MINUTES must be positive; using 30")
		cfg.AccessTokenExpireMinutes = 30
	}
	if cfg.LoginRatePerMinute <= 0 {
		logger.WithField("value", cfg.LoginRatePerMinute).Warn("LOGIN_RATE_PER_MINUTE must be positive; using 10")
		cfg.LoginRatePerMinute = 10
	}
	cfg.LogLevel = coerceLevel(cfg.LogLevel, "info")
	return cfg, nil
}

func coerceLevel(raw, fallback string) string {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(raw))
	if err != nil {
		logger.WithField("value", raw).Warnf("unknown LOG_LEVEL; using %s", fallback)
		return fallback
	}
	return lvl.String()
}

func defaultCredentialsPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".unibank", "credentials.json")
	}
	return filepath.Join(home, ".unibank", "credentials.json")
}
