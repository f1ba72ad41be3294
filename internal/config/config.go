package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

type Config struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
	RedisURL    string `env:"REDIS_URL"`

	AllowedKeys           []string `env:"ALLOWED_KEYS,required,notEmpty" envSeparator:","`
	TokenSigningSecret    string   `env:"TOKEN_SIGNING_SECRET"`
	TokenTTLSeconds       int      `env:"TOKEN_TTL_SECONDS" envDefault:"900"`
	TokenIssueLimitPerMin int      `env:"TOKEN_ISSUE_LIMIT_PER_MIN" envDefault:"10"`

	ModelAPIURL         string `env:"MODEL_API_URL" envDefault:"https://llm.api.cloud.yandex.net/foundationModels/v1/completion"`
	ModelFolderID       string `env:"MODEL_FOLDER_ID,required,notEmpty"`
	ModelAuth           string `env:"MODEL_AUTH,required,notEmpty"`
	ModelName           string `env:"MODEL_NAME" envDefault:"yandexgpt-lite"`
	ModelTimeoutSeconds int    `env:"MODEL_TIMEOUT_SECONDS" envDefault:"30"`

	DBStatementTimeoutSeconds int    `env:"DB_STATEMENT_TIMEOUT_SECONDS" envDefault:"5"`
	QuotaProcedure            string `env:"QUOTA_PROCEDURE" envDefault:"GPT_PKG.IS_ACCEPT"`
	HistoryProcedure          string `env:"HISTORY_PROCEDURE" envDefault:"GPT_PKG.GET_HISTORY"`
	AuditProcedure            string `env:"AUDIT_PROCEDURE" envDefault:"GPT_PKG.WRITE"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLSeconds) * time.Second
}

func (c *Config) ModelTimeout() time.Duration {
	return time.Duration(c.ModelTimeoutSeconds) * time.Second
}

func (c *Config) StatementTimeout() time.Duration {
	return time.Duration(c.DBStatementTimeoutSeconds) * time.Second
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// AllowList returns the configured caller keys as a set. Blank entries are
// ignored.
func (c *Config) AllowList() map[string]struct{} {
	keys := make(map[string]struct{}, len(c.AllowedKeys))
	for _, k := range c.AllowedKeys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		keys[k] = struct{}{}
	}
	return keys
}

// LegacySigning reports whether tokens are signed with the caller key instead
// of a server secret.
func (c *Config) LegacySigning() bool {
	return c.TokenSigningSecret == ""
}

func (c *Config) Validate(isProduction bool) error {
	if len(c.AllowList()) == 0 {
		return fmt.Errorf("ALLOWED_KEYS must name at least one caller key")
	}
	if c.TokenTTLSeconds <= 0 {
		return fmt.Errorf("TOKEN_TTL_SECONDS must be positive")
	}
	if c.ModelTimeoutSeconds <= 0 || c.DBStatementTimeoutSeconds <= 0 {
		return fmt.Errorf("MODEL_TIMEOUT_SECONDS and DB_STATEMENT_TIMEOUT_SECONDS must be positive")
	}

	if c.LegacySigning() {
		log.Warn().Msg("TOKEN_SIGNING_SECRET is empty: tokens are signed with the caller key")
	} else if isProduction {
		if err := validateSecret("TOKEN_SIGNING_SECRET", c.TokenSigningSecret); err != nil {
			return err
		}
	}

	if isProduction {
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
		if strings.HasPrefix(c.ModelAPIURL, "http://") {
			log.Warn().Msg("MODEL_API_URL is not https in production")
		}
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
