// Package config loads the server configuration from the environment.
//
// Values come from the process environment, optionally seeded from a .env
// file in the working directory. Real environment variables always win over
// the file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/sakif/snapgram/internal/apperror"
)

type Config struct {
	Port     int    `env:"PORT" envDefault:"8080"`
	DBPath   string `env:"DB_PATH" envDefault:"data/snapgram.db"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	// text or json
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	// Identity provider
	WebhookSigningSecret string        `env:"WEBHOOK_SIGNING_SECRET"`
	IdentityAPIURL       string        `env:"IDENTITY_API_URL" envDefault:"https://api.clerk.com"`
	IdentitySecretKey    string        `env:"IDENTITY_SECRET_KEY"`
	IdentityTimeout      time.Duration `env:"IDENTITY_TIMEOUT" envDefault:"10s"`

	// Session tokens. An empty secret disables requireAuth.
	SessionSecret     string   `env:"SESSION_SECRET"`
	SessionIssuer     string   `env:"SESSION_ISSUER"`
	AuthorizedParties []string `env:"AUTHORIZED_PARTIES" envSeparator:","`

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`

	// Optional infrastructure. Empty address = feature off.
	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	PostCacheTTL  time.Duration `env:"POST_CACHE_TTL" envDefault:"5m"`
	NATSURL       string        `env:"NATS_URL"`
}

// Load reads files (default ".env"; missing files are skipped) into the
// environment and parses it. A missing webhook secret is a configuration
// error: the reconciliation endpoint cannot work without it.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		// godotenv.Load never overrides variables that are already set.
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: loading %s: %w", f, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if strings.TrimSpace(cfg.WebhookSigningSecret) == "" {
		return nil, apperror.Configuration("WEBHOOK_SIGNING_SECRET", "WEBHOOK_SIGNING_SECRET is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, apperror.Configuration("PORT", fmt.Sprintf("PORT %d is out of range", cfg.Port))
	}
	return cfg, nil
}

// Level maps LOG_LEVEL onto a slog level. Unknown values mean info.
func (c *Config) Level() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// NewLogger builds the process logger from LOG_FORMAT and LOG_LEVEL.
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.Level()}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
