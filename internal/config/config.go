// Package config loads the service configuration from environment variables.
//
// Configuration is parsed exactly once, in main, and handed down to the
// server as a plain struct. Nothing below this layer reads the environment —
// every component receives its settings through its constructor, which keeps
// the services testable without env juggling.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds everything the server needs to start.
type Config struct {
	Port   int    `env:"PORT" envDefault:"8080"`
	DBPath string `env:"DB_PATH" envDefault:"data/auth.db"`

	// JWTSecret signs every access and refresh token. There is no useful
	// default: an auth service with a guessable secret is worse than one
	// that refuses to start. Generate with: openssl rand -hex 32
	JWTSecret string `env:"JWT_SECRET"`

	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"720h"` // 30 days

	// RotateRefreshTokens makes every refresh revoke the presented token
	// and hand out a replacement. Off by default: a refresh token then
	// stays valid until it expires or the user logs out.
	RotateRefreshTokens bool `env:"ROTATE_REFRESH_TOKENS" envDefault:"false"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleCallbackURL  string `env:"GOOGLE_CALLBACK_URL"`
	// GoogleUserInfoURL is overridable so tests and local setups can point
	// the provider at a fake userinfo endpoint. Empty means Google's real one.
	GoogleUserInfoURL string `env:"GOOGLE_USERINFO_URL"`
}

// Load parses the environment into a Config and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET must be set")
	}
	if cfg.GoogleCallbackURL == "" {
		cfg.GoogleCallbackURL = fmt.Sprintf("http://localhost:%d/auth/google/callback", cfg.Port)
	}

	return &cfg, nil
}
