// Package config loads server settings from the environment.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
)

// Config holds every server setting. Field tags name the environment variables.
type Config struct {
	Addr               string `env:"MARQUEE_ADDR" envDefault:":8080"`
	Env                string `env:"MARQUEE_ENV" envDefault:"development"`
	DBPath             string `env:"MARQUEE_DB_PATH" envDefault:"marquee.db"`
	StaticDir          string `env:"MARQUEE_STATIC_DIR" envDefault:"static"`
	CSRFKeyHex         string `env:"MARQUEE_CSRF_KEY"`
	RateLimitPerSecond int    `env:"MARQUEE_RATE_LIMIT_PER_SECOND" envDefault:"10"`
	SlowRequestMs      int    `env:"MARQUEE_SLOW_REQUEST_MS" envDefault:"200"`
	SlowQueryMs        int    `env:"MARQUEE_SLOW_QUERY_MS" envDefault:"50"`
	// PolicyVersion identifies the cookie policy text. Decisions stored under a
	// different version are reported as absent so visitors are asked again.
	PolicyVersion       string `env:"MARQUEE_CONSENT_POLICY_VERSION" envDefault:"2026-01"`
	AnalyticsPropertyID string `env:"MARQUEE_ANALYTICS_PROPERTY_ID"`
	// SiteHost scopes cookie expiry on revoke. Empty means the request host.
	SiteHost       string   `env:"MARQUEE_SITE_HOST"`
	TrustedOrigins []string `env:"MARQUEE_TRUSTED_ORIGINS" envSeparator:"," envDefault:"localhost:8080,127.0.0.1:8080"`
}

// IsProduction reports whether the server runs in production mode.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// Load parses the environment and validates the result.
// PRE: none
// POST: Returns a validated Config or an error naming the bad variable
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field rules.
func (c Config) Validate() error {
	if c.RateLimitPerSecond <= 0 {
		return errors.New("MARQUEE_RATE_LIMIT_PER_SECOND must be positive")
	}
	if c.PolicyVersion == "" {
		return errors.New("MARQUEE_CONSENT_POLICY_VERSION must not be empty")
	}
	if c.CSRFKeyHex != "" {
		if _, err := decodeCSRFKey(c.CSRFKeyHex); err != nil {
			return err
		}
	} else if c.IsProduction() {
		return errors.New("MARQUEE_CSRF_KEY is required in production")
	}
	return nil
}

// CSRFKey returns the 32-byte CSRF secret. Outside production a missing key is
// replaced by a random one, so form tokens do not survive a restart.
func (c Config) CSRFKey() ([]byte, error) {
	if c.CSRFKeyHex != "" {
		return decodeCSRFKey(c.CSRFKeyHex)
	}
	if c.IsProduction() {
		return nil, errors.New("MARQUEE_CSRF_KEY is required in production")
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate CSRF key: %w", err)
	}
	slog.Warn("csrf_key_random", "hint", "set MARQUEE_CSRF_KEY so tokens survive restarts")
	return key, nil
}

func decodeCSRFKey(h string) ([]byte, error) {
	key, err := hex.DecodeString(h)
	if err != nil || len(key) != 32 {
		return nil, errors.New("MARQUEE_CSRF_KEY must be 64 hex characters (32 bytes)")
	}
	return key, nil
}
