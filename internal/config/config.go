package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the application configuration, loaded from the environment.
type Config struct {
	Port         int    `env:"PORT" envDefault:"3000"`
	Env          string `env:"APP_ENV" envDefault:"development"`
	DatabasePath string `env:"DATABASE_PATH" envDefault:"./scom.db"`
	StaticDir    string `env:"STATIC_DIR" envDefault:"./frontend"`
	CORSOrigin   string `env:"CORS_ORIGIN" envDefault:"http://localhost:3000"`

	HTTPSEnabled bool   `env:"HTTPS_ENABLED" envDefault:"false"`
	HTTPSCert    string `env:"HTTPS_CERT"`
	HTTPSKey     string `env:"HTTPS_KEY"`

	SessionTTL        time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	SessionCookieName string        `env:"SESSION_COOKIE_NAME" envDefault:"sid"`
	SessionSweepEvery time.Duration `env:"SESSION_SWEEP_EVERY" envDefault:"10m"`

	// Distinct bcrypt costs for self-registration and admin-initiated writes.
	BcryptCost      int `env:"BCRYPT_COST" envDefault:"10"`
	BcryptCostAdmin int `env:"BCRYPT_COST_ADMIN" envDefault:"12"`

	APILimitWindow   time.Duration `env:"API_LIMIT_WINDOW" envDefault:"1m"`
	APILimitMax      int           `env:"API_LIMIT_MAX" envDefault:"120"`
	LoginLimitWindow time.Duration `env:"LOGIN_LIMIT_WINDOW" envDefault:"15m"`
	LoginLimitMax    int           `env:"LOGIN_LIMIT_MAX" envDefault:"10"`
}

// Load reads configuration from the environment, applying any .env file first.
func Load() (*Config, error) {
	// A missing .env file is not an error; the environment may be set directly.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.HTTPSEnabled && (cfg.HTTPSCert == "" || cfg.HTTPSKey == "") {
		return nil, fmt.Errorf("HTTPS_ENABLED requires HTTPS_CERT and HTTPS_KEY")
	}

	return cfg, nil
}

// IsProduction reports whether the app runs with production settings
// (controls the Secure flag on the session cookie).
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
