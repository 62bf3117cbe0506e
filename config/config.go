/*
Package config loads server configuration from the environment.

PURPOSE:
  Every deployment knob lives in one struct parsed with caarlos0/env. A .env
  file is loaded first when present, so local development needs no exported
  variables. Command-line flags in cmd/server override the parsed values.

KEYS:
  TAX_PORT                 8080
  TAX_DB_PATH              taxation.db
  TAX_JWT_SECRET           dev secret (warned about at startup)
  TAX_JWT_EXPIRY           24h
  TAX_TIME_ZONE            Africa/Lagos
  TAX_CUTOFF_HOUR          16
  TAX_DEBT_DAYS            7
  TAX_EXEMPTION_OVERLAP    additive | union
  TAX_DEFAULT_DAILY_RATE   150.00
  TAX_CURRENCY             NGN
  TAX_POLICY_FILE          optional JSON policy; replaces the policy keys above
  TAX_SWEEP_INTERVAL       1h
  TAX_SWEEP_ENABLED        true
  TAX_LOG_LEVEL            info
  TAX_LOG_FORMAT           text | json
  TAX_ALLOWED_ORIGINS      comma-separated CORS origins

SEE ALSO:
  - factory/policy.go: Policy documents
  - cmd/server/main.go: Flags and startup
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/hassan3xl/taxation-backend/factory"
	"github.com/hassan3xl/taxation-backend/generic"
	"github.com/hassan3xl/taxation-backend/taxation"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// DevJWTSecret is used when TAX_JWT_SECRET is unset. Never deploy with it.
const DevJWTSecret = "dev-secret-change-in-production"

type Config struct {
	Port   int    `env:"TAX_PORT"    envDefault:"8080"`
	DBPath string `env:"TAX_DB_PATH" envDefault:"taxation.db"`

	JWTSecret string        `env:"TAX_JWT_SECRET" envDefault:"dev-secret-change-in-production"`
	JWTExpiry time.Duration `env:"TAX_JWT_EXPIRY" envDefault:"24h"`

	TimeZone         string `env:"TAX_TIME_ZONE"          envDefault:"Africa/Lagos"`
	CutoffHour       int    `env:"TAX_CUTOFF_HOUR"        envDefault:"16"`
	DebtDays         int64  `env:"TAX_DEBT_DAYS"          envDefault:"7"`
	ExemptionOverlap string `env:"TAX_EXEMPTION_OVERLAP"  envDefault:"additive"`
	DefaultDailyRate string `env:"TAX_DEFAULT_DAILY_RATE" envDefault:"150.00"`
	Currency         string `env:"TAX_CURRENCY"           envDefault:"NGN"`
	PolicyFile       string `env:"TAX_POLICY_FILE"`

	SweepInterval time.Duration `env:"TAX_SWEEP_INTERVAL" envDefault:"1h"`
	SweepEnabled  bool          `env:"TAX_SWEEP_ENABLED"  envDefault:"true"`

	LogLevel  string `env:"TAX_LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"TAX_LOG_FORMAT" envDefault:"text"`

	AllowedOrigins []string `env:"TAX_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173,http://localhost:8080"`
}

// Load reads the given .env files (missing files are skipped) and parses the
// environment. Variables already set in the process win over file values.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// Validate checks every field, including the policy the config describes.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return &generic.ValidationError{Field: "TAX_PORT", Message: fmt.Sprintf("invalid port %d", c.Port)}
	}
	if c.DBPath == "" {
		return &generic.ValidationError{Field: "TAX_DB_PATH", Message: "is required"}
	}
	if c.JWTSecret == "" {
		return &generic.ValidationError{Field: "TAX_JWT_SECRET", Message: "is required"}
	}
	if c.JWTExpiry <= 0 {
		return &generic.ValidationError{Field: "TAX_JWT_EXPIRY", Message: "must be positive"}
	}
	if c.SweepEnabled && c.SweepInterval <= 0 {
		return &generic.ValidationError{Field: "TAX_SWEEP_INTERVAL", Message: "must be positive"}
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return &generic.ValidationError{Field: "TAX_LOG_LEVEL", Message: err.Error()}
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return &generic.ValidationError{Field: "TAX_LOG_FORMAT", Message: "must be text or json"}
	}
	if _, err := c.Policy(); err != nil {
		return err
	}
	return nil
}

// UsesDevSecret reports whether the JWT secret is the built-in default.
func (c *Config) UsesDevSecret() bool { return c.JWTSecret == DevJWTSecret }

// Policy builds the validated tax policy, from TAX_POLICY_FILE when set.
func (c *Config) Policy() (*taxation.Policy, error) {
	f := factory.NewPolicyFactory()
	if c.PolicyFile != "" {
		return f.LoadFile(c.PolicyFile)
	}

	cutoff := c.CutoffHour
	debtDays := c.DebtDays
	return f.FromJSON(factory.PolicyJSON{
		ID:               "default",
		Currency:         c.Currency,
		DefaultDailyRate: c.DefaultDailyRate,
		TimeZone:         c.TimeZone,
		CutoffHour:       &cutoff,
		DebtDays:         &debtDays,
		ExemptionOverlap: c.ExemptionOverlap,
	})
}

// Logger builds a logrus logger with the configured level and formatter.
func (c *Config) Logger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	log := logrus.New()
	log.SetLevel(level)
	if c.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log, nil
}
