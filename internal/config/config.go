// Package config resolves runtime settings for the iptdesk console.
//
// Sources are applied in order, later ones overriding earlier ones:
// defaults, the .env file and process environment, a JSON file named with
// -c/-config, and finally command-line flags.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/iptdesk/internal/kvstore"
)

// Config holds runtime settings.
//
// Fields:
//   - DBDriver: database/sql driver of the key/value store ("sqlite" or "pgx").
//   - DSN: data source name passed to the driver.
//   - SessionSecret: HMAC key signing the remembered-session token.
//   - SessionTTL: lifetime of the remembered-session token; 0 never expires.
//   - LogLevel: debug, info, warn or error.
//   - AllowLegacyRecall: accept unsigned remembered sessions from older versions.
type Config struct {
	DBDriver          string
	DSN               string
	SessionSecret     string
	SessionTTL        time.Duration
	LogLevel          string
	AllowLegacyRecall bool
}

// DotEnvFile is read by the environment stage when present.
const DotEnvFile = ".env"

// LoadDefaults populates c with defaults for a local single-user setup.
func (c *Config) LoadDefaults() {
	c.DBDriver = kvstore.DriverSQLite
	c.DSN = "ipt_demo.db"
	c.SessionSecret = "ipt-demo-local-secret"
	c.SessionTTL = 30 * 24 * time.Hour
	c.LogLevel = "info"
	c.AllowLegacyRecall = true
}

// Validate reports settings the application cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if _, err := kvstore.DialectFor(c.DBDriver); err != nil {
		errs = append(errs, err)
	}
	if c.DSN == "" {
		errs = append(errs, errors.New("dsn is empty"))
	}
	if c.SessionSecret == "" {
		errs = append(errs, errors.New("session secret is empty"))
	}
	if c.SessionTTL < 0 {
		errs = append(errs, fmt.Errorf("negative session ttl %s", c.SessionTTL))
	}
	return errors.Join(errs...)
}

// LoadConfig builds a Config from defaults and every configured source.
// args are the command-line arguments without the program name.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseEnv(cfg, DotEnvFile); err != nil {
		return nil, err
	}
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
