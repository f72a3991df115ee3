package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables read by parseEnv.
const (
	EnvDBDriver      = "IPT_DB_DRIVER"
	EnvDSN           = "IPT_DB_DSN"
	EnvSessionSecret = "IPT_SESSION_SECRET"
	EnvSessionTTL    = "IPT_SESSION_TTL"
	EnvLogLevel      = "IPT_LOG_LEVEL"
	EnvLegacyRecall  = "IPT_LEGACY_RECALL"
)

// parseEnv overlays cfg with environment variables. Values from dotenv are
// used for variables the process environment does not set. A missing
// dotenv file is ignored.
func parseEnv(cfg *Config, dotenv string) error {
	file := map[string]string{}
	if dotenv != "" {
		m, err := godotenv.Read(dotenv)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("read %s: %w", dotenv, err)
		}
		if m != nil {
			file = m
		}
	}

	get := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := file[key]
		return v, ok
	}

	if v, ok := get(EnvDBDriver); ok {
		cfg.DBDriver = v
	}
	if v, ok := get(EnvDSN); ok {
		cfg.DSN = v
	}
	if v, ok := get(EnvSessionSecret); ok {
		cfg.SessionSecret = v
	}
	if v, ok := get(EnvLogLevel); ok {
		cfg.LogLevel = v
	}
	if v, ok := get(EnvSessionTTL); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvSessionTTL, err)
		}
		cfg.SessionTTL = d
	}
	if v, ok := get(EnvLegacyRecall); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvLegacyRecall, err)
		}
		cfg.AllowLegacyRecall = b
	}
	return nil
}
