package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/iptdesk/internal/flagx"
	"github.com/dmitrijs2005/iptdesk/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations
// may be written as strings like "72h" or as integer nanoseconds. Absent
// fields leave the current value in place.
type JsonConfig struct {
	DBDriver          string          `json:"db_driver"`
	DSN               string          `json:"dsn"`
	SessionSecret     string          `json:"session_secret"`
	SessionTTL        *timex.Duration `json:"session_ttl"`
	LogLevel          string          `json:"log_level"`
	AllowLegacyRecall *bool           `json:"allow_legacy_recall"`
}

// parseJson overlays cfg with the JSON file named by -c or -config in args.
// Without such a flag nothing happens.
func parseJson(cfg *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	if jc.DBDriver != "" {
		cfg.DBDriver = jc.DBDriver
	}
	if jc.DSN != "" {
		cfg.DSN = jc.DSN
	}
	if jc.SessionSecret != "" {
		cfg.SessionSecret = jc.SessionSecret
	}
	if jc.SessionTTL != nil {
		cfg.SessionTTL = jc.SessionTTL.Duration
	}
	if jc.LogLevel != "" {
		cfg.LogLevel = jc.LogLevel
	}
	if jc.AllowLegacyRecall != nil {
		cfg.AllowLegacyRecall = *jc.AllowLegacyRecall
	}
	return nil
}
