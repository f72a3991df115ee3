package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/iptdesk/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-d string       data source name
//	-driver string  store driver, sqlite or pgx
//	-l string       log level
//	-ttl int        remembered-session lifetime in hours, 0 never expires
//
// args are filtered with flagx.FilterArgs so flags owned by other stages,
// such as -c, do not fail parsing.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-d", "-driver", "-l", "-ttl"})

	fs := flag.NewFlagSet("iptdesk", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.DSN, "d", cfg.DSN, "data source name")
	fs.StringVar(&cfg.DBDriver, "driver", cfg.DBDriver, "store driver (sqlite|pgx)")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level (debug|info|warn|error)")
	ttl := fs.Int("ttl", int(cfg.SessionTTL/time.Hour), "remembered session lifetime in hours")

	if err := fs.Parse(args); err != nil {
		return err
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "ttl" {
			cfg.SessionTTL = time.Duration(*ttl) * time.Hour
		}
	})
	return nil
}
