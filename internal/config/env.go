// Package config loads tally's environment configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config is the environment-level configuration. Command-line flags
// override these values.
type Config struct {
	// DB is the SQLite database path. Empty means DefaultDBPath.
	DB string `env:"TALLY_DB"`

	// TZ is an IANA zone name for calendar dates. Empty means local time.
	TZ string `env:"TALLY_TZ"`

	// Format is the output format: text or json.
	Format string `env:"TALLY_FORMAT" envDefault:"text"`

	// Verbose enables debug logging on stderr.
	Verbose bool `env:"TALLY_VERBOSE"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses the TALLY_* environment variables and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the format and time zone.
func (c Config) Validate() error {
	if c.Format != FormatText && c.Format != FormatJSON {
		return fmt.Errorf("invalid format %q: must be text or json", c.Format)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves TZ.
func (c Config) Location() (*time.Location, error) {
	if c.TZ == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.TZ)
	if err != nil {
		return nil, fmt.Errorf("invalid time zone %q: %w", c.TZ, err)
	}
	return loc, nil
}

// DBPath returns DB, or DefaultDBPath when unset.
func (c Config) DBPath() (string, error) {
	if c.DB != "" {
		return c.DB, nil
	}
	return DefaultDBPath()
}

// DefaultDBPath is tally.db under the user's config directory.
func DefaultDBPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "tally", "tally.db"), nil
}
