// Package config loads runtime settings from an optional YAML file, a .env
// file and STREAMSYNTH_* environment variables, in increasing priority.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"streamsynth/pkg/logger"
	"streamsynth/pkg/utils"
)

// DefaultFile is read when no explicit path is given and it exists.
const DefaultFile = "streamsynth.yaml"

const defaultDashboardInterval = time.Second

type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Spillover SpilloverConfig `yaml:"spillover"`
	Admin     AdminConfig     `yaml:"admin"`
	History   HistoryConfig   `yaml:"history"`
	Dashboard DashboardConfig `yaml:"dashboard"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type SpilloverConfig struct {
	// Dir defaults to .streamsynth-spillover in the working directory.
	Dir string `yaml:"dir"`
}

type AdminConfig struct {
	// Addr enables the admin API when set, e.g. ":8080".
	Addr string `yaml:"addr"`
}

type HistoryConfig struct {
	// DB enables run history in this SQLite file when set.
	DB string `yaml:"db"`
}

type DashboardConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Interval string `yaml:"interval"`
}

// IntervalDuration returns the parsed refresh interval.
func (d DashboardConfig) IntervalDuration() time.Duration {
	return utils.ParseDuration(d.Interval, defaultDashboardInterval)
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Logging:   LoggingConfig{Level: "info", Format: logger.FormatConsole},
		Dashboard: DashboardConfig{Interval: defaultDashboardInterval.String()},
	}
}

// Load builds the effective configuration. path may be empty, in which case
// DefaultFile is used if present. A .env file in the working directory is
// loaded without overriding variables that are already set.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(errors.Cause(err)) {
		return nil, errors.Wrap(err, "load .env")
	}

	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse %s", path)
		}
	case os.IsNotExist(err) && !explicit:
	default:
		return nil, errors.Wrap(err, "read config file")
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from STREAMSYNTH_* variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("STREAMSYNTH_LOG_LEVEL"); ok {
		c.Logging.Level = v
	}
	if v, ok := lookup("STREAMSYNTH_LOG_FORMAT"); ok {
		c.Logging.Format = v
	}
	if v, ok := lookup("STREAMSYNTH_SPILLOVER_DIR"); ok {
		c.Spillover.Dir = v
	}
	if v, ok := lookup("STREAMSYNTH_ADMIN_ADDR"); ok {
		c.Admin.Addr = v
	}
	if v, ok := lookup("STREAMSYNTH_HISTORY_DB"); ok {
		c.History.DB = v
	}
	if v, ok := lookup("STREAMSYNTH_DASHBOARD"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("STREAMSYNTH_DASHBOARD: %w", err)
		}
		c.Dashboard.Enabled = b
	}
	return nil
}

// Validate fills defaults and rejects invalid values.
func (c *Config) Validate() error {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	c.Logging.Format = strings.ToLower(c.Logging.Format)
	switch c.Logging.Format {
	case "":
		c.Logging.Format = logger.FormatConsole
	case logger.FormatConsole, logger.FormatJSON:
	default:
		return fmt.Errorf("invalid log format %q (want %s or %s)", c.Logging.Format, logger.FormatConsole, logger.FormatJSON)
	}

	if c.Dashboard.Interval == "" {
		c.Dashboard.Interval = defaultDashboardInterval.String()
	}
	d, err := time.ParseDuration(c.Dashboard.Interval)
	if err != nil {
		return fmt.Errorf("invalid dashboard interval %q: %w", c.Dashboard.Interval, err)
	}
	if d <= 0 {
		return fmt.Errorf("dashboard interval must be positive, got %s", d)
	}
	return nil
}
