package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/artpar/convoy/internal/core/validation"
	"github.com/artpar/convoy/internal/shell/logging"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all tool settings. The deployments themselves live in the
// manifest.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Manifest string         `mapstructure:"manifest" validate:"required"`
	Marathon MarathonConfig `mapstructure:"marathon"`
	Poll     PollConfig     `mapstructure:"poll"`
	Parallel int            `mapstructure:"parallel" validate:"min=1"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Verbose  bool           `mapstructure:"verbose"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

// MarathonConfig is shared by every Marathon client.
type MarathonConfig struct {
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	Proxy    string        `mapstructure:"proxy" validate:"omitempty,url"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// PollConfig controls convergence polling.
type PollConfig struct {
	Interval   time.Duration `mapstructure:"interval" validate:"gt=0"`
	MaxRetries int           `mapstructure:"max_retries" validate:"min=1"`
}

// MetricsConfig holds the optional metrics textfile.
type MetricsConfig struct {
	File string `mapstructure:"file"`
}

// =============================================================================
// Config Loading
// =============================================================================

// flagKeys maps command line flags to settings keys.
var flagKeys = map[string]string{
	"file":         "manifest",
	"parallel":     "parallel",
	"metrics-file": "metrics.file",
	"verbose":      "verbose",
}

// LoadConfig loads settings from defaults, the optional file, CONVOY_*
// environment variables and flags, in increasing order of precedence.
func LoadConfig(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("manifest", "convoy.yaml")
	v.SetDefault("marathon.username", "")
	v.SetDefault("marathon.password", "")
	v.SetDefault("marathon.proxy", "")
	v.SetDefault("marathon.timeout", "5s")
	v.SetDefault("poll.interval", "1s")
	v.SetDefault("poll.max_retries", 10)
	v.SetDefault("parallel", 1)
	v.SetDefault("metrics.file", "")
	v.SetDefault("verbose", false)

	// Load from file if provided; an explicit path must exist
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var parseErr viper.ConfigParseError
			if errors.As(err, &parseErr) {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("CONVOY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	// Unmarshal config
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Verbose {
		cfg.Log.Level = "debug"
	}

	if err := validation.StructProblems(cfg).Err("settings", ""); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format.
func SetupLogger(cfg *Config, w io.Writer) *slog.Logger {
	return logging.New(w, logging.ParseLevel(cfg.Log.Level), cfg.Log.Format)
}
