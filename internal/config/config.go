// Package config loads process configuration from SPECTATE_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"spectate/server/internal/camera"
	"spectate/server/internal/cycle"
	"spectate/server/logging"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("config: invalid")

// Config is the full process configuration.
type Config struct {
	Addr           string        `env:"SPECTATE_ADDR" envDefault:":8080"`
	TickRate       int           `env:"SPECTATE_TICK_RATE" envDefault:"20"`
	SyncRate       float64       `env:"SPECTATE_SYNC_RATE" envDefault:"5"`
	UpdateInterval time.Duration `env:"SPECTATE_UPDATE_INTERVAL" envDefault:"50ms"`
	CommandLimit   int           `env:"SPECTATE_COMMAND_LIMIT" envDefault:"32"`

	DBPath  string `env:"SPECTATE_DB_PATH" envDefault:"spectate.db"`
	WorldID string `env:"SPECTATE_WORLD_ID" envDefault:"overworld"`

	LogSinks    []string `env:"SPECTATE_LOG_SINKS" envDefault:"console" envSeparator:","`
	LogLevel    string   `env:"SPECTATE_LOG_LEVEL" envDefault:"info"`
	LogJSONPath string   `env:"SPECTATE_LOG_JSON_PATH"`
	LogColor    bool     `env:"SPECTATE_LOG_COLOR"`

	// LogCategories sets per-category levels, e.g. "spectate=debug,network=warn".
	LogCategories []string `env:"SPECTATE_LOG_CATEGORIES" envSeparator:","`

	DefaultDwell        time.Duration `env:"SPECTATE_DEFAULT_DWELL" envDefault:"10s"`
	AutoExcludePrefixes []string      `env:"SPECTATE_AUTO_EXCLUDE_PREFIXES" envSeparator:","`
	AutoExcludeSuffixes []string      `env:"SPECTATE_AUTO_EXCLUDE_SUFFIXES" envSeparator:","`

	// Camera holds default parameter overrides, e.g. "distance=12,rotationSpeed=30".
	Camera map[string]float64 `env:"SPECTATE_CAMERA" envSeparator:"," envKeyValSeparator:"="`

	EnablePprof bool   `env:"SPECTATE_ENABLE_PPROF"`
	ClientDir   string `env:"SPECTATE_CLIENT_DIR"`
}

// Load parses the environment and validates the result.
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

// Validate checks ranges that the environment parser cannot express.
func (c Config) Validate() error {
	if c.TickRate <= 0 {
		return fmt.Errorf("%w: tick rate %d", ErrInvalidConfig, c.TickRate)
	}
	if c.SyncRate <= 0 {
		return fmt.Errorf("%w: sync rate %v", ErrInvalidConfig, c.SyncRate)
	}
	if c.UpdateInterval <= 0 {
		return fmt.Errorf("%w: update interval %s", ErrInvalidConfig, c.UpdateInterval)
	}
	if c.DefaultDwell < time.Second {
		return fmt.Errorf("%w: default dwell %s below one second", ErrInvalidConfig, c.DefaultDwell)
	}
	if _, ok := logging.ParseSeverity(strings.ToLower(c.LogLevel)); !ok {
		return fmt.Errorf("%w: log level %q", ErrInvalidConfig, c.LogLevel)
	}
	if _, err := logging.ParseCategorySeverity(c.LogCategories); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := c.Logging().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := c.CameraDefaults(); err != nil {
		return err
	}
	return nil
}

// CameraDefaults applies the configured overrides to the built-in defaults.
// Overrides are strict: an out-of-range value is an error, not a clamp.
func (c Config) CameraDefaults() (camera.Parameters, error) {
	params := camera.DefaultParameters()
	names := make([]string, 0, len(c.Camera))
	for name := range c.Camera {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := params.Set(strings.TrimSpace(name), c.Camera[name]); err != nil {
			return camera.Parameters{}, fmt.Errorf("%w: SPECTATE_CAMERA: %v", ErrInvalidConfig, err)
		}
	}
	return params, nil
}

// MembershipRule builds the auto-membership exclusion rule.
func (c Config) MembershipRule() cycle.MembershipRule {
	return cycle.MembershipRule{
		ExcludePrefixes: nonEmpty(c.AutoExcludePrefixes),
		ExcludeSuffixes: nonEmpty(c.AutoExcludeSuffixes),
	}
}

// Logging maps the log settings onto the router configuration.
func (c Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.EnabledSinks = nonEmpty(c.LogSinks)
	if severity, ok := logging.ParseSeverity(strings.ToLower(c.LogLevel)); ok {
		cfg.MinimumSeverity = severity
	}
	cfg.CategorySeverity, _ = logging.ParseCategorySeverity(c.LogCategories)
	cfg.JSON.FilePath = c.LogJSONPath
	cfg.Console.UseColor = c.LogColor
	cfg.Fields = map[string]any{"world": c.WorldID}
	return cfg
}

func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
