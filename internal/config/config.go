// Package config loads the daemon's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"seriate/publish"
	"seriate/series"
)

// StoreConfig selects the record store backend.
type StoreConfig struct {
	Driver string `yaml:"driver"` // memory, sqlite or postgres
	Path   string `yaml:"path"`   // sqlite database file
	DSN    string `yaml:"dsn"`    // postgres connection string
}

// HorizonConfig is the reconciler's window policy, in whole months ahead
// of the reconciliation moment.
type HorizonConfig struct {
	InitialMonths int `yaml:"initial_months"`
	ExtendMonths  int `yaml:"extend_months"`
}

// Config is the daemon's top-level configuration.
type Config struct {
	// Listen is the HTTP listen address for the API and feeds.
	Listen string `yaml:"listen"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// MaintenanceCron schedules the horizon-extension sweep over active
	// series (robfig/cron syntax).
	MaintenanceCron string `yaml:"maintenance_cron"`

	Store   StoreConfig    `yaml:"store"`
	Publish publish.Config `yaml:"publish"`
	Horizon HorizonConfig  `yaml:"horizon"`
}

// Default returns the configuration a first run starts from.
func Default() *Config {
	return &Config{
		Listen:          "127.0.0.1:8074",
		LogLevel:        "info",
		MaintenanceCron: "0 3 * * *",
		Store:           StoreConfig{Driver: "sqlite", Path: "./seriate.db"},
		Publish:         publish.Config{Driver: "fs", Root: "./feeds"},
		Horizon: HorizonConfig{
			InitialMonths: series.DefaultConfig.InitialHorizonMonths,
			ExtendMonths:  series.DefaultConfig.ExtendHorizonMonths,
		},
	}
}

// Normalize fills missing or out-of-range values so partially filled
// configs still behave.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8074"
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		c.LogLevel = "info"
	}
	if c.MaintenanceCron == "" {
		c.MaintenanceCron = "0 3 * * *"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "sqlite"
	}
	if c.Store.Driver == "sqlite" && c.Store.Path == "" {
		c.Store.Path = "./seriate.db"
	}
	if c.Horizon.InitialMonths <= 0 {
		c.Horizon.InitialMonths = series.DefaultConfig.InitialHorizonMonths
	}
	if c.Horizon.ExtendMonths <= 0 {
		c.Horizon.ExtendMonths = series.DefaultConfig.ExtendHorizonMonths
	}
}

// Validate rejects configurations the daemon cannot start from.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory", "sqlite":
	case "postgres":
		if c.Store.DSN == "" {
			return errors.New("store: postgres driver needs a dsn")
		}
	default:
		return fmt.Errorf("store: unknown driver %q", c.Store.Driver)
	}
	switch c.Publish.Driver {
	case "", "fs", "memory", "s3":
	default:
		return fmt.Errorf("publish: unknown driver %q", c.Publish.Driver)
	}
	return nil
}

// SlogLevel maps the configured log level for handler construction.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SeriesConfig maps the horizon policy onto the reconciler's config.
func (c *Config) SeriesConfig() series.Config {
	return series.Config{
		InitialHorizonMonths: c.Horizon.InitialMonths,
		ExtendHorizonMonths:  c.Horizon.ExtendMonths,
	}
}

// Load reads the YAML config at path. A missing file is a first run: the
// defaults are written there (0600) and returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := Default()
			if err := Save(path, cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes the config atomically with owner-only permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".seriate-config-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
