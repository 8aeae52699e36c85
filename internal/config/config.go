// Package config loads host configuration from an optional YAML file with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/talgya/tilefield/internal/terrain"
)

// Config is the full host configuration.
type Config struct {
	Gen terrain.GenConfig `yaml:"generation"`

	Seed         int64   `yaml:"seed"` // Initial map seed
	Spacing      float64 `yaml:"spacing"`
	DBPath       string  `yaml:"db_path"`
	APIPort      int     `yaml:"api_port"`
	AdminKey     string  `yaml:"admin_key"`
	RandomOrgKey string  `yaml:"random_org_key"`
	LogLevel     string  `yaml:"log_level"`
	TrustProxy   bool    `yaml:"trust_proxy"` // Rate-limit by X-Forwarded-For
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Gen:      terrain.DefaultGenConfig(),
		Seed:     42,
		Spacing:  1,
		DBPath:   "data/tilefield.db",
		APIPort:  8080,
		LogLevel: "info",
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			slog.Debug("config file not found, using defaults", "path", path)
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("TILEFIELD_SEED"); v != "" {
		seed, err := ParseSeed(v)
		if err != nil {
			return fmt.Errorf("TILEFIELD_SEED: %w", err)
		}
		c.Seed = seed
	}
	if v := os.Getenv("TILEFIELD_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TILEFIELD_PORT: %w", err)
		}
		c.APIPort = port
	}
	if v := os.Getenv("TILEFIELD_TRUST_PROXY"); v != "" {
		trust, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("TILEFIELD_TRUST_PROXY: %w", err)
		}
		c.TrustProxy = trust
	}
	c.DBPath = envOrDefault("TILEFIELD_DB", c.DBPath)
	c.AdminKey = envOrDefault("TILEFIELD_ADMIN_KEY", c.AdminKey)
	c.RandomOrgKey = envOrDefault("RANDOM_ORG_KEY", c.RandomOrgKey)
	c.LogLevel = envOrDefault("TILEFIELD_LOG_LEVEL", c.LogLevel)
	return nil
}

// Validate checks the host settings and the generation parameters.
func (c Config) Validate() error {
	var errs []error
	if err := c.Gen.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.APIPort < 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("api_port %d out of range", c.APIPort))
	}
	if c.Spacing <= 0 {
		errs = append(errs, fmt.Errorf("spacing must be positive, got %v", c.Spacing))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ParseSeed accepts an integer seed, tolerating surrounding whitespace as
// typed into a text field.
func ParseSeed(s string) (int64, error) {
	seed, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid seed %q", s)
	}
	return seed, nil
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
