// Package config loads loci configuration from YAML or TOML files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Store adapters understood by the platform factory.
const (
	AdapterFS     = "fs"
	AdapterSQLite = "sqlite"
	AdapterMemory = "memory"
)

// Config represents the complete loci configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" toml:"store"`
	Session SessionConfig `yaml:"session" toml:"session"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
}

// StoreConfig selects and configures the persistence engine.
type StoreConfig struct {
	Adapter   string `yaml:"adapter" toml:"adapter"`
	Path      string `yaml:"path" toml:"path"`
	SystemDir string `yaml:"system_dir" toml:"system_dir"`
	ReadOnly  bool   `yaml:"read_only" toml:"read_only"`
	// DevSafety re-roots the store under the temp dir when running through
	// `go run` or `go test`. Unset means enabled.
	DevSafety *bool `yaml:"dev_safety" toml:"dev_safety"`
}

// SessionConfig holds session buffer sizes. Zero means the session default.
type SessionConfig struct {
	InboxBuffer int `yaml:"inbox_buffer" toml:"inbox_buffer"`
	EventBuffer int `yaml:"event_buffer" toml:"event_buffer"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Adapter: AdapterFS,
			Path:    ".",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DevSafetyEnabled reports whether the dev sandbox applies.
func (s StoreConfig) DevSafetyEnabled() bool {
	return s.DevSafety == nil || *s.DevSafety
}

// Load reads a configuration file from the given path. The format follows
// the extension: .toml for TOML, anything else is parsed as YAML.
// Environment variables in the format ${VAR_NAME} are expanded. Fields the
// file leaves out keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. Unset variables expand to an empty string.
func expandEnvVars(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envPattern.FindStringSubmatch(match)[1])
	})
}

// Validate checks that the configuration is usable. It returns the first
// failure encountered.
func (c *Config) Validate() error {
	switch c.Store.Adapter {
	case AdapterFS, AdapterSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the %s adapter", c.Store.Adapter)
		}
	case AdapterMemory:
		if c.Store.ReadOnly {
			return fmt.Errorf("store.read_only makes no sense for the memory adapter")
		}
	default:
		return fmt.Errorf("store.adapter %q is not one of fs, sqlite, memory", c.Store.Adapter)
	}

	if c.Session.InboxBuffer < 0 {
		return fmt.Errorf("session.inbox_buffer cannot be negative")
	}
	if c.Session.EventBuffer < 0 {
		return fmt.Errorf("session.event_buffer cannot be negative")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of text, json", c.Logging.Format)
	}
	return nil
}
