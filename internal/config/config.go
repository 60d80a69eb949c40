// Package config provides configuration loading for agentsim.
// Order: defaults -> YAML file -> AGENTSIM_* environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no config file is given and it exists.
const DefaultPath = "agentsim.yaml"

// Config contains all agentsim settings.
type Config struct {
	// Scenario names the world to build (see `agentsim scenarios`).
	Scenario string `yaml:"scenario"`
	// Seed seeds the random source; 0 draws a random seed.
	Seed int64 `yaml:"seed"`
	// MaxSteps stops the run after this many steps (0 = until stopped).
	MaxSteps uint64 `yaml:"max_steps"`
	// Delay pauses the stepping goroutine after every step.
	Delay time.Duration `yaml:"delay"`

	// Properties override scenario simulation properties.
	Properties map[string]float64 `yaml:"properties"`

	Logging LoggingConfig `yaml:"logging"`
	API     APIConfig     `yaml:"api"`
	Journal JournalConfig `yaml:"journal"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	// Level is "trace", "debug", "info" (default), "warn" or "error".
	Level string `yaml:"level"`
}

// APIConfig configures the HTTP API.
type APIConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
	// AdminKey is the bearer token for POST endpoints. Empty disables them.
	AdminKey string `yaml:"admin_key"`
	// RatePerMinute caps requests per client IP on every endpoint.
	RatePerMinute int `yaml:"rate_per_minute"`
}

// JournalConfig configures the SQLite run journal.
type JournalConfig struct {
	// Path to the database file. Empty disables the journal.
	Path string `yaml:"path"`
	// FlushEvery is how many steps pass between journal flushes.
	FlushEvery uint64 `yaml:"flush_every"`
}

// String keeps the admin key out of logs.
func (c APIConfig) String() string {
	key := ""
	if c.AdminKey != "" {
		key = "(set)"
	}
	return fmt.Sprintf("APIConfig{Enabled:%t, Port:%d, AdminKey:%s, Rate:%d/min}", c.Enabled, c.Port, key, c.RatePerMinute)
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Scenario: "walkers",
		Seed:     42,
		Delay:    100 * time.Millisecond,
		Logging:  LoggingConfig{Level: "info"},
		API: APIConfig{
			Enabled:       false,
			Port:          8080,
			RatePerMinute: 120,
		},
		Journal: JournalConfig{
			Path:       "",
			FlushEvery: 100,
		},
	}
}

// Load reads path (or DefaultPath when path is empty and the file exists),
// then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat(DefaultPath); err == nil {
			path = DefaultPath
		}
	}
	if path != "" {
		fileCfg, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		cfg = fileCfg
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a specific YAML file on top of the
// defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.API.AdminKey = os.ExpandEnv(cfg.API.AdminKey)
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Scenario == "" {
		return fmt.Errorf("scenario must be set")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay must be non-negative, got %v", c.Delay)
	}
	if c.API.Enabled && (c.API.Port <= 0 || c.API.Port > 65535) {
		return fmt.Errorf("invalid api port: %d", c.API.Port)
	}
	if c.API.RatePerMinute < 0 {
		return fmt.Errorf("rate_per_minute must be non-negative, got %d", c.API.RatePerMinute)
	}
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: trace, debug, info, warn, error)", c.Logging.Level)
	}
	return nil
}

// Marshal renders the config as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// applyEnvOverrides applies AGENTSIM_* environment variables.
func applyEnvOverrides(c *Config) error {
	if v := os.Getenv("AGENTSIM_SCENARIO"); v != "" {
		c.Scenario = v
	}
	if v := os.Getenv("AGENTSIM_SEED"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("AGENTSIM_SEED: %w", err)
		}
		c.Seed = n
	}
	if v := os.Getenv("AGENTSIM_MAX_STEPS"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("AGENTSIM_MAX_STEPS: %w", err)
		}
		c.MaxSteps = n
	}
	if v := os.Getenv("AGENTSIM_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("AGENTSIM_DELAY: %w", err)
		}
		c.Delay = d
	}
	if v := os.Getenv("AGENTSIM_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("AGENTSIM_API_ENABLED"); v != "" {
		c.API.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("AGENTSIM_API_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("AGENTSIM_API_PORT: %w", err)
		}
		c.API.Port = n
	}
	if v := os.Getenv("AGENTSIM_ADMIN_KEY"); v != "" {
		c.API.AdminKey = v
	}
	if v := os.Getenv("AGENTSIM_JOURNAL"); v != "" {
		c.Journal.Path = v
	}
	return nil
}
