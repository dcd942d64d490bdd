// Package config provides configuration loading for civilsim.
// It supports loading from YAML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/civil-violence/internal/engine"
	"github.com/talgya/civil-violence/internal/logging"
)

// ErrInvalid is wrapped by every configuration validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config contains all civilsim settings.
type Config struct {
	// Model holds the construction inputs of every run.
	Model engine.Params `json:"model" yaml:"model"`

	Logging LoggingConfig `json:"logging" yaml:"logging"`
	Store   StoreConfig   `json:"store" yaml:"store"`
	API     APIConfig     `json:"api" yaml:"api"`
	Steward StewardConfig `json:"steward" yaml:"steward"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	// Level sets the log verbosity: "debug", "info" (default), "warn" or "error".
	Level string `json:"level" yaml:"level"`
}

// StoreConfig configures run persistence.
type StoreConfig struct {
	// Path is the SQLite database file. Empty disables persistence.
	Path string `json:"path" yaml:"path"`
}

// APIConfig configures the live HTTP API.
type APIConfig struct {
	Port int `json:"port" yaml:"port"`

	// AdminKey guards POST endpoints. Supports ${VAR} syntax for env vars.
	AdminKey string `json:"admin_key,omitempty" yaml:"admin_key,omitempty"`
}

// StewardConfig configures the external intervention steward.
type StewardConfig struct {
	// URL is the base URL of the civilsim API to observe.
	URL string `json:"url" yaml:"url"`

	// Interval between cycles.
	Interval time.Duration `json:"interval" yaml:"interval"`

	Threshold int    `json:"threshold" yaml:"threshold"` // active count that triggers action
	Cooldown  int    `json:"cooldown" yaml:"cooldown"`   // ticks between interventions
	Action    string `json:"action" yaml:"action"`       // jail_influencer or remove_influencer

	// MemoryPath persists cycle records. Empty keeps them in memory.
	MemoryPath string `json:"memory_path,omitempty" yaml:"memory_path,omitempty"`
}

// String implements fmt.Stringer to keep the admin key out of logs.
func (c APIConfig) String() string {
	key := ""
	if c.AdminKey != "" {
		key = "(set)"
	}
	return fmt.Sprintf("APIConfig{Port:%d, AdminKey:%s}", c.Port, key)
}

// Default returns a Config with the classic model parameters.
func Default() *Config {
	return &Config{
		Model:   engine.DefaultParams(),
		Logging: LoggingConfig{Level: "info"},
		API:     APIConfig{Port: 8080},
		Steward: StewardConfig{
			URL:       "http://localhost:8080",
			Interval:  5 * time.Second,
			Threshold: 50,
			Cooldown:  20,
			Action:    "jail_influencer",
		},
	}
}

// Load returns the defaults, or the file at path when path is non-empty,
// with environment overrides applied.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a specific YAML file. Keys the file
// omits keep their default values.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.API.AdminKey = expandEnvVars(cfg.API.AdminKey)
	cfg.Store.Path = expandEnvVars(cfg.Store.Path)
	cfg.Steward.URL = expandEnvVars(cfg.Steward.URL)

	return cfg, nil
}

// Validate checks the model parameters and the ambient settings.
func (c *Config) Validate() error {
	if err := c.Model.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.API.Port < 0 || c.API.Port > 65535 {
		return fmt.Errorf("%w: api port must be 0-65535, got %d", ErrInvalid, c.API.Port)
	}
	if c.Steward.Interval <= 0 {
		return fmt.Errorf("%w: steward interval must be positive, got %s", ErrInvalid, c.Steward.Interval)
	}
	return nil
}

// applyEnvOverrides applies CIVILSIM_* environment variables to the config.
// Malformed numeric values are reported rather than ignored.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("CIVILSIM_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("CIVILSIM_SEED: %w", err)
		}
		cfg.Model.Seed = &seed
	}

	if v := os.Getenv("CIVILSIM_MAX_ITER"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CIVILSIM_MAX_ITER: %w", err)
		}
		cfg.Model.MaxIter = n
	}

	if v := os.Getenv("CIVILSIM_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CIVILSIM_PORT: %w", err)
		}
		cfg.API.Port = n
	}

	if v := os.Getenv("CIVILSIM_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("CIVILSIM_DB"); v != "" {
		cfg.Store.Path = v
	}

	if v := os.Getenv("CIVILSIM_ADMIN_KEY"); v != "" {
		cfg.API.AdminKey = v
	}

	if v := os.Getenv("CIVILSIM_API_URL"); v != "" {
		cfg.Steward.URL = v
	}

	return nil
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
