package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dshills/QuantaOpt/internal/feature"
	"github.com/dshills/QuantaOpt/internal/log"
	"github.com/dshills/QuantaOpt/internal/sql/planner"
)

// Config represents the complete tool configuration.
type Config struct {
	// Logging configuration
	Log log.Config `json:"log"`

	// Catalog source configuration
	Catalog CatalogConfig `json:"catalog"`

	// Optimizer configuration
	Optimizer OptimizerConfig `json:"optimizer"`

	// Features overrides feature flags by name.
	Features map[string]bool `json:"features"`
}

// CatalogConfig selects where table definitions come from. File and DSN are
// mutually exclusive; neither means an empty catalog.
type CatalogConfig struct {
	File    string   `json:"file"`
	DSN     string   `json:"dsn"`
	Schemas []string `json:"schemas"`
}

// OptimizerConfig represents rule driver configuration.
type OptimizerConfig struct {
	ExploitConstraints bool     `json:"exploit_constraints"`
	MaxIterations      int      `json:"max_iterations"`
	Rules              []string `json:"rules"` // empty means every rule
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Log: log.DefaultConfig(),
		Catalog: CatalogConfig{
			Schemas: []string{"public"},
		},
		Optimizer: OptimizerConfig{
			ExploitConstraints: false,
			MaxIterations:      planner.DefaultMaxIterations,
		},
		Features: map[string]bool{},
	}
}

// LoadFromFile loads configuration from a JSON file. Fields missing from the
// file keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// SaveToFile writes the configuration as indented JSON, creating parent
// directories as needed.
func (c *Config) SaveToFile(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %s", c.Log.Format)
	}

	if c.Catalog.File != "" && c.Catalog.DSN != "" {
		return fmt.Errorf("catalog file and dsn are mutually exclusive")
	}

	if c.Optimizer.MaxIterations < 0 {
		return fmt.Errorf("max iterations cannot be negative")
	}
	if _, err := planner.RulesByName(c.Optimizer.Rules...); err != nil {
		return fmt.Errorf("invalid optimizer rules: %w", err)
	}

	if err := feature.NewManager().Apply(c.Features); err != nil {
		return fmt.Errorf("invalid features: %w", err)
	}

	return nil
}

// ApplyFeatures sets the configured feature flag overrides on flags.
func (c *Config) ApplyFeatures(flags *feature.Manager) error {
	return flags.Apply(c.Features)
}

// Planner returns the optimizer configuration and rule list for one pass.
// Feature flags are applied to flags first; an explicit rule list takes
// precedence over the flags that disable rules.
func (c *Config) Planner(flags *feature.Manager) (planner.Config, []planner.OptimizationRule, error) {
	if err := c.ApplyFeatures(flags); err != nil {
		return planner.Config{}, nil, err
	}

	cfg := planner.ConfigFromFlags(flags)
	if c.Optimizer.ExploitConstraints {
		cfg.ExploitConstraints = true
	}
	if c.Optimizer.MaxIterations > 0 {
		cfg.MaxIterations = c.Optimizer.MaxIterations
	}

	if len(c.Optimizer.Rules) == 0 {
		return cfg, planner.RulesFromFlags(flags), nil
	}
	rules, err := planner.RulesByName(c.Optimizer.Rules...)
	if err != nil {
		return planner.Config{}, nil, err
	}
	return cfg, rules, nil
}
