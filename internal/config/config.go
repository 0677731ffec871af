// Package config loads arena configuration from YAML with environment
// overrides.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all arena configuration.
type Config struct {
	// Simulation settings
	Simulation SimulationConfig `yaml:"simulation"`

	// LLM configuration
	LLM LLMConfig `yaml:"llm"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// SimulationConfig configures market data and the replay engine.
type SimulationConfig struct {
	InitialBudget       float64 `yaml:"initial_budget"`
	NumRecords          int     `yaml:"num_records"`
	Seed                int64   `yaml:"seed"`
	MaxAttempts         int     `yaml:"max_attempts"`
	StagnationThreshold int     `yaml:"stagnation_threshold"`
	BidTimeoutMS        int     `yaml:"bid_timeout_ms"`
}

// LLMConfig configures the generative model client.
type LLMConfig struct {
	Provider string `yaml:"provider"` // mock, gemini
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Debug bool `yaml:"debug"`
}

// DefaultConfig returns the reference settings.
func DefaultConfig() *Config {
	return &Config{
		Simulation: SimulationConfig{
			InitialBudget:       1000.0,
			NumRecords:          1000,
			Seed:                1,
			MaxAttempts:         3,
			StagnationThreshold: 5,
			BidTimeoutMS:        1000,
		},
		LLM: LLMConfig{
			Provider: "mock",
			Model:    "gemini-2.5-flash",
		},
		Logging: LoggingConfig{
			Debug: false,
		},
	}
}

// Load reads configuration from a YAML file, falling back to defaults when
// the file does not exist, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if model := os.Getenv("ARENA_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if os.Getenv("ARENA_DEBUG") == "1" {
		c.Logging.Debug = true
	}
}
