package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"lessonline/internal/vector"
)

// Config models lessonline.yml.
type Config struct {
	Orchestration struct {
		Dims                int     `yaml:"dims"`
		GapThreshold        float64 `yaml:"gap_threshold"`
		AutoCompleteCeiling int     `yaml:"auto_complete_ceiling"`
	} `yaml:"orchestration"`
	Defaults struct {
		TimeBudget int    `yaml:"time_budget"`
		Start      string `yaml:"start"`
		Goal       string `yaml:"goal"`
	} `yaml:"defaults"`
	Library struct {
		Path string `yaml:"path"`
	} `yaml:"library"`
}

// Load reads and validates config from workspace. A missing file falls back
// to the defaults.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Orchestration.Dims <= 0 {
		return fmt.Errorf("config.orchestration.dims must be positive")
	}
	if c.Orchestration.GapThreshold <= 0 {
		return fmt.Errorf("config.orchestration.gap_threshold must be positive")
	}
	if c.Orchestration.AutoCompleteCeiling <= 0 {
		return fmt.Errorf("config.orchestration.auto_complete_ceiling must be positive")
	}
	if c.Defaults.TimeBudget <= 0 {
		return fmt.Errorf("config.defaults.time_budget must be positive")
	}
	for field, lit := range map[string]string{"start": c.Defaults.Start, "goal": c.Defaults.Goal} {
		v, err := vector.Parse(lit)
		if err != nil {
			return fmt.Errorf("config.defaults.%s: %w", field, err)
		}
		if v.Dims() != c.Orchestration.Dims {
			return fmt.Errorf("config.defaults.%s has %d dims, orchestration.dims is %d", field, v.Dims(), c.Orchestration.Dims)
		}
	}
	return nil
}

// StartVector returns the parsed default start state.
func (c *Config) StartVector() vector.Vector {
	v, _ := vector.Parse(c.Defaults.Start)
	return v
}

// GoalVector returns the parsed default goal state.
func (c *Config) GoalVector() vector.Vector {
	v, _ := vector.Parse(c.Defaults.Goal)
	return v
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "lessonline.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	if err := yaml.Unmarshal([]byte(defaultTemplate), &cfg); err != nil {
		panic(fmt.Sprintf("embedded default config invalid: %v", err))
	}
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `orchestration:
  dims: 2
  gap_threshold: 0.05
  auto_complete_ceiling: 100

defaults:
  time_budget: 120
  start: "(0.0;0.0)"
  goal: "(0.9;0.9)"

library:
  path: ""
`
