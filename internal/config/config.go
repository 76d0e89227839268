// Package config loads session settings from YAML files and presets.
package config

import (
	"fmt"
	"os"
	"sort"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	DefaultModel      = "fedbatch"
	DefaultIntegrator = "rk4"
	DefaultDuration   = 8.0
	DefaultNCP        = 500
	DefaultLayout     = "Overview"
	DefaultLogLevel   = "info"
	DefaultDataDir    = ".fmuexplore"
)

var validate = validator.New()

type Config struct {
	Model      string         `yaml:"model" validate:"required"`
	Integrator string         `yaml:"integrator" validate:"oneof=rk4 euler"`
	Duration   float64        `yaml:"duration" validate:"gt=0"`
	NCP        int            `yaml:"ncp" validate:"gte=1,lte=100000"`
	Layout     string         `yaml:"layout"`
	LayoutFile string         `yaml:"layout_file,omitempty"`
	LogLevel   string         `yaml:"log_level" validate:"oneof=trace debug info warn error"`
	DataDir    string         `yaml:"data_dir" validate:"required"`
	Parameters map[string]any `yaml:"parameters,omitempty"`
	Init       map[string]any `yaml:"init,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Model:      DefaultModel,
		Integrator: DefaultIntegrator,
		Duration:   DefaultDuration,
		NCP:        DefaultNCP,
		Layout:     DefaultLayout,
		LogLevel:   DefaultLogLevel,
		DataDir:    DefaultDataDir,
	}
}

// Validate checks field ranges. Parameter names are checked by the session.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Merge overlays the parameter and init maps of other onto c.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}
	if len(other.Parameters) > 0 && c.Parameters == nil {
		c.Parameters = make(map[string]any, len(other.Parameters))
	}
	for k, v := range other.Parameters {
		c.Parameters[k] = v
	}
	if len(other.Init) > 0 && c.Init == nil {
		c.Init = make(map[string]any, len(other.Init))
	}
	for k, v := range other.Init {
		c.Init[k] = v
	}
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
