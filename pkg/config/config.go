// Package config provides configuration loading and management for the MRS
// command line tools. It handles loading configuration from YAML files and
// provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML.
type Config struct {
	// Validation parameters
	Validation struct {
		// Disabled skips the format checks when loading and saving files
		Disabled bool `yaml:"disabled"`

		// SpectralWidthTolerance is the relative tolerance applied when a
		// declared SpectralWidth is compared against the dwell time
		SpectralWidthTolerance float64 `yaml:"spectralWidthTolerance"`
	} `yaml:"validation"`

	// Conjugation parameters
	Conjugate struct {
		// OnCreate controls whether data built from raw arrays is
		// conjugated to match the standard's frequency convention
		OnCreate bool `yaml:"onCreate"`
	} `yaml:"conjugate"`

	// Output parameters
	Output struct {
		// Directory is the default directory for generated files
		Directory string `yaml:"directory"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Validation.Disabled = false
	cfg.Validation.SpectralWidthTolerance = 1e-4

	cfg.Conjugate.OnCreate = true

	cfg.Output.Directory = "."
	cfg.Output.Verbose = false

	return cfg
}

// LoadConfig loads configuration from a YAML file.
// If the file doesn't exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}
