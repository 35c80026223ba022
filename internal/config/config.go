// ============================================================================
// Taskpool Config - YAML Configuration Loading
// ============================================================================
//
// Package: internal/config
// File: config.go
// Purpose: Load the demo/bench binary's pool shape and metrics endpoint
//          from a YAML config file.
//
// ============================================================================

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML document taskpool reads at startup.
type Config struct {
	Pool struct {
		Workers  int `yaml:"workers"`
		MaxQueue int `yaml:"max_queue"`
	} `yaml:"pool"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr"`
	} `yaml:"metrics"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.Pool.Workers = 4
	cfg.Pool.MaxQueue = 64
	cfg.Metrics.Enabled = true
	cfg.Metrics.Addr = ":9090"
	return cfg
}

// Load reads and parses a YAML config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
