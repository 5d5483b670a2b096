package main

import (
	"os"

	"gopkg.in/yaml.v3"
)

// cliConfig holds the optional YAML overrides a --config flag can supply
// on top of command-line flags. Flags win when both are set.
type cliConfig struct {
	ModelPath                string  `yaml:"model_path"`
	Prompt                   string  `yaml:"prompt"`
	MaxNewTokens             int     `yaml:"max_new_tokens"`
	Temperature              float32 `yaml:"temperature"`
	TopK                     int     `yaml:"top_k"`
	TopP                     float32 `yaml:"top_p"`
	Seed                     int64   `yaml:"seed"`
	AcceleratorCapacityBytes int64   `yaml:"accelerator_capacity_bytes"`
}

func loadCLIConfig(path string) (*cliConfig, error) {
	if path == "" {
		return &cliConfig{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg cliConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
