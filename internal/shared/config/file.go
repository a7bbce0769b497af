package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type agentFileConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// fileConfig is the optional YAML overlay. Only deployment topology lives
// here; secrets stay in the environment.
type fileConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`
	Agents   struct {
		Analyzer     agentFileConfig `yaml:"analyzer"`
		Reviewer     agentFileConfig `yaml:"reviewer"`
		Synthesizer  agentFileConfig `yaml:"synthesizer"`
		ProbeTimeout time.Duration   `yaml:"probeTimeout"`
	} `yaml:"agents"`
}

func loadFile(path string) (fileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, err
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return fileConfig{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}
