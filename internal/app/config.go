package app

import (
	"errors"
	"fmt"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	DefinitionPath string // .hcl, .yaml or .yml files

	LogFormat       string
	LogLevel        string
	HealthcheckPort int

	// EngineURL selects the remote engine; empty runs the local engine.
	EngineURL          string
	EngineNamespace    string
	InsecureSkipVerify bool

	Iterations int
	NoFuse     bool
	PrintPlan  bool
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.DefinitionPath == "" {
		return nil, errors.New("DefinitionPath is a required configuration field and cannot be empty")
	}
	if cfg.Iterations < 0 {
		return nil, fmt.Errorf("iterations must not be negative, got %d", cfg.Iterations)
	}
	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		return nil, fmt.Errorf("healthcheck port %d is out of range", cfg.HealthcheckPort)
	}
	return &cfg, nil
}
