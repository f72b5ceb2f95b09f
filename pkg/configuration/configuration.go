package configuration

import (
	"fmt"
	"os"

	"github.com/creasty/defaults"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"dtw/pkg/helpers"
	"dtw/pkg/model"
)

type envVars struct {
	// ConfigYAML points at the service configuration file.
	ConfigYAML string `envconfig:"CONFIG_YAML" default:"config.yaml"`
}

// New reads the YAML configuration named by DTW_CONFIG_YAML, applies
// environment overrides and defaults, and validates the result.
func New() (*model.Cfg, error) {
	var env envVars
	if err := envconfig.Process("DTW", &env); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(env.ConfigYAML)
	if err != nil {
		return nil, fmt.Errorf("read configuration: %w", err)
	}

	cfg := &model.Cfg{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse configuration: %w", err)
	}

	if err := envconfig.Process("DTW", cfg); err != nil {
		return nil, err
	}
	if err := defaults.Set(cfg); err != nil {
		return nil, err
	}
	if err := helpers.CheckSimple(cfg); err != nil {
		return nil, fmt.Errorf("validate configuration: %w", err)
	}

	return cfg, nil
}
