package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/daffinity/serverless-offline/internal/common/cnst"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Loader is responsible for loading project definitions
type Loader struct {
	logger *zap.Logger
}

// NewLoader creates a new project loader
func NewLoader(logger *zap.Logger) *Loader {
	return &Loader{
		logger: logger,
	}
}

// LoadFromFile loads a project definition from a YAML or JSON file
func (l *Loader) LoadFromFile(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg, err := ParseProject(data, strings.ToLower(filepath.Ext(path)) == ".json")
	if err != nil {
		return nil, fmt.Errorf("failed to parse project %s: %w", path, err)
	}

	if err := ValidateProject(cfg); err != nil {
		return nil, err
	}

	l.logger.Debug("project loaded",
		zap.String("path", path),
		zap.String("name", cfg.Name),
		zap.Int("functions", len(cfg.Functions)))
	return cfg, nil
}

// ParseProject decodes a project definition, resolving ${ENV:default} placeholders first
func ParseProject(data []byte, isJSON bool) (*ProjectConfig, error) {
	data = resolveEnv(data)

	var cfg ProjectConfig
	if isJSON {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	for i := range cfg.Functions {
		if cfg.Functions[i].Runtime == "" {
			cfg.Functions[i].Runtime = cnst.RuntimeGo
		}
	}
	return &cfg, nil
}
