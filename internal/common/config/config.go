package config

import (
	"os"
	"path/filepath"
	"regexp"

	"github.com/daffinity/serverless-offline/pkg/helper"
	"github.com/daffinity/serverless-offline/pkg/trace"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type (
	// OfflineConfig represents the gateway process configuration
	OfflineConfig struct {
		Project               string         `yaml:"project"`
		Port                  int            `yaml:"port"`
		Prefix                string         `yaml:"prefix"`
		Stage                 string         `yaml:"stage"`
		Region                string         `yaml:"region"`
		CORSHeaders           []string       `yaml:"cors_headers"`
		SkipCacheInvalidation bool           `yaml:"skip_cache_invalidation"`
		HTTPSProtocol         string         `yaml:"https_protocol"` // directory holding cert.pem and key.pem
		PID                   string         `yaml:"pid"`
		Logger                LoggerConfig   `yaml:"logger"`
		Metrics               MetricsConfig  `yaml:"metrics"`
		Tracing               trace.Config   `yaml:"tracing"`
		Notifier              NotifierConfig `yaml:"notifier"`
	}

	// LoggerConfig represents the logger configuration
	LoggerConfig struct {
		Name       string `yaml:"name"`        // logger name, default "offline"
		Level      string `yaml:"level"`       // debug, info, warn, error
		Format     string `yaml:"format"`      // json, console
		Output     string `yaml:"output"`      // stdout, file
		FilePath   string `yaml:"file_path"`   // path to log file when output is file
		MaxSize    int    `yaml:"max_size"`    // max size of log file in MB
		MaxBackups int    `yaml:"max_backups"` // max number of backup files
		MaxAge     int    `yaml:"max_age"`     // max age of backup files in days
		Compress   bool   `yaml:"compress"`    // whether to compress backup files
		Color      bool   `yaml:"color"`       // whether to use color in console output
		Stacktrace bool   `yaml:"stacktrace"`  // whether to include stacktrace in error logs
		TimeZone   string `yaml:"time_zone"`   // time zone for log timestamps, e.g., "UTC", default is local
		TimeFormat string `yaml:"time_format"` // time format for log timestamps, default is "2006-01-02 15:04:05"
	}

	// MetricsConfig represents the prometheus metrics configuration
	MetricsConfig struct {
		Enabled   bool      `yaml:"enabled"`
		Path      string    `yaml:"path"`
		Namespace string    `yaml:"namespace"`
		Buckets   []float64 `yaml:"buckets"`
	}
)

// LoadConfig loads the gateway configuration from a YAML file with environment variable support
func LoadConfig(filename string) (*OfflineConfig, string, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfgPath := helper.GetCfgPath(filename)
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, cfgPath, err
	}

	// Resolve environment variables
	data = resolveEnv(data)
	var cfg OfflineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, cfgPath, err
	}

	cfg.ApplyDefaults()
	return &cfg, cfgPath, nil
}

// DefaultConfig returns the configuration used when no file is present
func DefaultConfig() *OfflineConfig {
	cfg := &OfflineConfig{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero values and normalises the route prefix
func (c *OfflineConfig) ApplyDefaults() {
	if c.Project == "" {
		c.Project = "serverless.yaml"
	}
	if c.Port == 0 {
		c.Port = 3000
	}
	c.Prefix = NormalizePrefix(c.Prefix)
	if c.PID == "" {
		c.PID = filepath.Join(os.TempDir(), "serverless-offline.pid")
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/_offline/metrics"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "offline"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "serverless-offline"
	}
	if c.Notifier.Type == "" {
		c.Notifier.Type = "none"
	}
	if c.Notifier.Signal.PID == "" {
		c.Notifier.Signal.PID = c.PID
	}
}

// NormalizePrefix makes the prefix start and end with '/'
func NormalizePrefix(prefix string) string {
	if prefix == "" {
		return "/"
	}
	if prefix[0] != '/' {
		prefix = "/" + prefix
	}
	if prefix[len(prefix)-1] != '/' {
		prefix += "/"
	}
	return prefix
}

// resolveEnv replaces environment variable placeholders in YAML content
func resolveEnv(content []byte) []byte {
	regex := regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

	return regex.ReplaceAllFunc(content, func(match []byte) []byte {
		matches := regex.FindSubmatch(match)
		envKey := string(matches[1])
		var defaultValue string

		if len(matches) > 2 {
			defaultValue = string(matches[2])
		}

		if value, exists := os.LookupEnv(envKey); exists {
			return []byte(value)
		}
		return []byte(defaultValue)
	})
}
