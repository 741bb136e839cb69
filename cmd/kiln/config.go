package main

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the kiln configuration file (~/.config/kiln/config.yaml).
// Pointer fields distinguish "not set" from zero values.
type Config struct {
	ServerAddress string `yaml:"server_address"`

	Backend    string `yaml:"backend"`
	ModelID    string `yaml:"model_id"`
	MaxContext *int64 `yaml:"max_context"`

	Workers   *int64 `yaml:"workers"`
	QueueSize *int64 `yaml:"queue_size"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// ModelToken authenticates against gated model sources. The
	// KILN_MODEL_TOKEN environment variable takes precedence.
	ModelToken string `yaml:"model_token"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "kiln", "config.yaml")
}

// LoadConfig reads the config file. Returns a zero Config if the file
// doesn't exist or fails to parse.
func LoadConfig() Config {
	path := configPath()
	if path == "" {
		return Config{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}
	}
	if tok := os.Getenv("KILN_MODEL_TOKEN"); tok != "" {
		cfg.ModelToken = tok
	}
	return cfg
}

// applyServeConfig applies config file defaults to serve command variables
// when the corresponding CLI flag was not explicitly set.
func applyServeConfig(c *cli.Command, cfg Config,
	addr, backendName, modelID *string, maxContext, workers, queueSize *int64,
	logLevel, logFormat *string,
) {
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
	if cfg.Backend != "" && !c.IsSet("backend") {
		*backendName = cfg.Backend
	}
	if cfg.ModelID != "" && !c.IsSet("model-id") {
		*modelID = cfg.ModelID
	}
	if cfg.MaxContext != nil && !c.IsSet("max-context") {
		*maxContext = *cfg.MaxContext
	}
	if cfg.Workers != nil && !c.IsSet("workers") {
		*workers = *cfg.Workers
	}
	if cfg.QueueSize != nil && !c.IsSet("queue-size") {
		*queueSize = *cfg.QueueSize
	}
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		*logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		*logFormat = cfg.LogFormat
	}
}
