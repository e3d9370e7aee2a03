package main

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the petal configuration file
// (~/.config/petal/config.yaml). Fields are pointers so "not set" is
// distinguishable from zero values.
type Config struct {
	Model      string `yaml:"model"`
	ContextLen *int64 `yaml:"ctx"`
	Threads    *int64 `yaml:"threads"`

	// Sampling defaults
	Predict       *int64   `yaml:"predict"`
	Batch         *int64   `yaml:"batch"`
	Seed          *int64   `yaml:"seed"`
	Temperature   *float64 `yaml:"temperature"`
	TopK          *int64   `yaml:"top_k"`
	TopP          *float64 `yaml:"top_p"`
	RepeatPenalty *float64 `yaml:"repeat_penalty"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "petal", "config.yaml")
}

// LoadConfig reads the config file. Returns a zero Config if the file
// does not exist or does not parse.
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
	return cfg
}

// applyModelConfig fills model flags from the config file when the
// corresponding CLI flag was not explicitly set.
func applyModelConfig(c *cli.Command, cfg Config) {
	if cfg.Model != "" && !c.IsSet("model") {
		modelPath = cfg.Model
	}
	if cfg.ContextLen != nil && !c.IsSet("ctx") {
		contextLen = *cfg.ContextLen
	}
	if cfg.Threads != nil && !c.IsSet("threads") {
		threads = *cfg.Threads
	}
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// applySamplingConfig fills sampling flags from the config file.
func applySamplingConfig(c *cli.Command, cfg Config, o *samplingOpts) {
	if cfg.Predict != nil && !c.IsSet("predict") {
		o.predict = *cfg.Predict
	}
	if cfg.Batch != nil && !c.IsSet("batch") {
		o.batch = *cfg.Batch
	}
	if cfg.Seed != nil && !c.IsSet("seed") {
		o.seed = *cfg.Seed
	}
	if cfg.Temperature != nil && !c.IsSet("temp") && !c.IsSet("temperature") {
		o.temp = *cfg.Temperature
	}
	if cfg.TopK != nil && !c.IsSet("top-k") && !c.IsSet("top_k") {
		o.topK = *cfg.TopK
	}
	if cfg.TopP != nil && !c.IsSet("top-p") && !c.IsSet("top_p") {
		o.topP = *cfg.TopP
	}
	if cfg.RepeatPenalty != nil && !c.IsSet("repeat-penalty") && !c.IsSet("repeat_penalty") {
		o.repeatPenalty = *cfg.RepeatPenalty
	}
}
