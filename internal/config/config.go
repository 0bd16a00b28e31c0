// Package config loads and validates the batch run configuration.
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/lettse/littlemovers/internal/classifier"
	"github.com/lettse/littlemovers/internal/nonwear"
	"github.com/lettse/littlemovers/internal/storage"
)

// Config represents the complete application configuration
type Config struct {
	Input   InputConfig   `mapstructure:"input"`
	Output  OutputConfig  `mapstructure:"output"`
	Model   ModelConfig   `mapstructure:"model"`
	NonWear NonWearConfig `mapstructure:"nonwear"`
	Batch   BatchConfig   `mapstructure:"batch"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// InputConfig describes the recordings to process
type InputConfig struct {
	Folder       string `mapstructure:"folder"`
	Extension    string `mapstructure:"extension"`
	EpochSeconds int    `mapstructure:"epoch_seconds"`
	SampleRateHz int    `mapstructure:"sample_rate_hz"`
}

// OutputConfig describes where results are written
type OutputConfig struct {
	Folder    string `mapstructure:"folder"`
	WriteMode string `mapstructure:"write_mode"`
	ResultsDB string `mapstructure:"results_db"`
}

// ModelConfig selects the pretrained model variant
type ModelConfig struct {
	Dir     string `mapstructure:"dir"`
	Outcome string `mapstructure:"outcome"`
}

// NonWearConfig selects the non-wear removal method
type NonWearConfig struct {
	Method      string `mapstructure:"method"`
	LogbookFile string `mapstructure:"logbook_file"`
}

// BatchConfig holds batch execution behavior
type BatchConfig struct {
	// FailFast aborts the whole batch on the first per-file failure
	// instead of logging and skipping the file.
	FailFast bool `mapstructure:"fail_fast"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Debug bool `mapstructure:"debug"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	setDefaults(v)

	v.SetEnvPrefix("LITTLEMOVERS")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("input.extension", ".csv")
	v.SetDefault("input.epoch_seconds", 5)
	v.SetDefault("input.sample_rate_hz", 30)

	v.SetDefault("output.write_mode", string(storage.ModeAppend))

	v.SetDefault("model.dir", "./models")

	v.SetDefault("nonwear.method", string(nonwear.MethodNone))

	v.SetDefault("batch.fail_fast", false)
	v.SetDefault("logging.debug", false)
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.Input.Folder == "" {
		return fmt.Errorf("input.folder is required")
	}
	if c.Output.Folder == "" {
		return fmt.Errorf("output.folder is required")
	}
	if c.Input.EpochSeconds < 1 {
		return fmt.Errorf("input.epoch_seconds must be at least 1")
	}
	if c.Input.SampleRateHz < 1 {
		return fmt.Errorf("input.sample_rate_hz must be at least 1")
	}

	if c.Model.Outcome == "" {
		return fmt.Errorf("model.outcome is required")
	}
	if _, err := classifier.OutcomeByName(c.Model.Outcome); err != nil {
		return fmt.Errorf("model.outcome: %w", err)
	}

	switch nonwear.Method(c.NonWear.Method) {
	case nonwear.MethodLogbook, nonwear.MethodNone:
	default:
		return fmt.Errorf("nonwear.method must be %q or %q", nonwear.MethodLogbook, nonwear.MethodNone)
	}

	switch storage.WriteMode(c.Output.WriteMode) {
	case storage.ModeAppend, storage.ModeReplace:
	default:
		return fmt.Errorf("output.write_mode must be %q or %q", storage.ModeAppend, storage.ModeReplace)
	}

	return nil
}
