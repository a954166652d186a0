// Package config is the single source of truth for application
// configuration and data file locations.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Pipeline PipelineConfig `yaml:"pipeline" envconfig:"PIPELINE"`
}

// ServerConfig contains HTTP server configuration for the serve surface.
type ServerConfig struct {
	Port            int             `yaml:"port" envconfig:"PORT" default:"8080" validate:"gt=0,lte=65535"`
	ReadTimeout     time.Duration   `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration   `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"30s"`
	IdleTimeout     time.Duration   `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration.
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"100" validate:"gte=0"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"50" validate:"gte=0"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json" validate:"oneof=json text"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"console" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/app.log"`
}

// PipelineConfig carries the fixed analytical parameters of the batch
// pipeline. Defaults match the persisted datasets; changing them changes
// what the anomaly and forecast stages produce.
type PipelineConfig struct {
	// Contamination is the expected fraction of anomalous node-days.
	Contamination float64 `yaml:"contamination" envconfig:"CONTAMINATION" default:"0.05" validate:"gt=0,lt=0.5"`
	// Seed drives the isolation forest and the display-coordinate jitter.
	Seed int64 `yaml:"seed" envconfig:"SEED" default:"42"`
	// ForecastHorizonDays is the number of future periods to predict.
	ForecastHorizonDays int `yaml:"forecast_horizon_days" envconfig:"FORECAST_HORIZON_DAYS" default:"30" validate:"gt=0"`
	// ChangepointPriorScale controls trend-break sensitivity of the
	// forecast model.
	ChangepointPriorScale float64 `yaml:"changepoint_prior_scale" envconfig:"CHANGEPOINT_PRIOR_SCALE" default:"0.05" validate:"gt=0"`
}

// Load reads configuration from an optional YAML file, applies environment
// variable overrides (APP_ prefix), then validates the result.
func Load(configFile string) (*Config, error) {
	cfg := &Config{}

	// Defaults and env first so a partial YAML file only overrides what
	// it names.
	if err := envconfig.Process("APP", cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configFile, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
