package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete license core configuration
type Config struct {
	License LicenseConfig `yaml:"license" envconfig:"LICENSE"`
	Logging LoggingConfig `yaml:"logging" envconfig:"LOGGING"`
	Paths   PathsConfig   `yaml:"paths" envconfig:"PATHS"`
}

// LicenseConfig contains validation engine tunables
type LicenseConfig struct {
	CacheTTL        time.Duration `yaml:"cache_ttl" envconfig:"CACHE_TTL" default:"5m" validate:"gt=0"`
	StorageTimeout  time.Duration `yaml:"storage_timeout" envconfig:"STORAGE_TIMEOUT" default:"5s" validate:"gt=0"`
	ActivationRate  float64       `yaml:"activation_rate" envconfig:"ACTIVATION_RATE" default:"0.16" validate:"gt=0"`
	ActivationBurst int           `yaml:"activation_burst" envconfig:"ACTIVATION_BURST" default:"3" validate:"min=1"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" envconfig:"FORMAT" default:"json" validate:"oneof=json text"`
}

// PathsConfig contains file system path overrides; empty values fall back to
// the executable-relative defaults from GetPaths.
type PathsConfig struct {
	DataDir string `yaml:"data_dir" envconfig:"DATA_DIR"`
}

// Load loads configuration from environment variables and an optional config
// file. Environment variables take precedence over file values.
func Load() (*Config, error) {
	var cfg Config

	// Load from environment variables first
	if err := envconfig.Process("BILL", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// Overlay config file if present
	if path := os.Getenv("BILL_CONFIG_FILE"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
		// Re-apply environment so env always wins over file values
		if err := envconfig.Process("BILL", &cfg); err != nil {
			return nil, fmt.Errorf("failed to re-apply env config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// Validate checks the configuration against the struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Default returns the configuration used when no environment or file
// configuration is present.
func Default() *Config {
	return &Config{
		License: LicenseConfig{
			CacheTTL:        DefaultCacheTTL,
			StorageTimeout:  StorageTimeout,
			ActivationRate:  float64(ActivationRateLimit) / 60.0,
			ActivationBurst: ActivationBurstSize,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
