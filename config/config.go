// Package config loads the platform configuration from file and
// environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// DataPaths holds the data directory configuration.
// Paths can be overridden via environment variables.
type DataPaths struct {
	// DataDir is the base data directory (ARGUS_DATA_DIR, default: ./data)
	DataDir string `mapstructure:"data_dir"`
	// StorageDir is the namespaced JSON store directory
	// (ARGUS_STORAGE_DIR, default: ${DataDir}/storage)
	StorageDir string `mapstructure:"storage_dir"`
}

// Setup holds the tunables of the component and domain setup machinery.
type Setup struct {
	// Concurrency is the size of the domain setup worker pool. It must
	// comfortably exceed the longest dependency chain in the config:
	// a waiting domain occupies a worker until its dependencies finish.
	Concurrency int `mapstructure:"concurrency"`

	ComponentRetryInterval    time.Duration `mapstructure:"component_retry_interval"`
	ComponentRetryIntervalMax time.Duration `mapstructure:"component_retry_interval_max"`
	DomainRetryInterval       time.Duration `mapstructure:"domain_retry_interval"`
	DomainRetryIntervalMax    time.Duration `mapstructure:"domain_retry_interval_max"`

	SlowSetupWarning      time.Duration `mapstructure:"slow_setup_warning"`
	SlowDependencyWarning time.Duration `mapstructure:"slow_dependency_warning"`

	// ComponentJoinTimeout bounds how long startup waits for each
	// user-configured component before moving on.
	ComponentJoinTimeout time.Duration `mapstructure:"component_join_timeout"`
}

// Logging holds the logging configuration.
type Logging struct {
	Level string `mapstructure:"level"`
}

// Config holds all configuration for the Argus service.
type Config struct {
	// Components maps component config keys to their raw configuration.
	// A key is a component name, optionally followed by a space and an
	// instance suffix ("camera front"). A nil value is a component with
	// no options.
	Components map[string]map[string]interface{} `mapstructure:"components"`

	DataPaths DataPaths `mapstructure:"data_paths"`
	Setup     Setup     `mapstructure:"setup"`
	Logging   Logging   `mapstructure:"logging"`

	// StorageVersion is the schema version written to storage files.
	StorageVersion int `mapstructure:"storage_version"`
}

func setDefaults() {
	viper.SetDefault("data_paths.data_dir", "./data")
	viper.SetDefault("data_paths.storage_dir", "") // Empty = derive from data_dir

	viper.SetDefault("setup.concurrency", 100)
	viper.SetDefault("setup.component_retry_interval", 10*time.Second)
	viper.SetDefault("setup.component_retry_interval_max", 300*time.Second)
	viper.SetDefault("setup.domain_retry_interval", 10*time.Second)
	viper.SetDefault("setup.domain_retry_interval_max", 300*time.Second)
	viper.SetDefault("setup.slow_setup_warning", 10*time.Second)
	viper.SetDefault("setup.slow_dependency_warning", 30*time.Second)
	viper.SetDefault("setup.component_join_timeout", 30*time.Second)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("storage_version", 1)
}

// loadFromEnv sets up environment variable loading
func loadFromEnv() {
	viper.SetEnvPrefix("ARGUS")
	viper.AutomaticEnv()

	// Explicit bindings for shorter, cleaner env var names
	_ = viper.BindEnv("data_paths.data_dir", "ARGUS_DATA_DIR")
	_ = viper.BindEnv("data_paths.storage_dir", "ARGUS_STORAGE_DIR")
	_ = viper.BindEnv("logging.level", "ARGUS_LOG_LEVEL")
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()
	loadFromEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, will use defaults and env vars
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	config.ResolveDataPaths()

	return &config, nil
}

// ResolveDataPaths derives unset paths from DataDir.
func (c *Config) ResolveDataPaths() {
	dataDir := c.DataPaths.DataDir
	if dataDir == "" {
		dataDir = "./data"
		c.DataPaths.DataDir = dataDir
	}
	if c.DataPaths.StorageDir == "" {
		c.DataPaths.StorageDir = dataDir + "/storage"
	}
}

// GetDataDir returns the base data directory.
func (c *Config) GetDataDir() string {
	if c.DataPaths.DataDir == "" {
		return "./data"
	}
	return c.DataPaths.DataDir
}

// GetStorageDir returns the JSON store directory.
func (c *Config) GetStorageDir() string {
	if c.DataPaths.StorageDir == "" {
		return c.GetDataDir() + "/storage"
	}
	return c.DataPaths.StorageDir
}

func validateConfig(config *Config) error {
	if config.Setup.Concurrency < 1 {
		return fmt.Errorf("setup.concurrency must be at least 1, got %d", config.Setup.Concurrency)
	}
	if config.Setup.ComponentRetryInterval <= 0 {
		return fmt.Errorf("setup.component_retry_interval must be positive")
	}
	if config.Setup.ComponentRetryIntervalMax < config.Setup.ComponentRetryInterval {
		return fmt.Errorf("setup.component_retry_interval_max must not be below setup.component_retry_interval")
	}
	if config.Setup.DomainRetryInterval <= 0 {
		return fmt.Errorf("setup.domain_retry_interval must be positive")
	}
	if config.Setup.DomainRetryIntervalMax < config.Setup.DomainRetryInterval {
		return fmt.Errorf("setup.domain_retry_interval_max must not be below setup.domain_retry_interval")
	}
	if config.Setup.ComponentJoinTimeout <= 0 {
		return fmt.Errorf("setup.component_join_timeout must be positive")
	}
	switch config.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", config.Logging.Level)
	}
	if config.StorageVersion < 1 {
		return fmt.Errorf("storage_version must be at least 1, got %d", config.StorageVersion)
	}
	return nil
}
