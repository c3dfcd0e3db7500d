// Package util provides common utilities for netlens.
package util

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	DataDir  string `mapstructure:"data_dir"`
	LogLevel string `mapstructure:"log_level"`

	// Query service endpoints
	APIURL    string `mapstructure:"api_url"`
	StreamURL string `mapstructure:"stream_url"`

	// HTTP settings
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`

	// Streaming settings
	StreamBackoff time.Duration `mapstructure:"stream_backoff"`
	CompressLevel int           `mapstructure:"compress_level"`

	// Scan monitoring
	ScanPollInterval time.Duration `mapstructure:"scan_poll_interval"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".netlens")

	return &Config{
		DataDir:  dataDir,
		LogLevel: "info",

		APIURL:    "https://api.netlens.io",
		StreamURL: "https://stream.netlens.io",

		HTTPTimeout: 30 * time.Second,

		StreamBackoff: time.Second,
		CompressLevel: 9,

		ScanPollInterval: time.Minute,
	}
}

// LoadConfig loads configuration from file and environment. An explicit
// cfgFile overrides the default search path.
func LoadConfig(cfgFile string) (*Config, error) {
	cfg := DefaultConfig()

	// Ensure config directory exists
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(cfg.DataDir)
		viper.AddConfigPath(".")
	}

	// Set defaults in viper
	viper.SetDefault("data_dir", cfg.DataDir)
	viper.SetDefault("log_level", cfg.LogLevel)
	viper.SetDefault("api_url", cfg.APIURL)
	viper.SetDefault("stream_url", cfg.StreamURL)
	viper.SetDefault("http_timeout", cfg.HTTPTimeout)
	viper.SetDefault("stream_backoff", cfg.StreamBackoff)
	viper.SetDefault("compress_level", cfg.CompressLevel)
	viper.SetDefault("scan_poll_interval", cfg.ScanPollInterval)

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// Unmarshal into config struct
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// EnsureDir ensures a directory exists.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
