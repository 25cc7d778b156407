package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/natefinch/atomic"
)

// Config holds the tool's persistent settings. Environment variables
// override the file, and command-line flags override both.
type Config struct {
	OutputSize int    `json:"output_size"`
	StateSize  int    `json:"state_size"`
	StorePath  string `json:"store_path"`
	LogLevel   string `json:"log_level"`
}

// DefaultConfig creates a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		OutputSize: 200,
		StateSize:  2,
		StorePath:  "",
		LogLevel:   "info",
	}
}

// LoadConfig reads the configuration from a JSON file at the given path
// and layers PRATTLE_* environment variables on top. If the file doesn't
// exist, it creates one with default values. An empty path skips the file
// and uses defaults plus the environment.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		file, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			var data []byte
			data, err = json.MarshalIndent(config, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("failed to marshal default config: %w", err)
			}
			if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
				// Warn instead of failing, the tool can still run with defaults.
				fmt.Fprintf(os.Stderr, "warning: failed to write default config file: %v\n", err)
			}
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err = json.Unmarshal(file, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	applyEnv(config)
	return config, nil
}

// applyEnv layers environment overrides over the config, honoring a .env
// file in the working directory when one exists.
func applyEnv(config *Config) {
	_ = godotenv.Load(".env")

	if v := os.Getenv("PRATTLE_OUTPUT_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.OutputSize = n
		}
	}
	if v := os.Getenv("PRATTLE_STATE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.StateSize = n
		}
	}
	if v := os.Getenv("PRATTLE_STORE_PATH"); v != "" {
		config.StorePath = v
	}
	if v := os.Getenv("PRATTLE_LOG_LEVEL"); v != "" {
		config.LogLevel = v
	}
}
