package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/natefinch/atomic"
)

// Config holds the settings shared by every command.
type Config struct {
	DatabasePath  string `json:"database_path"`
	LogLevel      string `json:"log_level"`
	ApiAddr       string `json:"api_addr"`
	DefaultOrder  int    `json:"default_order"`
	DefaultLength int    `json:"default_length"`
	CacheSize     int    `json:"cache_size"`
}

// DefaultConfig creates a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		DatabasePath:  "./data/markov.db?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)",
		LogLevel:      "info",
		ApiAddr:       ":7278",
		DefaultOrder:  2,
		DefaultLength: 50,
		CacheSize:     16,
	}
}

// LoadConfig reads the configuration from a JSON file at the given path.
// If the file doesn't exist, it creates one with default values. Fields
// missing from the file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	file, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			var data []byte
			data, err = json.MarshalIndent(config, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("failed to marshal default config: %w", err)
			}
			if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
				// The defaults are still usable without a file on disk.
				fmt.Fprintf(os.Stderr, "warning: failed to write default config file: %v\n", err)
			}
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err = json.Unmarshal(file, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if config.DefaultOrder < 1 {
		return nil, fmt.Errorf("invalid default_order %d: must be at least 1", config.DefaultOrder)
	}
	return config, nil
}

// parseLogLevel maps a level name to its slog level, defaulting to info.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
