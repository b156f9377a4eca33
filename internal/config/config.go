// Package config provides configuration management for the simulator binaries.
//
// Configuration Loading Order:
// 1. Load from .env file (if exists)
// 2. Load from environment variables
//
// Data Directory Priority (highest to lowest):
// 1. dataDirOverride argument to Load (if provided)
// 2. SIMULATOR_DATA_DIR environment variable
// 3. "./data" (default)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration shared by cmd/simulate and cmd/server.
type Config struct {
	DataDir           string // base directory for the price cache and batch result cache
	LogLevel          string // debug, info, warn, error
	Port              int    // HTTP server port (cmd/server only)
	DevMode           bool   // enables pretty console logging
	DefaultWorkers    int    // default batch-runner worker pool size
	CapitalEpsilonUsd float64
	S3Bucket          string // optional archival target; empty disables archival
	S3Region          string
}

// Load reads configuration from the environment, applying defaults.
//
// dataDirOverride, if non-empty, takes highest priority over SIMULATOR_DATA_DIR.
func Load(dataDirOverride ...string) (*Config, error) {
	_ = godotenv.Load()

	var dataDir string
	if len(dataDirOverride) > 0 && dataDirOverride[0] != "" {
		dataDir = dataDirOverride[0]
	} else {
		dataDir = getEnv("SIMULATOR_DATA_DIR", "")
		if dataDir == "" {
			dataDir = "./data"
		}
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:           absDataDir,
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		Port:              getEnvAsInt("SIMULATOR_PORT", 8090),
		DevMode:           getEnvAsBool("DEV_MODE", false),
		DefaultWorkers:    getEnvAsInt("SIMULATOR_DEFAULT_WORKERS", runtime.NumCPU()),
		CapitalEpsilonUsd: getEnvAsFloat("SIMULATOR_CAPITAL_EPSILON_USD", 0.01),
		S3Bucket:          getEnv("SIMULATOR_ARCHIVE_BUCKET", ""),
		S3Region:          getEnv("SIMULATOR_ARCHIVE_REGION", "us-east-1"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants on the loaded configuration.
func (c *Config) Validate() error {
	if c.DefaultWorkers <= 0 {
		return fmt.Errorf("default worker count must be positive, got %d", c.DefaultWorkers)
	}
	if c.CapitalEpsilonUsd < 0 {
		return fmt.Errorf("capital epsilon must be >= 0, got %f", c.CapitalEpsilonUsd)
	}
	return nil
}

// ArchiveEnabled reports whether S3 result archival is configured.
func (c *Config) ArchiveEnabled() bool {
	return c.S3Bucket != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
