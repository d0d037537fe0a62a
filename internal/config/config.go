// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for databases (always absolute)
	Port     int
	LogLevel string
	DevMode  bool

	// Optimizer defaults, overridable per request within handler policy bounds.
	DefaultSymbols   string // comma-separated ticker list
	DefaultRiskFree  float64
	DefaultScenarios int
	Seed             int64

	// Price sync
	SyncSchedule string // cron expression for the daily price sync
	HistoryRange string // Yahoo range for backfill, e.g. "2y"

	// Cloud backup (Cloudflare R2, S3-compatible). Disabled unless all three
	// credentials are present.
	Backup BackupConfig
}

// BackupConfig holds R2 backup configuration
type BackupConfig struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Schedule        string // cron expression
	RetainCount     int    // backups to keep remotely
}

// Enabled reports whether backup credentials are fully configured.
func (b BackupConfig) Enabled() bool {
	return b.AccountID != "" && b.AccessKeyID != "" && b.SecretAccessKey != "" && b.Bucket != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("FRONTIER_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:          absDataDir,
		Port:             getEnvAsInt("PORT", 8080),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		DevMode:          getEnvAsBool("DEV_MODE", false),
		DefaultSymbols:   getEnv("DEFAULT_SYMBOLS", "BBCA.JK, BBRI.JK, INDF.JK, ASII.JK"),
		DefaultRiskFree:  getEnvAsFloat("DEFAULT_RISK_FREE_PCT", 6.0),
		DefaultScenarios: getEnvAsInt("DEFAULT_SCENARIOS", 10000),
		Seed:             int64(getEnvAsInt("OPTIMIZER_SEED", 3)),
		SyncSchedule:     getEnv("SYNC_SCHEDULE", "0 0 18 * * MON-FRI"),
		HistoryRange:     getEnv("HISTORY_RANGE", "2y"),
		Backup: BackupConfig{
			AccountID:       getEnv("R2_ACCOUNT_ID", ""),
			AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
			Bucket:          getEnv("R2_BUCKET", ""),
			Schedule:        getEnv("BACKUP_SCHEDULE", "0 0 2 * * *"),
			RetainCount:     getEnvAsInt("BACKUP_RETAIN_COUNT", 7),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DefaultScenarios < 1 {
		return fmt.Errorf("DEFAULT_SCENARIOS must be positive, got %d", c.DefaultScenarios)
	}
	if c.DefaultRiskFree < 0 || c.DefaultRiskFree > 100 {
		return fmt.Errorf("DEFAULT_RISK_FREE_PCT must be within [0,100], got %v", c.DefaultRiskFree)
	}
	return nil
}

// Helper functions
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
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
