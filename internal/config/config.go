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
	DataDir             string          // Base directory for databases and source data (always absolute)
	CSVPath             string          // Path to the quarterly HPI CSV source
	Port                int
	LogLevel            string
	DevMode             bool
	RefreshSchedule     string          // Cron expression for the series refresh job
	MaintenanceSchedule string          // Cron expression for the daily maintenance job
	Forecast            ForecastConfig
	Risk                RiskConfig
	Sentiment           SentimentConfig
	Backup              *BackupConfig
}

// ForecastConfig holds the model order and default horizon
type ForecastConfig struct {
	P       int // Autoregressive order
	D       int // Differencing order
	Q       int // Moving average order
	Horizon int // Default forecast steps (quarters)
}

// RiskConfig holds scoring defaults
type RiskConfig struct {
	DefaultLocationFactor float64 // Used when a request omits location_factor
}

// SentimentConfig holds the news collaborator settings
type SentimentConfig struct {
	Topic      string // Default topic for headline sentiment
	NewsAPIKey string // Empty disables the news client (neutral fallback)
	NewsAPIURL string
}

// BackupConfig holds S3-compatible backup settings
type BackupConfig struct {
	Enabled         bool
	Endpoint        string // Custom endpoint for R2/MinIO; empty = AWS S3
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
	Schedule        string // Cron expression
	RetentionDays   int    // 0 keeps archives forever
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Determine data directory:
	// 1. PROPSIGHT_DATA_DIR environment variable
	// 2. Fallback to ./data
	// 3. Always resolve to absolute path and ensure it exists
	dataDir := getEnv("PROPSIGHT_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:             absDataDir,
		CSVPath:             getEnv("HPI_CSV_PATH", filepath.Join(absDataDir, "hpi.csv")),
		Port:                getEnvAsInt("PORT", 8000),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		DevMode:             getEnvAsBool("DEV_MODE", false),
		RefreshSchedule:     getEnv("REFRESH_SCHEDULE", "0 0 6 * * *"),
		MaintenanceSchedule: getEnv("MAINTENANCE_SCHEDULE", "0 30 2 * * *"),
		Forecast: ForecastConfig{
			P:       getEnvAsInt("ARIMA_P", 1),
			D:       getEnvAsInt("ARIMA_D", 1),
			Q:       getEnvAsInt("ARIMA_Q", 1),
			Horizon: getEnvAsInt("FORECAST_HORIZON", 4),
		},
		Risk: RiskConfig{
			DefaultLocationFactor: getEnvAsFloat("LOCATION_FACTOR", 1.0),
		},
		Sentiment: SentimentConfig{
			Topic:      getEnv("SENTIMENT_TOPIC", "Indian real estate market"),
			NewsAPIKey: getEnv("NEWS_API_KEY", ""),
			NewsAPIURL: getEnv("NEWS_API_URL", "https://newsapi.org/v2"),
		},
		Backup: loadBackupConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present and sane
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.Forecast.P < 0 || c.Forecast.D < 0 || c.Forecast.Q < 0 {
		return fmt.Errorf("model order must be non-negative, got (%d,%d,%d)",
			c.Forecast.P, c.Forecast.D, c.Forecast.Q)
	}
	if c.Forecast.Horizon < 1 {
		return fmt.Errorf("forecast horizon must be at least 1, got %d", c.Forecast.Horizon)
	}
	if c.Backup != nil && c.Backup.Enabled {
		if c.Backup.Bucket == "" {
			return fmt.Errorf("backups enabled but BACKUP_BUCKET is empty")
		}
		if c.Backup.AccessKeyID == "" || c.Backup.SecretAccessKey == "" {
			return fmt.Errorf("backups enabled but credentials are missing")
		}
	}
	return nil
}

// DatabasePath returns the path of the service database file
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "propsight.db")
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

func loadBackupConfig() *BackupConfig {
	return &BackupConfig{
		Enabled:         getEnvAsBool("BACKUP_ENABLED", false),
		Endpoint:        getEnv("BACKUP_ENDPOINT", ""),
		Region:          getEnv("BACKUP_REGION", "auto"),
		Bucket:          getEnv("BACKUP_BUCKET", ""),
		AccessKeyID:     getEnv("BACKUP_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("BACKUP_SECRET_ACCESS_KEY", ""),
		Prefix:          getEnv("BACKUP_PREFIX", "propsight"),
		Schedule:        getEnv("BACKUP_SCHEDULE", "0 0 3 * * *"), // Daily 03:00
		RetentionDays:   getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
	}
}
