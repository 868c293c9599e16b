package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Database drivers accepted in DB_DRIVER
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Config holds the application configuration
type Config struct {
	Port     string
	AppEnv   string
	LogLevel string

	// Relational store configuration
	UseMockDB   bool
	DBDriver    string
	DatabaseURL string
	SQLitePath  string
	AutoMigrate bool

	// ClickHouse event log (optional, enabled when ClickHouseHost is set)
	ClickHouseHost     string
	ClickHousePort     int
	ClickHouseDatabase string
	ClickHouseUser     string
	ClickHousePassword string
	ClickHouseUseTLS   bool

	// Telegram notifications (optional, enabled when both are set)
	TelegramToken  string
	TelegramChatID int64

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Development reports whether the app runs with the development logger
func (c *Config) Development() bool {
	return c.AppEnv == "development"
}

// EventLogEnabled reports whether ledger events go to ClickHouse
func (c *Config) EventLogEnabled() bool {
	return c.ClickHouseHost != ""
}

// NotificationsEnabled reports whether Telegram notifications are configured
func (c *Config) NotificationsEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	config := &Config{
		Port:     getEnv("PORT", "8080"),
		AppEnv:   getEnv("APP_ENV", "production"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	// Use Mock DB (default: false)
	config.UseMockDB = os.Getenv("USE_MOCK_DB") == "true"

	if !config.UseMockDB {
		config.DBDriver = getEnv("DB_DRIVER", DriverPostgres)
		switch config.DBDriver {
		case DriverPostgres:
			config.DatabaseURL = os.Getenv("DATABASE_URL")
			if config.DatabaseURL == "" {
				return nil, fmt.Errorf("DATABASE_URL is required when DB_DRIVER is %s", DriverPostgres)
			}
		case DriverSQLite:
			config.SQLitePath = getEnv("SQLITE_PATH", "library.db")
		default:
			return nil, fmt.Errorf("invalid DB_DRIVER: %s (expected %s or %s)", config.DBDriver, DriverPostgres, DriverSQLite)
		}
	}

	config.AutoMigrate = getEnv("DB_AUTO_MIGRATE", "true") != "false"

	// ClickHouse configuration (optional)
	config.ClickHouseHost = os.Getenv("CLICKHOUSE_HOST")
	if config.ClickHouseHost != "" {
		port, err := strconv.Atoi(getEnv("CLICKHOUSE_PORT", "9000"))
		if err != nil {
			return nil, fmt.Errorf("invalid CLICKHOUSE_PORT: %w", err)
		}
		config.ClickHousePort = port
		config.ClickHouseDatabase = getEnv("CLICKHOUSE_DATABASE", "default")
		config.ClickHouseUser = getEnv("CLICKHOUSE_USER", "default")
		config.ClickHousePassword = os.Getenv("CLICKHOUSE_PASSWORD")
		config.ClickHouseUseTLS = os.Getenv("CLICKHOUSE_USE_TLS") == "true"
	}

	config.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %s", chatID)
		}
		config.TelegramChatID = id
	}

	var err error
	if config.ReadTimeout, err = getDuration("HTTP_READ_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if config.WriteTimeout, err = getDuration("HTTP_WRITE_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}

	return config, nil
}

// getEnv retrieves environment variable or returns default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
