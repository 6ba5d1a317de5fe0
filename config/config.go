package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"interestbatch/database"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL  string
	DatabaseName string

	// HTTP surface
	HTTPAddr string

	// Interest calculation engine
	CalcEngineURL     string
	CalcEngineTimeout time.Duration

	// Periodic triggers
	SchedulerEnabled bool
	AccrualSchedule  string
	PostingSchedule  string

	// Logging
	LogLevel  string
	LogFormat string // "json" or "text"

	ShutdownTimeout time.Duration

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	// If instance is already set (e.g., by tests), return it
	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			if os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// Reset clears the cached instance so the next Get reloads from the environment
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// load loads configuration from environment variables
func load() (*Config, error) {
	// A missing .env file is fine; the process environment still applies
	_ = godotenv.Load()

	config := &Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DatabaseName: os.Getenv("DATABASE_NAME"),

		HTTPAddr:          getEnv("HTTP_ADDR", ":8080"),
		CalcEngineURL:     os.Getenv("CALC_ENGINE_URL"),
		CalcEngineTimeout: 30 * time.Second,

		SchedulerEnabled: getEnv("SCHEDULER_ENABLED", "true") == "true",
		AccrualSchedule:  getEnv("ACCRUAL_SCHEDULE", "0 1 * * *"),
		PostingSchedule:  getEnv("POSTING_SCHEDULE", "0 2 1 * *"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),

		ShutdownTimeout: 30 * time.Second,

		Environment: getEnv("ENVIRONMENT", "development"),
	}

	if timeout := os.Getenv("CALC_ENGINE_TIMEOUT_SECONDS"); timeout != "" {
		seconds, err := strconv.Atoi(timeout)
		if err != nil || seconds <= 0 {
			return nil, fmt.Errorf("CALC_ENGINE_TIMEOUT_SECONDS must be a positive integer, got %q", timeout)
		}
		config.CalcEngineTimeout = time.Duration(seconds) * time.Second
	}
	if timeout := os.Getenv("SHUTDOWN_TIMEOUT_SECONDS"); timeout != "" {
		seconds, err := strconv.Atoi(timeout)
		if err != nil || seconds <= 0 {
			return nil, fmt.Errorf("SHUTDOWN_TIMEOUT_SECONDS must be a positive integer, got %q", timeout)
		}
		config.ShutdownTimeout = time.Duration(seconds) * time.Second
	}

	if config.LogFormat != "json" && config.LogFormat != "text" {
		return nil, fmt.Errorf("LOG_FORMAT must be json or text, got %q", config.LogFormat)
	}

	if config.Environment != "test" {
		// Validate required configuration
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
		if config.CalcEngineURL == "" {
			return nil, fmt.Errorf("CALC_ENGINE_URL is required")
		}
	}

	return config, nil
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		HTTPAddr:          ":0",
		CalcEngineTimeout: 5 * time.Second,
		AccrualSchedule:   "0 1 * * *",
		PostingSchedule:   "0 2 1 * *",
		LogLevel:          "debug",
		LogFormat:         "text",
		ShutdownTimeout:   5 * time.Second,
		Environment:       "test",
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
