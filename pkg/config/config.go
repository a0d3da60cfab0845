// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/campushq/campus/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration
}

// RedisConfig holds Redis configuration for the onboarding rate limiter.
// Redis is optional; an empty URL disables rate limiting.
type RedisConfig struct {
	URL      string
	Password string
	DB       int

	// Onboarding endpoint limits
	RegistrationsPerWindow int
	Window                 time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("CAMPUS_HOST", "0.0.0.0"),
		Port:            getEnv("CAMPUS_PORT", "8080"),
		ReadTimeout:     getEnvDuration("CAMPUS_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("CAMPUS_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("CAMPUS_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("CAMPUS_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("CAMPUS_HEALTH_PORT", "9090"),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:          getEnv("CAMPUS_POSTGRES_URL", ""),
		MaxOpenConns: getEnvInt("CAMPUS_POSTGRES_MAX_CONNS", 25),
		MaxIdleConns: getEnvInt("CAMPUS_POSTGRES_IDLE_CONNS", 5),
		ConnLifetime: getEnvDuration("CAMPUS_POSTGRES_CONN_LIFETIME", 30*time.Minute),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		URL:                    getEnv("CAMPUS_REDIS_URL", ""),
		Password:               getEnv("CAMPUS_REDIS_PASSWORD", ""),
		DB:                     getEnvInt("CAMPUS_REDIS_DB", 0),
		RegistrationsPerWindow: getEnvInt("CAMPUS_REGISTRATION_RATE_LIMIT", 10),
		Window:                 getEnvDuration("CAMPUS_REGISTRATION_RATE_WINDOW", time.Hour),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       parseLogLevel(getEnv("CAMPUS_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("CAMPUS_METRICS_ENABLED", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required (CAMPUS_POSTGRES_URL)")
	}

	if c.Redis.URL != "" {
		if c.Redis.RegistrationsPerWindow <= 0 {
			return fmt.Errorf("registration rate limit must be positive")
		}
		if c.Redis.Window <= 0 {
			return fmt.Errorf("registration rate window must be positive")
		}
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
