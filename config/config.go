package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the civicwatch service.
type Config struct {
	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBTimeout  time.Duration

	// Server configuration
	Port string

	// Ingestion configuration
	AggregationInterval  time.Duration
	AggregationSourceURL string
	CandidateTimeout     time.Duration

	// Duplicate detection
	DuplicateCacheTTL time.Duration

	// Optional RabbitMQ fan-out to downstream consumers. Disabled when the
	// URL is empty.
	AMQPURL      string
	AMQPExchange string

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "server"),
		DBPassword: getEnv("DB_PASSWORD", "secret_app"),
		DBName:     getEnv("DB_NAME", "civicwatch"),
		DBTimeout:  getDurationEnv("DB_TIMEOUT", 5*time.Second),

		Port: getEnv("PORT", "8080"),

		AggregationInterval:  getDurationEnv("AGGREGATION_INTERVAL", 15*time.Minute),
		AggregationSourceURL: getEnv("AGGREGATION_SOURCE_URL", ""),
		CandidateTimeout:     getDurationEnv("CANDIDATE_TIMEOUT", 30*time.Second),

		DuplicateCacheTTL: getDurationEnv("DUPLICATE_CACHE_TTL", time.Hour),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "civicwatch.reports"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv gets a duration environment variable or returns a default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable or returns a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
