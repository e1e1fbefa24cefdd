// Package config provides configuration for the chat gateway.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the gateway configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Database
	DatabaseURL string

	// RAG backend
	RAGBaseURL string
	RAGTimeout time.Duration

	// Logging
	Debug bool
}

// Load loads configuration from the environment, reading a local .env file
// first when one exists.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		HTTPPort:    getEnvInt("HTTP_PORT", 8088),
		DatabaseURL: getEnv("DATABASE_URL", "file:boltchat.db?cache=shared&mode=rwc"),
		RAGBaseURL:  getEnv("RAG_BASE_URL", "http://localhost:8000"),
		RAGTimeout:  time.Duration(getEnvInt("RAG_TIMEOUT_MS", 300000)) * time.Millisecond,
		Debug:       getEnvBool("DEBUG", false),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if boolVal, err := strconv.ParseBool(val); err == nil {
			return boolVal
		}
	}
	return defaultVal
}
