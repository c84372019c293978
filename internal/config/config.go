package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every knob the service reads at startup. It is built once in
// main and passed by reference into the components that need it; no pipeline
// code reads the environment directly.
type Config struct {
	ListenAddr string

	// External recognition engines.
	DocumentEngineURL string
	FaceEngineURL     string
	EngineTimeout     time.Duration

	DatabaseDSN string
	RedisAddr   string

	JWTSecret   string
	JWTAudience string
}

// Load builds a Config from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:        getEnvOrDefault("LISTEN_ADDR", ":8080"),
		DocumentEngineURL: getEnvOrDefault("DOCUMENT_ENGINE_URL", "http://document-engine:8083"),
		FaceEngineURL:     getEnvOrDefault("FACE_ENGINE_URL", "http://face-engine:41101"),
		EngineTimeout:     getEnvAsDurationOrDefault("ENGINE_TIMEOUT", 30*time.Second),
		DatabaseDSN:       getEnvOrDefault("DATABASE_DSN", "host=postgres user=postgres password=postgres dbname=idverify port=5432 sslmode=disable"),
		RedisAddr:         getEnvOrDefault("REDIS_ADDR", "redis:6379"),
		JWTSecret:         getEnvOrDefault("JWT_SECRET", "dev-secret"),
		JWTAudience:       os.Getenv("JWT_AUDIENCE"),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET must not be empty")
	}
	if cfg.EngineTimeout <= 0 {
		return nil, fmt.Errorf("ENGINE_TIMEOUT must be positive, got %v", cfg.EngineTimeout)
	}

	return cfg, nil
}

func getEnvOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvAsDurationOrDefault(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}
