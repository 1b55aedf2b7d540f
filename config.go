package main

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config is read once from the environment at startup.
type Config struct {
	Port               string
	DBPath             string
	DBDebug            bool
	JWTSecret          string
	JWTIssuer          string
	RedisAddr          string
	RedisPassword      string
	HistoryPrefix      string
	HistoryLimit       int
	CORSAllowedOrigins string
	DelayScanInterval  time.Duration
	DigestHour         int
	SendBuffer         int
	ShutdownTimeout    time.Duration
}

func loadConfig() Config {
	cfg := Config{
		Port:               getEnv("PORT", "3000"),
		DBPath:             getEnv("DB_PATH", "ops.db"),
		DBDebug:            getEnvBool("DB_DEBUG", false),
		JWTSecret:          getEnv("JWT_SECRET", "change-me-in-production"),
		JWTIssuer:          getEnv("JWT_ISSUER", "ops-dashboard"),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		HistoryPrefix:      getEnv("HISTORY_PREFIX", "chat:history:"),
		HistoryLimit:       getEnvInt("HISTORY_LIMIT", 100),
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:8080"),
		DelayScanInterval:  getEnvDuration("DELAY_SCAN_INTERVAL", time.Hour),
		DigestHour:         getEnvInt("DIGEST_HOUR", 9),
		SendBuffer:         getEnvInt("SEND_BUFFER", 64),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}
	if cfg.JWTSecret == "change-me-in-production" {
		log.Println("Warning: JWT_SECRET is not set, using the development secret")
	}
	return cfg
}

// getEnv returns environment variable or default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns environment variable as int or default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Printf("Warning: invalid int value for %s: %s, using default: %d", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvDuration returns environment variable as duration or default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		log.Printf("Warning: invalid duration value for %s: %s, using default: %s", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvBool returns environment variable as bool or default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
		log.Printf("Warning: invalid bool value for %s: %s, using default: %t", key, value, defaultValue)
	}
	return defaultValue
}
