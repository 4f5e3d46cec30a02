package config

import (
	"os"
	"strconv"
	"time"
)

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MongoConfig holds settings for the external document store mirror.
type MongoConfig struct {
	URI        string
	Database   string
	TimeoutSec int
}

// RedisConfig holds settings for the document read cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTLSec   int
}

// RelayConfig tunes the outbox relay workers.
type RelayConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	BaseBackoff  time.Duration
	ClaimTimeout time.Duration
	ApplyTimeout time.Duration
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost  string
	Port     string
	Database DatabaseConfig
	Mongo    MongoConfig
	Redis    RedisConfig
	Relay    RelayConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost: getEnv("APP_HOST", "localhost:8080"),
		Port:    getEnv("PORT", "8080"),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		Mongo: MongoConfig{
			URI:        getEnv("MONGO_URI", ""),
			Database:   getEnv("MONGO_DATABASE", "formvault"),
			TimeoutSec: getEnvInt("MONGO_TIMEOUT_SEC", 15),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			TTLSec:   getEnvInt("REDIS_TTL_SEC", 300),
		},
		Relay: RelayConfig{
			PollInterval: getEnvDuration("RELAY_POLL_INTERVAL_MS", 500*time.Millisecond),
			BatchSize:    getEnvInt("RELAY_BATCH_SIZE", 20),
			MaxAttempts:  getEnvInt("RELAY_MAX_ATTEMPTS", 5),
			BaseBackoff:  getEnvDuration("RELAY_BASE_BACKOFF_MS", 200*time.Millisecond),
			ClaimTimeout: getEnvDuration("RELAY_CLAIM_TIMEOUT_MS", 60_000*time.Millisecond),
			ApplyTimeout: getEnvDuration("RELAY_APPLY_TIMEOUT_MS", 20_000*time.Millisecond),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		ms, err := strconv.Atoi(v)
		if err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return def
}
