// Package config builds runtime configuration from the environment so main
// stays lean. An optional .env file is honored for local development.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTP     HTTPConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	JWT      JWTConfig
	Geofence GeofenceConfig
}

type HTTPConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

type PostgresConfig struct {
	// URL is a pgx-compatible connection string. Empty means run on the
	// in-memory stores (development and unit-test wiring).
	URL string
}

type RedisConfig struct {
	// URL is a go-redis connection URL. Empty disables the Redis transition
	// lease; the store-level CAS still serializes transitions.
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type KafkaConfig struct {
	// Brokers empty means audit events stay on the in-process worker.
	Brokers []string
	Topic   string
}

type JWTConfig struct {
	SigningKey string
}

type GeofenceConfig struct {
	Enabled      bool
	Latitude     float64
	Longitude    float64
	RadiusMeters float64
}

// FromEnv reads PRESENTE_* variables, loading .env first when present.
func FromEnv() Config {
	_ = godotenv.Load()

	return Config{
		HTTP: HTTPConfig{
			Addr:            envString("PRESENTE_ADDR", ":8080"),
			ShutdownTimeout: envDuration("PRESENTE_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Postgres: PostgresConfig{
			URL: os.Getenv("PRESENTE_POSTGRES_URL"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("PRESENTE_REDIS_URL"),
			PoolSize:     envInt("PRESENTE_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("PRESENTE_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("PRESENTE_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("PRESENTE_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("PRESENTE_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: envList("PRESENTE_KAFKA_BROKERS"),
			Topic:   envString("PRESENTE_KAFKA_TOPIC", "presente.attendance.events"),
		},
		JWT: JWTConfig{
			SigningKey: envString("PRESENTE_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		},
		Geofence: GeofenceConfig{
			Enabled:      os.Getenv("PRESENTE_GEOFENCE_ENABLED") == "true",
			Latitude:     envFloat("PRESENTE_GEOFENCE_LAT", 0),
			Longitude:    envFloat("PRESENTE_GEOFENCE_LON", 0),
			RadiusMeters: envFloat("PRESENTE_GEOFENCE_RADIUS_M", 100),
		},
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
