// Package config reads process configuration from the environment so main
// stays lean. A .env file, when present, is loaded first for development.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Server captures the full process configuration.
type Server struct {
	Addr          string
	PostgresDSN   string
	RedisURL      string
	KafkaBrokers  []string
	KafkaTopic    string
	JWTSigningKey string
	JWTIssuer     string

	// PoolAccount custodies circle contributions and protocol deposits.
	PoolAccount string

	RateLimit RateLimit
}

// RateLimit configures the sliding-window limiter on mutating routes.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

// FromEnv builds a Server config from environment variables, loading .env
// first when one exists.
func FromEnv() Server {
	_ = godotenv.Load()

	return Server{
		Addr:          envOr("SUSU_ADDR", ":8080"),
		PostgresDSN:   os.Getenv("SUSU_POSTGRES_DSN"),
		RedisURL:      os.Getenv("SUSU_REDIS_URL"),
		KafkaBrokers:  splitList(os.Getenv("SUSU_KAFKA_BROKERS")),
		KafkaTopic:    envOr("SUSU_KAFKA_TOPIC", "susu.circle.signals"),
		JWTSigningKey: envOr("SUSU_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		JWTIssuer:     envOr("SUSU_JWT_ISSUER", "susu"),
		PoolAccount:   envOr("SUSU_POOL_ACCOUNT", "susu-pool"),
		RateLimit: RateLimit{
			Requests: envIntOr("SUSU_RATE_LIMIT_REQUESTS", 60),
			Window:   envDurationOr("SUSU_RATE_LIMIT_WINDOW", time.Minute),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
