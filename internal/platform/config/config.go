package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	pstrings "convoca/pkg/platform/strings"
)

// Config captures everything main needs to wire the service. Values come
// from the environment so deployments stay twelve-factor.
type Config struct {
	Addr            string
	DatabaseURL     string
	RedisURL        string
	KafkaBrokers    []string
	KafkaTopic      string
	JWTSigningKey   string
	SummaryCacheTTL time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	EventBufferSize int
	LogLevel        string
	LogFormat       string
}

// FromEnv builds a Config from environment variables so main stays lean.
// Every value has a development default; DATABASE_URL empty means the
// in-memory stores back the service.
func FromEnv() Config {
	return Config{
		Addr:            envOr("CONVOCA_ADDR", ":8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		KafkaBrokers:    splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:      envOr("KAFKA_TOPIC", "convoca.lifecycle"),
		JWTSigningKey:   envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		SummaryCacheTTL: envDuration("SUMMARY_CACHE_TTL", 5*time.Minute),
		RequestTimeout:  envDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout: envDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		EventBufferSize: envInt("EVENT_BUFFER_SIZE", 256),
		LogLevel:        envOr("LOG_LEVEL", "info"),
		LogFormat:       envOr("LOG_FORMAT", "json"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
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

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	return pstrings.DedupeAndTrim(strings.Split(v, ","))
}
