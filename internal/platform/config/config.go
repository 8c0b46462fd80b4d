package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything the verification service reads from the
// environment so main stays lean.
type Config struct {
	Addr          string
	PostgresURL   string
	JWTSigningKey string

	Redis RedisConfig
	Kafka KafkaConfig

	// Verification attempt throttling.
	VerifyAttemptLimit  int
	VerifyAttemptWindow time.Duration
}

// RedisConfig holds connection settings for the rate-limit store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds settings for the best-effort audit mirror.
type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

// FromEnv builds a Config from environment variables, applying development
// defaults where a variable is unset. Postgres, Redis, and Kafka are all
// optional; unset URLs select the in-memory implementations.
func FromEnv() Config {
	cfg := Config{
		Addr:                getEnv("EDUEASY_ADDR", ":8080"),
		PostgresURL:         os.Getenv("EDUEASY_POSTGRES_URL"),
		JWTSigningKey:       getEnv("EDUEASY_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		VerifyAttemptLimit:  getEnvInt("EDUEASY_VERIFY_ATTEMPT_LIMIT", 10),
		VerifyAttemptWindow: getEnvDuration("EDUEASY_VERIFY_ATTEMPT_WINDOW", time.Hour),
		Redis: RedisConfig{
			URL:          os.Getenv("EDUEASY_REDIS_URL"),
			PoolSize:     getEnvInt("EDUEASY_REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("EDUEASY_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("EDUEASY_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("EDUEASY_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("EDUEASY_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			AuditTopic: getEnv("EDUEASY_AUDIT_TOPIC", "edueasy.audit"),
		},
	}
	if brokers := os.Getenv("EDUEASY_KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = strings.Split(brokers, ",")
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
