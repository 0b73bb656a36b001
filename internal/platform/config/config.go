// Package config reads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"backoffice/pkg/platform/middleware/metadata"
	pstrings "backoffice/pkg/platform/strings"
)

const (
	// devSigningKey is the placeholder shipped in old local setups.
	devSigningKey    = "dev-secret-key-change-in-production"
	minSigningKeyLen = 32
)

// Server captures process level configuration. Optional backends left empty
// fall back to in-memory implementations.
type Server struct {
	Addr            string
	LogLevel        string
	LogFormat       string
	SuperAdminRole  string
	SeedPath        string
	HistoryLimit    int
	JWTSigningKey   string
	AllowedOrigins  []string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	RateLimit       RateLimitConfig
	Redis           RedisConfig
	Postgres        PostgresConfig
	Kafka           KafkaConfig

	// TrustIdentityHeaders accepts X-User-* and X-Tenant-* identity without a
	// bearer token. Enable it only behind a gateway that strips client copies.
	TrustIdentityHeaders bool
	// TrustedProxies lists addresses or CIDRs allowed to set X-Forwarded-For.
	TrustedProxies []string
}

type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	Burst             int
}

type RedisConfig struct {
	URL          string
	KeyPrefix    string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type PostgresConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

type KafkaConfig struct {
	Brokers           []string
	Topic             string
	Partitions        int32
	ReplicationFactor int16
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:            envString("BACKOFFICE_ADDR", ":8080"),
		LogLevel:        envString("LOG_LEVEL", "info"),
		LogFormat:       envString("LOG_FORMAT", "json"),
		SuperAdminRole:  envString("SUPER_ADMIN_ROLE", "super_admin"),
		SeedPath:        os.Getenv("SEED_PATH"),
		HistoryLimit:    envInt("EVENT_HISTORY_LIMIT", 1000),
		JWTSigningKey:   os.Getenv("JWT_SIGNING_KEY"),
		AllowedOrigins:  envList("CORS_ALLOWED_ORIGINS"),
		RequestTimeout:  envDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout: envDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		RateLimit: RateLimitConfig{
			Enabled:           os.Getenv("RATE_LIMIT_DISABLED") != "true",
			RequestsPerSecond: envFloat("RATE_LIMIT_RPS", 20),
			Burst:             envInt("RATE_LIMIT_BURST", 40),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			KeyPrefix:    envString("REDIS_KEY_PREFIX", "backoffice:"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Postgres: PostgresConfig{
			DSN:          os.Getenv("POSTGRES_DSN"),
			MaxOpenConns: envInt("POSTGRES_MAX_OPEN_CONNS", 10),
			MaxIdleConns: envInt("POSTGRES_MAX_IDLE_CONNS", 5),
		},
		Kafka: KafkaConfig{
			Brokers:           envList("KAFKA_BROKERS"),
			Topic:             envString("KAFKA_TOPIC", "backoffice.events"),
			Partitions:        int32(envInt("KAFKA_PARTITIONS", 3)),
			ReplicationFactor: int16(envInt("KAFKA_REPLICATION_FACTOR", 1)),
		},
		TrustIdentityHeaders: os.Getenv("TRUST_IDENTITY_HEADERS") == "true",
		TrustedProxies:       envList("TRUSTED_PROXIES"),
	}
}

// Validate reports every invalid setting at once.
func (s Server) Validate() error {
	var errs []error
	if s.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	switch s.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log format %q must be json or text", s.LogFormat))
	}
	switch strings.ToLower(s.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log level %q is not recognised", s.LogLevel))
	}
	if s.SuperAdminRole == "" {
		errs = append(errs, errors.New("super admin role is required"))
	}
	if s.HistoryLimit <= 0 {
		errs = append(errs, errors.New("event history limit must be positive"))
	}
	switch {
	case s.JWTSigningKey == "":
		errs = append(errs, errors.New("jwt signing key is required"))
	case s.JWTSigningKey == devSigningKey:
		errs = append(errs, errors.New("jwt signing key must not be the development placeholder"))
	case len(s.JWTSigningKey) < minSigningKeyLen:
		errs = append(errs, fmt.Errorf("jwt signing key must be at least %d bytes", minSigningKeyLen))
	}
	if _, err := metadata.ParseTrustedProxies(s.TrustedProxies); err != nil {
		errs = append(errs, err)
	}
	if s.RateLimit.Enabled && (s.RateLimit.RequestsPerSecond <= 0 || s.RateLimit.Burst <= 0) {
		errs = append(errs, errors.New("rate limit rps and burst must be positive"))
	}
	if len(s.Kafka.Brokers) > 0 && s.Kafka.Topic == "" {
		errs = append(errs, errors.New("kafka topic is required when brokers are set"))
	}
	return errors.Join(errs...)
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return fallback
}

func envList(key string) []string {
	return pstrings.SplitList(os.Getenv(key))
}
