package config

import (
	"os"
	"strings"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr           string
	LogLevel       string
	DatabaseURL    string
	RedisAddr      string
	KafkaBrokers   []string
	KafkaTopic     string
	JWTSigningKey  string
	JWTIssuer      string
	AccessTokenTTL time.Duration
	AuditQueueSize int
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:           getenv("FLEETTRACK_ADDR", ":8080"),
		LogLevel:       getenv("FLEETTRACK_LOG_LEVEL", "info"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		KafkaTopic:     getenv("KAFKA_AUDIT_TOPIC", "fleettrack.audit"),
		JWTSigningKey:  getenv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		JWTIssuer:      getenv("JWT_ISSUER", "fleettrack"),
		AccessTokenTTL: getDuration("ACCESS_TOKEN_TTL", 8*time.Hour),
		AuditQueueSize: 1024,
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
