package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures process-level configuration. Values come from the
// environment so main stays lean and deployments stay twelve-factor.
type Config struct {
	Addr          string
	DatabaseURL   string
	RedisURL      string
	KafkaSeeds    string
	JWTSigningKey string
	// WarnRatio is the fraction of a nexus threshold at which a state flips
	// to "warning". 0.90 by default; statutory guidance does not pin it.
	WarnRatio       float64
	ShutdownTimeout time.Duration
}

// FromEnv builds a Config from environment variables with dev defaults.
func FromEnv() Config {
	cfg := Config{
		Addr:            getenv("VERITAX_ADDR", ":8080"),
		DatabaseURL:     os.Getenv("VERITAX_DATABASE_URL"),
		RedisURL:        os.Getenv("VERITAX_REDIS_URL"),
		KafkaSeeds:      os.Getenv("VERITAX_KAFKA_SEEDS"),
		JWTSigningKey:   getenv("VERITAX_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		WarnRatio:       0.90,
		ShutdownTimeout: 10 * time.Second,
	}
	if raw := os.Getenv("VERITAX_WARN_RATIO"); raw != "" {
		if ratio, err := strconv.ParseFloat(raw, 64); err == nil && ratio > 0 && ratio < 1 {
			cfg.WarnRatio = ratio
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
