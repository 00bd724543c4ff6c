package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr string
	// DatabaseDSN selects the Postgres store; empty runs the in-memory one.
	DatabaseDSN string

	HeartbeatInterval time.Duration
	PresenceTimeout   time.Duration
	StaleAfter        time.Duration
}

func Load() (*Config, error) {
	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		Addr:        getEnv("ARMADA_ADDR", ":8080"),
		DatabaseDSN: getEnv("ARMADA_DATABASE_DSN", ""),
	}

	var err error
	if cfg.HeartbeatInterval, err = getDuration("ARMADA_HEARTBEAT_INTERVAL", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.PresenceTimeout, err = getDuration("ARMADA_PRESENCE_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.StaleAfter, err = getDuration("ARMADA_STALE_AFTER", 30*time.Second); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
