package dbconfig

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Config holds Postgres connection settings for the snapshot store.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxConns        int32
	ConnectTimeout  time.Duration
	MaxConnIdleTime time.Duration
}

// NewConfigFromEnv reads OSCE_DB_* environment variables (with defaults).
// OSCE_DATABASE_URL, when set, wins over the individual fields in DSN.
func NewConfigFromEnv() Config {
	return Config{
		Host:            getEnv("OSCE_DB_HOST", "localhost"),
		Port:            getEnvAsInt("OSCE_DB_PORT", 5432),
		User:            getEnv("OSCE_DB_USER", "postgres"),
		Password:        getEnv("OSCE_DB_PASSWORD", "postgres"),
		Database:        getEnv("OSCE_DB_NAME", "osce"),
		SSLMode:         getEnv("OSCE_DB_SSLMODE", "disable"),
		MaxConns:        int32(getEnvAsInt("OSCE_DB_MAX_CONNS", 4)),
		ConnectTimeout:  time.Duration(getEnvAsInt("OSCE_DB_CONNECT_TIMEOUT_SEC", 5)) * time.Second,
		MaxConnIdleTime: 5 * time.Minute,
	}
}

// DSN returns the Postgres connection URL.
func (c Config) DSN() string {
	if v := os.Getenv("OSCE_DATABASE_URL"); v != "" {
		return v
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.User), url.QueryEscape(c.Password), c.Host, c.Port, c.Database, c.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}
