// Package config loads process configuration from the environment and exam
// settings documents from JSON or YAML files.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/mcdev12/osce/go/internal/dbconfig"
)

// AppConfig is the process-level configuration.
type AppConfig struct {
	HTTPPort     string
	StoreBackend string
	DataDir      string
	TickInterval time.Duration
	SettingsFile string
	NATSURL      string
	LogLevel     string
	// PublishTicks also streams TimerTick events to NATS.
	PublishTicks bool
	DB           dbconfig.Config
}

// FromEnv reads AppConfig from the environment. An empty NATS_URL disables
// the NATS publishers.
func FromEnv() AppConfig {
	return AppConfig{
		HTTPPort:     getEnv("OSCE_HTTP_PORT", "8080"),
		StoreBackend: getEnv("OSCE_STORE", "badger"),
		DataDir:      getEnv("OSCE_DATA_DIR", "./data"),
		TickInterval: time.Duration(getEnvAsInt("OSCE_TICK_INTERVAL_MS", 100)) * time.Millisecond,
		SettingsFile: getEnv("OSCE_SETTINGS_FILE", ""),
		NATSURL:      getEnv("NATS_URL", ""),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		PublishTicks: getEnvAsBool("OSCE_PUBLISH_TICKS", false),
		DB:           dbconfig.NewConfigFromEnv(),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil && intValue > 0 {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
