package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	ScenePath    string
	SceneWKID    int
	QueryLatency time.Duration
	ExportDir    string
	ExportDBPath string
	LogLevel     string
	LogFile      string
	Port         string
	Environment  string
	Watch        bool
}

// Load reads the configuration from environment variables.
func Load() *Config {
	return &Config{
		ScenePath:    getEnv("SCENE_PATH", "."),
		SceneWKID:    getEnvAsInt("SCENE_WKID", 3857),
		QueryLatency: time.Duration(getEnvAsInt("QUERY_LATENCY_MS", 0)) * time.Millisecond,
		ExportDir:    getEnv("EXPORT_DIR", "exports"),
		ExportDBPath: getEnv("EXPORT_DB_PATH", "data/exports.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFile:      getEnv("LOG_FILE", "sceneaoi.log"),
		Port:         getEnv("PORT", "3000"),
		Environment:  getEnv("ENV", "development"),
		Watch:        getEnvAsBool("SCENE_WATCH", true),
	}
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultVal
}
