package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port              string
	DataDir           string
	DatabaseURL       string // when set, Postgres replaces the per-user JSON files
	ProviderURL       string
	ProviderToken     string
	DefaultCollection string
	SyncTimeout       time.Duration
	LogFile           string
}

func Load() Config {
	_ = godotenv.Load(".env")

	return Config{
		Port:              getEnv("PORT", "8080"),
		DataDir:           getEnv("DATA_DIR", "data"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		ProviderURL:       getEnv("PROVIDER_URL", ""),
		ProviderToken:     getEnv("PROVIDER_TOKEN", ""),
		DefaultCollection: getEnv("PROVIDER_COLLECTION", ""),
		SyncTimeout:       getDuration("SYNC_TIMEOUT_SECONDS", 10*time.Second),
		LogFile:           getEnv("LOG_FILE", ""),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return def
}
