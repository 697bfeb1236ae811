package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort      string
	FirebaseProject string
	StorageBucket   string
	Environment     string
	// WSIdleTimeout is how long a connection may stay silent (no frames, no
	// pong) before it is forcibly unregistered.
	WSIdleTimeout time.Duration
}

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		FirebaseProject: getEnv("FIREBASE_PROJECT_ID", ""),
		StorageBucket:   getEnv("STORAGE_BUCKET", ""),
		Environment:     getEnv("ENVIRONMENT", "development"),
		WSIdleTimeout:   time.Duration(getEnvAsInt64("WS_IDLE_TIMEOUT_SECONDS", 60)) * time.Second,
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}
