package main

import (
	"log"
	"os"

	"checkout-core/internal/config"
)

// Config holds the worker process's own settings, layered on top of
// the shared config.Config the container already loads.
type Config struct {
	RedisAddr string
	App       *config.Config
}

func loadConfig(app *config.Config) *Config {
	cfg := &Config{
		RedisAddr: getEnv("REDIS_HOST", "localhost:6379"),
		App:       app,
	}

	log.Printf("[Config] Redis: %s", cfg.RedisAddr)
	return cfg
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
