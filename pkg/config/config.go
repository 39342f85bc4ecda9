// Package config loads runtime configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config captures runtime configuration for the rastreia service.
type Config struct {
	ListenAddr     string
	CatalogPath    string
	CacheDir       string
	JobsDir        string
	OpenAIAPIKey   string
	OpenAIModel    string
	OpenAIBaseURL  string
	CacheTTL       time.Duration
	SearchDeadline time.Duration
	FetchTimeout   time.Duration
	MaxConcurrency int
}

// FromEnv creates a configuration instance sourced from environment
// variables. A .env file in the working directory is loaded first when
// present.
func FromEnv() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		ListenAddr:     getEnv("RASTREIA_LISTEN_ADDR", ":8080"),
		CatalogPath:    getEnv("RASTREIA_CATALOG", ""),
		CacheDir:       getEnv("RASTREIA_CACHE_DIR", ""),
		JobsDir:        getEnv("RASTREIA_JOBS_DIR", "jobs"),
		OpenAIAPIKey:   getEnv("RASTREIA_OPENAI_API_KEY", os.Getenv("OPENAI_API_KEY")),
		OpenAIModel:    getEnv("RASTREIA_OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:  getEnv("RASTREIA_OPENAI_BASE_URL", ""),
		CacheTTL:       time.Hour,
		SearchDeadline: 45 * time.Second,
		FetchTimeout:   10 * time.Second,
		MaxConcurrency: 8,
	}

	if ttl := os.Getenv("RASTREIA_CACHE_TTL_MIN"); ttl != "" {
		var minutes int
		if _, err := fmt.Sscanf(ttl, "%d", &minutes); err != nil {
			return Config{}, fmt.Errorf("parse RASTREIA_CACHE_TTL_MIN: %w", err)
		}
		cfg.CacheTTL = time.Duration(minutes) * time.Minute
	}

	if deadline := os.Getenv("RASTREIA_SEARCH_DEADLINE_S"); deadline != "" {
		var seconds int
		if _, err := fmt.Sscanf(deadline, "%d", &seconds); err != nil {
			return Config{}, fmt.Errorf("parse RASTREIA_SEARCH_DEADLINE_S: %w", err)
		}
		cfg.SearchDeadline = time.Duration(seconds) * time.Second
	}

	if timeout := os.Getenv("RASTREIA_FETCH_TIMEOUT_S"); timeout != "" {
		var seconds int
		if _, err := fmt.Sscanf(timeout, "%d", &seconds); err != nil {
			return Config{}, fmt.Errorf("parse RASTREIA_FETCH_TIMEOUT_S: %w", err)
		}
		cfg.FetchTimeout = time.Duration(seconds) * time.Second
	}

	if conc := os.Getenv("RASTREIA_MAX_CONCURRENCY"); conc != "" {
		if _, err := fmt.Sscanf(conc, "%d", &cfg.MaxConcurrency); err != nil {
			return Config{}, fmt.Errorf("parse RASTREIA_MAX_CONCURRENCY: %w", err)
		}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
