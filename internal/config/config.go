package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type APIConfig struct {
	Addr        string
	DatabaseURL string
	APIKey      string
	CatalogPath string
	TickEvery   time.Duration
	AutoMigrate bool
}

type WorkerConfig struct {
	DatabaseURL string
	CatalogPath string
	TickEvery   time.Duration
	RunOnce     bool
}

type CLIConfig struct {
	APIBaseURL  string
	APIKey      string
	CatalogPath string
}

func LoadAPIFromEnv() (APIConfig, error) {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("REFINERY_API_ADDR", ":8080")
	}

	cfg := APIConfig{
		Addr:        addr,
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		APIKey:      strings.TrimSpace(os.Getenv("REFINERY_API_KEY")),
		CatalogPath: strings.TrimSpace(os.Getenv("REFINERY_CATALOG")),
		TickEvery:   envDurationDefault("REFINERY_TICK_EVERY", 5*time.Second),
		AutoMigrate: envBoolDefault("REFINERY_AUTO_MIGRATE", true),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.APIKey == "" {
		return cfg, fmt.Errorf("REFINERY_API_KEY is required")
	}
	if cfg.TickEvery <= 0 {
		return cfg, fmt.Errorf("REFINERY_TICK_EVERY must be positive")
	}
	return cfg, nil
}

func LoadWorkerFromEnv() (WorkerConfig, error) {
	cfg := WorkerConfig{
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		CatalogPath: strings.TrimSpace(os.Getenv("REFINERY_CATALOG")),
		TickEvery:   envDurationDefault("REFINERY_TICK_EVERY", 5*time.Second),
		RunOnce:     envBoolDefault("REFINERY_WORKER_RUN_ONCE", false),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.TickEvery <= 0 {
		return cfg, fmt.Errorf("REFINERY_TICK_EVERY must be positive")
	}
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	return CLIConfig{
		APIBaseURL:  strings.TrimRight(envDefault("RFX_API_BASE_URL", "http://localhost:8080"), "/"),
		APIKey:      strings.TrimSpace(os.Getenv("RFX_API_KEY")),
		CatalogPath: strings.TrimSpace(os.Getenv("REFINERY_CATALOG")),
	}
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
