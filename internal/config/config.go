// Package config provides environment-based configuration for the service.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/santiago/listing-enricher/internal/marketplace"
)

// Defaults for optional settings.
const (
	DefaultPort        = 8080
	DefaultWorkers     = 4
	DefaultGeminiModel = "gemini-2.0-flash"
)

// Config holds all service settings. Values come from the environment; a
// .env file is loaded by the CLI entry point before Load runs.
type Config struct {
	Port        int
	Workers     int
	DatabaseURL string

	GeminiAPIKey string
	GeminiModel  string

	MeliBaseURL      string
	MeliAccessToken  string
	MeliRefreshToken string
	MeliClientID     string
	MeliClientSecret string
}

// Load reads configuration from the environment, applying defaults for
// optional values.
func Load() (*Config, error) {
	cfg := &Config{
		Port:    DefaultPort,
		Workers: DefaultWorkers,

		DatabaseURL: os.Getenv("DATABASE_URL"),

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  envOr("GEMINI_MODEL", DefaultGeminiModel),

		MeliBaseURL:      envOr("MELI_BASE_URL", marketplace.DefaultBaseURL),
		MeliAccessToken:  os.Getenv("MELI_ACCESS_TOKEN"),
		MeliRefreshToken: os.Getenv("MELI_REFRESH_TOKEN"),
		MeliClientID:     os.Getenv("MELI_CLIENT_ID"),
		MeliClientSecret: os.Getenv("MELI_CLIENT_SECRET"),
	}

	// Fall back to GOOGLE_API_KEY when GEMINI_API_KEY is not set.
	if cfg.GeminiAPIKey == "" {
		cfg.GeminiAPIKey = os.Getenv("GOOGLE_API_KEY")
	}

	if port := os.Getenv("PORT"); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("config error: invalid PORT %q: %w", port, err)
		}
		cfg.Port = n
	}

	if workers := os.Getenv("WORKERS"); workers != "" {
		n, err := strconv.Atoi(workers)
		if err != nil {
			return nil, fmt.Errorf("config error: invalid WORKERS %q: %w", workers, err)
		}
		cfg.Workers = n
	}

	return cfg, nil
}

// Validate checks that the settings required to serve are present.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("config error: DATABASE_URL is required")
	}
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("config error: GEMINI_API_KEY is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config error: port %d out of range", c.Port)
	}
	if c.Workers < 1 {
		return fmt.Errorf("config error: workers must be at least 1")
	}
	return nil
}

// Marketplace returns the marketplace client configuration.
func (c *Config) Marketplace() marketplace.Config {
	return marketplace.Config{
		BaseURL:      c.MeliBaseURL,
		AccessToken:  c.MeliAccessToken,
		RefreshToken: c.MeliRefreshToken,
		ClientID:     c.MeliClientID,
		ClientSecret: c.MeliClientSecret,
	}
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
