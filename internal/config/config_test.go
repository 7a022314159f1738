package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/enricher")
	t.Setenv("GEMINI_API_KEY", "key-123")
	t.Setenv("PORT", "")
	t.Setenv("WORKERS", "")
	t.Setenv("GEMINI_MODEL", "")
	t.Setenv("MELI_BASE_URL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultWorkers, cfg.Workers)
	assert.Equal(t, DefaultGeminiModel, cfg.GeminiModel)
	assert.Equal(t, "https://api.mercadolibre.com", cfg.MeliBaseURL)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_GoogleAPIKeyFallback(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "google-key")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "google-key", cfg.GeminiAPIKey)
}

func TestLoad_InvalidPort(t *testing.T) {
	t.Setenv("PORT", "not-a-number")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid PORT")
}

func TestValidate_MissingRequired(t *testing.T) {
	cfg := &Config{Port: DefaultPort, Workers: DefaultWorkers}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")

	cfg.DatabaseURL = "postgres://localhost/enricher"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
}

func TestMarketplaceConfig(t *testing.T) {
	t.Setenv("MELI_BASE_URL", "https://sandbox.mercadolibre.com")
	t.Setenv("MELI_ACCESS_TOKEN", "token")
	t.Setenv("MELI_CLIENT_ID", "cid")

	cfg, err := Load()
	require.NoError(t, err)

	mc := cfg.Marketplace()
	assert.Equal(t, "https://sandbox.mercadolibre.com", mc.BaseURL)
	assert.Equal(t, "token", mc.AccessToken)
	assert.Equal(t, "cid", mc.ClientID)
}
