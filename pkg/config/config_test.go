package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajharbinger/rei-deal-drop/internal/scoring"
)

func TestNew_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("MIN_REHAB_PER_SQFT", "")
	t.Setenv("ENV", "")
	t.Setenv("LISTING_ALLOWED_HOSTS", "")

	cfg := New()
	assert.Equal(t, "sqlite://dealdrop.db", cfg.DatabaseURL)
	assert.Equal(t, 10.0, cfg.MinRehabPerSqFt)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.HasPropertyDataCredentials())
	assert.Empty(t, cfg.GetListingHosts())
	assert.NoError(t, cfg.Validate())
}

func TestNew_EnvOverrides(t *testing.T) {
	t.Setenv("MIN_REHAB_PER_SQFT", "12.5")
	t.Setenv("PROPERTY_DATA_API_KEY", "key")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("RESCORE_BATCH_SIZE", "not-a-number")
	t.Setenv("LISTING_ALLOWED_HOSTS", " zillow.com, ,redfin.com")

	cfg := New()
	assert.Equal(t, 12.5, cfg.MinRehabPerSqFt)
	assert.True(t, cfg.HasPropertyDataCredentials())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.GetAllowedOrigins())
	assert.Equal(t, 200, cfg.RescoreBatchSize)
	assert.Equal(t, []string{"zillow.com", "redfin.com"}, cfg.GetListingHosts())
}

func TestValidate_ProductionSecret(t *testing.T) {
	cfg := &Config{DatabaseURL: "postgres://x", Environment: "production", JWTSecret: "short"}
	assert.Error(t, cfg.Validate())

	cfg.JWTSecret = "0123456789abcdef0123456789abcdef"
	assert.NoError(t, cfg.Validate())
}

func TestLoadScoringPolicy_Default(t *testing.T) {
	policy, err := LoadScoringPolicy("")
	require.NoError(t, err)
	assert.Equal(t, scoring.DefaultPolicy(), policy)
}

func TestLoadScoringPolicy_Overlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	content := `
version: "2025.2-conservative"
flip_arv_ratio: 0.65
pool_bonus: 0
verdicts:
  elite: 90
  strong: 75
  opportunity: 55
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	policy, err := LoadScoringPolicy(path)
	require.NoError(t, err)
	assert.Equal(t, "2025.2-conservative", policy.Version)
	assert.Equal(t, 0.65, policy.FlipARVRatio)
	assert.Equal(t, 0.0, policy.PoolBonus)
	assert.Equal(t, 90, policy.Verdicts.Elite)
	// untouched keys keep their defaults
	assert.Equal(t, 0.6, policy.NOIRatio)
	assert.Len(t, policy.CapRateBands, 4)
}

func TestLoadScoringPolicy_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("flip_weight: 0.9\n"), 0o600))

	_, err := LoadScoringPolicy(path)
	assert.Error(t, err)

	_, err = LoadScoringPolicy(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
