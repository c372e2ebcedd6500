package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.App.Environment)
	assert.Equal(t, "UTC", cfg.App.Timezone)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 3, cfg.API.MaxRetries)
	assert.True(t, cfg.Auth.DevTokenEndpoint)
	assert.NotEmpty(t, cfg.Local.DataDir)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("APP_TIMEZONE", "Europe/London")
	t.Setenv("OWLET_API_BASE_URL", "https://sync.example.net")
	t.Setenv("OWLET_API_TIMEOUT", "5s")
	t.Setenv("HTTP_ADDR", ":9999")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Europe/London", cfg.App.Timezone)
	assert.Equal(t, "Europe/London", cfg.App.Location.String())
	assert.Equal(t, "https://sync.example.net", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.API.RequestTimeout)
	assert.Equal(t, ":9999", cfg.HTTP.Addr)
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("AUTH_DEV_TOKEN_ENDPOINT", "false")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTH_JWT_SECRET")

	t.Setenv("AUTH_JWT_SECRET", "super-secret")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}

func TestFeatureFlags_Defaults(t *testing.T) {
	ff := LoadFeatureFlags()

	assert.True(t, ff.IsEnabled(FeatureStreakFreeze))
	assert.True(t, ff.IsEnabled(FeatureAutoPush))
	assert.False(t, ff.IsEnabled(FeatureWordScramble))
}

func TestFeatureFlags_EnvOverride(t *testing.T) {
	t.Setenv("FEATURE_SYNC_AUTO_PUSH", "false")
	t.Setenv("FEATURE_CONTENT_WORD_SCRAMBLE", "true")

	ff := LoadFeatureFlags()

	assert.False(t, ff.IsEnabled(FeatureAutoPush))
	assert.True(t, ff.IsEnabled(FeatureWordScramble))
}

func TestFeatureFlags_RolloutIsSticky(t *testing.T) {
	t.Setenv("FEATURE_GAMIFICATION_BADGES_ROLLOUT", "50")
	ff := LoadFeatureFlags()

	first := ff.IsEnabledFor(FeatureBadges, "guest-abc")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ff.IsEnabledFor(FeatureBadges, "guest-abc"))
	}
}

func TestFeatureFlags_Set(t *testing.T) {
	ff := LoadFeatureFlags()

	ff.Set(FeatureWordScramble, true)
	assert.True(t, ff.IsEnabled(FeatureWordScramble))

	ff.Set(FeatureWordScramble, false)
	assert.False(t, ff.IsEnabled(FeatureWordScramble))
}
