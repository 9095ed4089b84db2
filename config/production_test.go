package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_SQLITE_PATH", "test.db")
	t.Setenv("JWT_SECRET_KEY", "0123456789abcdef0123456789abcdef")
	t.Setenv("REGISTRY_OWNER", "owner")
}

func TestLoadProductionConfig(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("REGISTRY_FALLBACK_GRACE_PERIOD", "90m")
	t.Setenv("REGISTRY_MAX_APPLICATION_DURATION", "not-a-duration")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := LoadProductionConfig()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "owner", cfg.Registry.Owner)
	assert.Equal(t, "registry", cfg.Registry.Authority)
	assert.Equal(t, 90*time.Minute, cfg.Registry.FallbackGracePeriod)
	// unparsable values fall back to the default
	assert.Equal(t, 30*24*time.Hour, cfg.Registry.MaxApplicationDuration)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Security.AllowedOrigins)
	assert.True(t, cfg.Events.Persist)
}

func TestValidateProductionConfig(t *testing.T) {
	setRequiredEnv(t)
	cfg, err := LoadProductionConfig()
	require.NoError(t, err)

	t.Run("CollectsEveryProblem", func(t *testing.T) {
		bad := *cfg
		bad.JWT.SecretKey = "short"
		bad.Registry.Owner = ""
		bad.Logging.Level = "loud"

		err := ValidateProductionConfig(&bad)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "JWT_SECRET_KEY")
		assert.Contains(t, err.Error(), "REGISTRY_OWNER")
		assert.Contains(t, err.Error(), "LOG_LEVEL")
	})

	t.Run("OwnerMustNotBeAuthority", func(t *testing.T) {
		bad := *cfg
		bad.Registry.Authority = bad.Registry.Owner
		assert.ErrorContains(t, ValidateProductionConfig(&bad), "REGISTRY_AUTHORITY")
	})

	t.Run("UnknownDriver", func(t *testing.T) {
		bad := *cfg
		bad.Database.Driver = "mysql"
		assert.ErrorContains(t, ValidateProductionConfig(&bad), "DB_DRIVER")
	})

	t.Run("PostgresNeedsPassword", func(t *testing.T) {
		bad := *cfg
		bad.Database.Driver = "postgres"
		bad.Database.Password = ""
		assert.ErrorContains(t, ValidateProductionConfig(&bad), "DB_PASSWORD")
	})
}
