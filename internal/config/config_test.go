package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"REPOLENS_ENVIRONMENT",
		"PORT",
		"REPOLENS_CACHE_MAX_SIZE",
		"GITHUB_API_TOKEN",
		"SENTRY_DSN",
		"DB_USERNAME",
		"DB_PASSWORD",
		"DB_HOST",
		"OTEL_EXPORTER_OTLP_ENDPOINT",
	} {
		t.Setenv(key, "")
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Run("missing environment", func(t *testing.T) {
		clearEnv(t)

		// t.Setenv can't unset, so point the test at an empty value
		_, err := ConfigFromEnv()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidValue)
	})

	t.Run("invalid environment", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("REPOLENS_ENVIRONMENT", "prod")

		_, err := ConfigFromEnv()
		assert.ErrorIs(t, err, ErrInvalidValue)
	})

	t.Run("development defaults", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("REPOLENS_ENVIRONMENT", "development")

		conf, err := ConfigFromEnv()
		require.NoError(t, err)

		assert.True(t, conf.IsDevelopment())
		assert.False(t, conf.IsProduction())
		assert.Equal(t, "8080", conf.Port())
		assert.Equal(t, defaultCacheMaxSize, conf.CacheMaxSize())
		assert.Empty(t, conf.GitHubToken())
	})

	t.Run("production requires sentry and db settings", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("REPOLENS_ENVIRONMENT", "production")

		_, err := ConfigFromEnv()
		assert.ErrorIs(t, err, ErrMissingRequiredValue)

		t.Setenv("SENTRY_DSN", "https://key@sentry.example/1")
		t.Setenv("DB_USERNAME", "repolens")
		t.Setenv("DB_PASSWORD", "hunter2")
		t.Setenv("DB_HOST", "db.internal")

		conf, err := ConfigFromEnv()
		require.NoError(t, err)
		assert.True(t, conf.IsProduction())
		assert.Equal(t, "repolens", conf.DBUsername())
	})

	t.Run("cache max size", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("REPOLENS_ENVIRONMENT", "development")
		t.Setenv("REPOLENS_CACHE_MAX_SIZE", "64")

		conf, err := ConfigFromEnv()
		require.NoError(t, err)
		assert.Equal(t, 64, conf.CacheMaxSize())

		for _, invalid := range []string{"not-a-number", "0", "-5"} {
			t.Setenv("REPOLENS_CACHE_MAX_SIZE", invalid)

			_, err := ConfigFromEnv()
			assert.ErrorIs(t, err, ErrInvalidValue, "input: %s", invalid)
		}
	})

	t.Run("non-sensitive string hides secrets", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("REPOLENS_ENVIRONMENT", "development")
		t.Setenv("GITHUB_API_TOKEN", "ghp_secret")

		conf, err := ConfigFromEnv()
		require.NoError(t, err)
		assert.NotContains(t, conf.NonSensitiveString(), "ghp_secret")
	})
}
