package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		t.Setenv("DB_URL", "postgres://user:pw@localhost:5432/snapdocs")
		t.Setenv("GEMINI_API_KEY", "AIzaTestKey")
		t.Setenv("GITHUB_TOKEN", "ghp_test")

		cfg, err := LoadConfig()
		require.NoError(t, err)

		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, ":8080", cfg.HTTPAddr)
		assert.Equal(t, 250, cfg.AIDailyLimit)
		assert.Equal(t, time.Second, cfg.AIMinInterval)
		assert.Equal(t, 3, cfg.JobAttempts)
		assert.Equal(t, 2*time.Second, cfg.JobBackoff)
		assert.Equal(t, 100, cfg.JobKeepCompleted)
		assert.Equal(t, 50, cfg.JobKeepFailed)
		assert.Equal(t, 30*time.Minute, cfg.StaleThreshold)
		assert.Equal(t, "postgres", cfg.QueueBackend)
		assert.True(t, cfg.FreeTierAI())
		assert.False(t, cfg.UsesGithubApp())
	})

	t.Run("requires DB_URL", func(t *testing.T) {
		t.Setenv("DB_URL", "")
		t.Setenv("GEMINI_API_KEY", "key")
		t.Setenv("GITHUB_TOKEN", "ghp_test")

		_, err := LoadConfig()
		assert.ErrorContains(t, err, "DB_URL")
	})

	t.Run("requires some GitHub credential", func(t *testing.T) {
		t.Setenv("DB_URL", "postgres://localhost/snapdocs")
		t.Setenv("GEMINI_API_KEY", "key")
		t.Setenv("GITHUB_TOKEN", "")

		_, err := LoadConfig()
		assert.ErrorContains(t, err, "GITHUB_TOKEN")
	})

	t.Run("rejects unknown queue backend", func(t *testing.T) {
		t.Setenv("DB_URL", "postgres://localhost/snapdocs")
		t.Setenv("GEMINI_API_KEY", "key")
		t.Setenv("GITHUB_TOKEN", "ghp_test")
		t.Setenv("QUEUE_BACKEND", "redis")

		_, err := LoadConfig()
		assert.ErrorContains(t, err, "QUEUE_BACKEND")
	})
}

func TestConfig_FreeTierAI(t *testing.T) {
	cases := []struct {
		name     string
		key      string
		override string
		want     bool
	}{
		{"studio key", "AIzaSyExample", "", true},
		{"paid key", "vertex-key", "", false},
		{"forced free", "vertex-key", "true", true},
		{"forced paid", "AIzaSyExample", "false", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Config{GeminiAPIKey: tc.key, AIFreeTier: tc.override}
			assert.Equal(t, tc.want, cfg.FreeTierAI())
		})
	}
}

func TestLoadDBURL(t *testing.T) {
	t.Setenv("DB_URL", "postgres://localhost/snapdocs")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GITHUB_TOKEN", "")

	url, err := LoadDBURL()
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/snapdocs", url)

	t.Setenv("DB_URL", "")
	_, err = LoadDBURL()
	assert.ErrorContains(t, err, "DB_URL")
}
