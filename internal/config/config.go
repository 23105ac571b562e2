// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	LogLevel string `mapstructure:"LOG_LEVEL"`
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	DBURL    string `mapstructure:"DB_URL"`

	GithubAppID          int64  `mapstructure:"GITHUB_APP_ID"`
	GithubPrivateKey     string `mapstructure:"GITHUB_PRIVATE_KEY"`
	GithubPrivateKeyPath string `mapstructure:"GITHUB_PRIVATE_KEY_PATH"`
	GithubToken          string `mapstructure:"GITHUB_TOKEN"`
	GithubWebhookSecret  string `mapstructure:"GITHUB_WEBHOOK_SECRET"`
	GithubAPIURL         string `mapstructure:"GITHUB_API_URL"`

	GeminiAPIKey  string        `mapstructure:"GEMINI_API_KEY"`
	GeminiModel   string        `mapstructure:"GEMINI_MODEL"`
	AIDailyLimit  int           `mapstructure:"AI_DAILY_LIMIT"`
	AIMinInterval time.Duration `mapstructure:"AI_MIN_INTERVAL"`
	AIFreeTier    string        `mapstructure:"AI_FREE_TIER"`

	QueueBackend      string        `mapstructure:"QUEUE_BACKEND"`
	QueuePollInterval time.Duration `mapstructure:"QUEUE_POLL_INTERVAL"`
	JobAttempts       int           `mapstructure:"JOB_ATTEMPTS"`
	JobBackoff        time.Duration `mapstructure:"JOB_BACKOFF"`
	JobKeepCompleted  int           `mapstructure:"JOB_KEEP_COMPLETED"`
	JobKeepFailed     int           `mapstructure:"JOB_KEEP_FAILED"`

	StaleThreshold      time.Duration `mapstructure:"STALE_THRESHOLD"`
	SyncInterval        time.Duration `mapstructure:"SYNC_INTERVAL"`
	HealthCheckInterval time.Duration `mapstructure:"HEALTH_CHECK_INTERVAL"`
	SummaryDiffBudget   int           `mapstructure:"SUMMARY_DIFF_BUDGET"`
}

// FreeTierAI reports whether the AI credential is subject to the daily quota.
// AI_FREE_TIER=true|false overrides the key-prefix detection.
func (c *Config) FreeTierAI() bool {
	switch strings.ToLower(c.AIFreeTier) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return strings.HasPrefix(c.GeminiAPIKey, "AIza")
}

// UsesGithubApp reports whether GitHub App credentials are configured.
func (c *Config) UsesGithubApp() bool {
	return c.GithubAppID != 0 && c.GithubPrivateKey != ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("GEMINI_MODEL", "gemini-2.5-flash")
	v.SetDefault("AI_DAILY_LIMIT", 250)
	v.SetDefault("AI_MIN_INTERVAL", "1s")
	v.SetDefault("QUEUE_BACKEND", "postgres")
	v.SetDefault("QUEUE_POLL_INTERVAL", "500ms")
	v.SetDefault("JOB_ATTEMPTS", 3)
	v.SetDefault("JOB_BACKOFF", "2s")
	v.SetDefault("JOB_KEEP_COMPLETED", 100)
	v.SetDefault("JOB_KEEP_FAILED", 50)
	v.SetDefault("STALE_THRESHOLD", "30m")
	v.SetDefault("SYNC_INTERVAL", "30m")
	v.SetDefault("HEALTH_CHECK_INTERVAL", "1h")
	v.SetDefault("SUMMARY_DIFF_BUDGET", 60000)
}

// LoadConfig reads configuration from file and/or environment variables.
func LoadConfig() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDBURL reads only the database URL, for commands that need nothing else.
func LoadDBURL() (string, error) {
	cfg, err := load()
	if err != nil {
		return "", err
	}
	if cfg.DBURL == "" {
		return "", errors.New("DB_URL is a required configuration field")
	}
	return cfg.DBURL, nil
}

func load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Load from .env file if it exists
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // Ignore error if file not found

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only resolves keys viper already knows about.
	for _, key := range []string{
		"DB_URL", "GITHUB_APP_ID", "GITHUB_PRIVATE_KEY", "GITHUB_PRIVATE_KEY_PATH", "GITHUB_TOKEN",
		"GITHUB_WEBHOOK_SECRET", "GITHUB_API_URL", "GEMINI_API_KEY", "AI_FREE_TIER",
	} {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.GithubPrivateKey == "" && cfg.GithubPrivateKeyPath != "" {
		pem, err := os.ReadFile(cfg.GithubPrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("reading GITHUB_PRIVATE_KEY_PATH: %w", err)
		}
		cfg.GithubPrivateKey = string(pem)
	}
	return &cfg, nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.DBURL == "" {
		return errors.New("DB_URL is a required configuration field")
	}
	if c.GeminiAPIKey == "" {
		return errors.New("GEMINI_API_KEY is a required configuration field")
	}
	if !c.UsesGithubApp() && c.GithubToken == "" {
		return errors.New("either GITHUB_APP_ID with GITHUB_PRIVATE_KEY or GITHUB_TOKEN must be set")
	}
	if c.QueueBackend != "postgres" && c.QueueBackend != "memory" {
		return fmt.Errorf("QUEUE_BACKEND must be 'postgres' or 'memory', got %q", c.QueueBackend)
	}
	if c.JobAttempts < 1 {
		return errors.New("JOB_ATTEMPTS must be at least 1")
	}
	if c.AIDailyLimit < 1 {
		return errors.New("AI_DAILY_LIMIT must be at least 1")
	}
	if c.StaleThreshold <= 0 || c.SyncInterval <= 0 || c.HealthCheckInterval <= 0 {
		return errors.New("STALE_THRESHOLD, SYNC_INTERVAL and HEALTH_CHECK_INTERVAL must be positive durations")
	}
	return nil
}
