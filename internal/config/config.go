// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration.
type Config struct {
	// Env is the deployment environment ("development" or "production").
	// Development must be opted into explicitly.
	Env string

	Port        string
	FrontendURL string
	DBPath      string

	// Identity provider (hosted auth backend).
	IdentityURL    string
	IdentityAPIKey string
	OAuthRedirect  string

	// Dev-only fixture logins (admin/admin123, user/user123).
	DevLogins bool

	Completion CompletionConfig
}

// CompletionConfig controls the hosted completion API client.
type CompletionConfig struct {
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Env:            strings.ToLower(getEnv("ENV", "production")),
		Port:           getEnv("PORT", "8080"),
		FrontendURL:    getEnv("FRONTEND_URL", ""),
		DBPath:         getEnv("DB_PATH", "./data/swiftassist.db"),
		IdentityURL:    getEnv("IDENTITY_URL", ""),
		IdentityAPIKey: getEnv("IDENTITY_API_KEY", ""),
		OAuthRedirect:  getEnv("OAUTH_REDIRECT_URL", ""),
		DevLogins:      getEnvBool("DEV_LOGINS", false),
		Completion: CompletionConfig{
			BaseURL:     getEnv("COMPLETION_BASE_URL", ""),
			Model:       getEnv("COMPLETION_MODEL", "gpt-3.5-turbo"),
			Temperature: getEnvFloat("COMPLETION_TEMPERATURE", 0.7),
			MaxTokens:   getEnvInt("COMPLETION_MAX_TOKENS", 500),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Env != "development" && c.Env != "production" {
		return fmt.Errorf("ENV must be development or production")
	}
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.IdentityURL == "" {
		return fmt.Errorf("IDENTITY_URL cannot be empty")
	}
	if c.Completion.Model == "" {
		return fmt.Errorf("COMPLETION_MODEL cannot be empty")
	}
	if c.Completion.MaxTokens <= 0 {
		return fmt.Errorf("COMPLETION_MAX_TOKENS must be > 0")
	}
	if c.DevLogins && !c.IsDevelopment() {
		return fmt.Errorf("DEV_LOGINS requires development mode")
	}
	return nil
}

// IsDevelopment returns true only when ENV opts into development mode.
// An absent or unrelated FRONTEND_URL never implies development.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float32) float32 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 32)
	if err != nil {
		return fallback
	}
	return float32(f)
}
