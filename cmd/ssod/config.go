package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// config holds the runtime configuration for ssod. Everything comes from
// environment variables (a .env file is honored in development); the
// values are read once here and passed down explicitly.
type config struct {
	HTTPAddr      string
	BaseURL       string
	DatabaseURL   string
	JWTSecretKey  string
	JWTIssuer     string
	SessionTTL    time.Duration
	SweepSchedule string

	// Optional bootstrap admin account, created on startup if missing.
	AdminEmail    string
	AdminPassword string

	// Optional identity providers; a provider is enabled when its client
	// ID is set.
	GithubClientID       string
	GithubClientSecret   string
	GithubCallbackURL    string
	FacebookClientID     string
	FacebookClientSecret string
	FacebookCallbackURL  string
}

func loadConfig() (config, error) {
	_ = godotenv.Load()

	secret := strings.TrimSpace(os.Getenv("SSO_JWT_SECRET_KEY"))
	if secret == "" {
		return config{}, fmt.Errorf("SSO_JWT_SECRET_KEY is required")
	}

	sessionSeconds, err := getEnvInt("SSO_SESSION_TTL_SECONDS", 86400)
	if err != nil {
		return config{}, err
	}

	cfg := config{
		HTTPAddr:      getEnv("SSO_HTTP_ADDR", ":8080"),
		BaseURL:       strings.TrimSuffix(getEnv("SSO_BASE_URL", "http://localhost:8080"), "/"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		JWTSecretKey:  secret,
		JWTIssuer:     getEnv("SSO_JWT_ISSUER", "ssod"),
		SessionTTL:    time.Duration(sessionSeconds) * time.Second,
		SweepSchedule: os.Getenv("SSO_SWEEP_SCHEDULE"),

		AdminEmail:    strings.TrimSpace(os.Getenv("SSO_ADMIN_EMAIL")),
		AdminPassword: os.Getenv("SSO_ADMIN_PASSWORD"),

		GithubClientID:       os.Getenv("OAUTH2_GITHUB_CLIENT_ID"),
		GithubClientSecret:   os.Getenv("OAUTH2_GITHUB_CLIENT_SECRET"),
		GithubCallbackURL:    os.Getenv("OAUTH2_GITHUB_CALLBACK_URL"),
		FacebookClientID:     os.Getenv("OAUTH2_FACEBOOK_CLIENT_ID"),
		FacebookClientSecret: os.Getenv("OAUTH2_FACEBOOK_CLIENT_SECRET"),
		FacebookCallbackURL:  os.Getenv("OAUTH2_FACEBOOK_CALLBACK_URL"),
	}

	if cfg.AdminEmail != "" && cfg.AdminPassword == "" {
		return config{}, fmt.Errorf("SSO_ADMIN_PASSWORD is required when SSO_ADMIN_EMAIL is set")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}
