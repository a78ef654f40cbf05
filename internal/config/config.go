// Package config loads application settings from the environment.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/MikhalGarbuz/analyze-your-life/internal/adapter/otel"
)

// Config is the complete application configuration.
type Config struct {
	Addr        string `validate:"required"`
	DatabaseURL string
	WebDir      string        `validate:"required"`
	SessionTTL  time.Duration `validate:"gte=0"`

	// SquaredTerms adds x² predictors to linear regressions.
	SquaredTerms bool

	// BotJWTSecret signs bearer tokens for chat bridges. Empty disables them.
	BotJWTSecret string `validate:"omitempty,min=16"`

	Reminder ReminderConfig
	OIDC     OIDCConfig
	OTel     otel.Config
}

// ReminderConfig schedules the daily missing-entry reminder.
type ReminderConfig struct {
	At         string `validate:"required,datetime=15:04"`
	WebhookURL string `validate:"omitempty,url"`
}

// Clock returns the hour and minute of At.
func (r ReminderConfig) Clock() (hour, minute int) {
	t, err := time.Parse("15:04", r.At)
	if err != nil {
		return 19, 0
	}
	return t.Hour(), t.Minute()
}

// OIDCConfig enables single sign-on when Enabled.
type OIDCConfig struct {
	Enabled      bool
	Issuer       string `validate:"required_if=Enabled true"`
	ClientID     string `validate:"required_if=Enabled true"`
	ClientSecret string
	RedirectURL  string `validate:"required_if=Enabled true"`
}

// Load reads .env when present, then the environment, and validates the
// result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: .env: %v", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Addr:         getEnvOrDefault("ADDR", ":8080"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		WebDir:       getEnvOrDefault("WEB_DIR", "web"),
		SessionTTL:   getEnvDurationOrDefault("SESSION_TTL", 0),
		SquaredTerms: getEnvBoolOrDefault("REGRESSION_SQUARED_TERMS", false),
		BotJWTSecret: os.Getenv("BOT_JWT_SECRET"),
		Reminder: ReminderConfig{
			At:         getEnvOrDefault("REMINDER_AT", "19:00"),
			WebhookURL: os.Getenv("REMINDER_WEBHOOK_URL"),
		},
		OIDC: OIDCConfig{
			Enabled:      getEnvBoolOrDefault("OIDC_ENABLED", false),
			Issuer:       os.Getenv("OIDC_ISSUER"),
			ClientID:     os.Getenv("OIDC_CLIENT_ID"),
			ClientSecret: os.Getenv("OIDC_CLIENT_SECRET"),
			RedirectURL:  os.Getenv("OIDC_REDIRECT_URL"),
		},
		OTel: otel.Config{
			Enabled:  getEnvBoolOrDefault("OTEL_ENABLED", false),
			Endpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			Insecure: getEnvBoolOrDefault("OTEL_INSECURE", false),
		},
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
