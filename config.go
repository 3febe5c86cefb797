package authkit

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config carries the environment-driven settings needed to wire the auth
// surface: provider credentials, the public base URL used in magic links
// and OAuth callbacks, and email delivery.
type Config struct {
	AppName string `env:"AUTHKIT_APP_NAME" envDefault:"SmartDash"`

	// BaseURL is the public origin, e.g. https://app.example.com
	BaseURL string `env:"AUTHKIT_BASE_URL" envDefault:"http://localhost:8080"`

	GoogleClientID     string `env:"OAUTH2_GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"OAUTH2_GOOGLE_CLIENT_SECRET"`
	GoogleCallbackURL  string `env:"OAUTH2_GOOGLE_CALLBACK_URL"`

	GithubClientID     string `env:"OAUTH2_GITHUB_CLIENT_ID"`
	GithubClientSecret string `env:"OAUTH2_GITHUB_CLIENT_SECRET"`
	GithubCallbackURL  string `env:"OAUTH2_GITHUB_CALLBACK_URL"`

	ResendAPIKey string `env:"RESEND_API_KEY"`
	EmailFrom    string `env:"AUTHKIT_EMAIL_FROM" envDefault:"noreply@localhost"`

	// StoragePath is where the filesystem stores keep their state.
	StoragePath string `env:"AUTHKIT_STORAGE_PATH" envDefault:"./data"`

	// StartRatePerMinute limits credential requests per email+IP.
	StartRatePerMinute int `env:"AUTHKIT_START_RATE_PER_MINUTE" envDefault:"3"`
}

// LoadConfig reads an optional .env file, then the process environment.
func LoadConfig() (*Config, error) {
	// A missing .env is fine; explicit environment always wins.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return &cfg, nil
}
