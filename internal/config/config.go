// Package config loads the server configuration from environment variables.
//
// Everything the process needs from its environment (signing secret, provider
// credentials, database path, dispatch settings) is read once at startup into
// a Config value. Components receive the pieces they need through their
// constructors; nothing else in the module calls os.Getenv.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds server configuration.
type Config struct {
	Env      string `env:"APP_ENV"   envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	Port     int    `env:"PORT"      envDefault:"8080"`
	DBPath   string `env:"DB_PATH"   envDefault:"data/authors-haven.db"`

	// AppURL is the public base URL used to build links in emails.
	AppURL string `env:"APP_URL" envDefault:"http://localhost:8080"`

	Auth      AuthConfig
	Mail      MailConfig
	Push      PushConfig
	OAuth     OAuthConfig
	RateLimit RateLimitConfig
	Dispatch  DispatchConfig
}

// AuthConfig controls token signing and password hashing.
type AuthConfig struct {
	JWTSecret      string        `env:"JWT_SECRET"`
	Issuer         string        `env:"JWT_ISSUER"            envDefault:"authors-haven"`
	AccessTokenTTL time.Duration `env:"ACCESS_TOKEN_TTL"      envDefault:"72h"`
	VerifyEmailTTL time.Duration `env:"VERIFY_EMAIL_TTL"      envDefault:"24h"`
	ResetTTL       time.Duration `env:"RESET_PASSWORD_TTL"    envDefault:"1h"`
	BcryptCost     int           `env:"BCRYPT_COST"           envDefault:"12"`
}

// MailConfig configures outbound email. An empty SendGridKey switches the
// server to a mailer that only logs.
type MailConfig struct {
	SendGridKey string `env:"SENDGRID_API_KEY"`
	From        string `env:"MAIL_FROM"      envDefault:"no-reply@authorshaven.dev"`
	FromName    string `env:"MAIL_FROM_NAME" envDefault:"Authors Haven"`
}

// PushConfig configures Pusher Channels. An empty AppID disables pushing.
type PushConfig struct {
	AppID   string `env:"PUSHER_APP_ID"`
	Key     string `env:"PUSHER_KEY"`
	Secret  string `env:"PUSHER_SECRET"`
	Cluster string `env:"PUSHER_CLUSTER" envDefault:"eu"`
}

// OAuthConfig holds per-provider client credentials for social login.
// A provider with an empty client ID is not registered.
type OAuthConfig struct {
	Google   ProviderCredentials `envPrefix:"GOOGLE_"`
	Facebook ProviderCredentials `envPrefix:"FACEBOOK_"`
	GitHub   ProviderCredentials `envPrefix:"GITHUB_"`

	// CallbackBaseURL is joined with /api/users/auth/{provider}/redirect.
	CallbackBaseURL string `env:"OAUTH_CALLBACK_BASE_URL" envDefault:"http://localhost:8080"`
	// RedirectURL is where the browser lands after a social login attempt.
	RedirectURL string `env:"SOCIAL_LOGIN_REDIRECT_URL" envDefault:"http://localhost:3000"`
}

// ProviderCredentials are the OAuth app credentials for one provider.
type ProviderCredentials struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
}

// RateLimitConfig limits login/signup attempts per client IP.
type RateLimitConfig struct {
	AuthRPS   float64 `env:"AUTH_RATE_LIMIT_RPS"   envDefault:"5"`
	AuthBurst int     `env:"AUTH_RATE_LIMIT_BURST" envDefault:"10"`
}

// DispatchConfig sizes the background email/push queue.
type DispatchConfig struct {
	Workers     int           `env:"DISPATCH_WORKERS"      envDefault:"4"`
	Buffer      int           `env:"DISPATCH_BUFFER"       envDefault:"256"`
	TaskTimeout time.Duration `env:"DISPATCH_TASK_TIMEOUT" envDefault:"15s"`
}

// Load parses the environment into a Config and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if len(c.Auth.JWTSecret) < 16 {
		return errors.New("config: JWT_SECRET must be at least 16 characters")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid PORT %d", c.Port)
	}
	if c.Dispatch.Workers < 1 {
		return errors.New("config: DISPATCH_WORKERS must be at least 1")
	}
	return nil
}

// IsProduction reports whether the server runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
