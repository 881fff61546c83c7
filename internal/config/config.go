package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvProduction represents the production environment.
	EnvProduction = "production"
	// EnvDevelopment represents the development environment.
	EnvDevelopment = "development"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Env  string `envconfig:"ENV" default:"development"`
	Port string `envconfig:"PORT" default:"8080" validate:"required,numeric"`

	// Security settings
	HSTSMaxAge int    `envconfig:"HSTS_MAX_AGE" default:"31536000" validate:"gte=0"`
	CSPMode    string `envconfig:"CSP_MODE" default:"relaxed" validate:"oneof=relaxed strict"`

	// Logging settings
	LogLevel string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	// Call analytics API
	APIBaseURL  string        `envconfig:"API_BASE_URL" default:"http://localhost:8000" validate:"required,url"`
	APIToken    string        `envconfig:"API_TOKEN"`
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"30s" validate:"gte=1s"`

	// Status polling
	PollInterval    time.Duration `envconfig:"POLL_INTERVAL" default:"3s" validate:"gte=100ms"`
	PollConcurrency int           `envconfig:"POLL_CONCURRENCY" default:"8" validate:"min=1,max=64"`

	// Uploads
	UploadTimeout time.Duration `envconfig:"UPLOAD_TIMEOUT" default:"10m" validate:"gte=1s"`
	MaxAudioBytes int64         `envconfig:"MAX_AUDIO_BYTES" default:"268435456" validate:"gt=0"`

	// Playback
	PlaybackTick time.Duration `envconfig:"PLAYBACK_TICK" default:"100ms" validate:"gte=10ms,lte=1s"`
}

// LoadConfig loads configuration from .env file and environment variables.
func LoadConfig() (*Config, error) {
	// Try to load .env file (optional for development)
	if err := godotenv.Load(); err != nil {
		// Not an error if file doesn't exist (expected in production)
		if !os.IsNotExist(err) {
			log.Printf("Warning: Error loading .env file: %v", err)
		}
	}

	// Parse environment variables into config struct
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return nil
}

// IsProduction reports whether the config targets production.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// BuildCSP constructs Content Security Policy based on mode.
func BuildCSP(mode string) string {
	if mode == "strict" {
		// The relay only serves JSON and a websocket stream
		return "default-src 'none'; " +
			"connect-src 'self'; " +
			"frame-ancestors 'none'; " +
			"base-uri 'none'; " +
			"form-action 'none'"
	}

	// Development/relaxed CSP
	return "default-src 'self'; " +
		"connect-src 'self' ws: wss:; " +
		"style-src 'self' 'unsafe-inline'; " +
		"img-src 'self' data:"
}
