package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// HTTP API
	HTTPListenAddr string `envconfig:"HTTP_LISTEN_ADDR" default:":8080"`
	CORSOrigins    string `envconfig:"CORS_ORIGINS"`

	// Repository storage root. One directory per project id.
	StorageRoot string `envconfig:"STORAGE_ROOT" default:"./repositories"`

	// Collaboration workflow
	// SessionWaitMax bounds caller-side polling for a session to finish; the
	// workflow itself is never cancelled when the ceiling is hit.
	SessionWaitMax      time.Duration `envconfig:"SESSION_WAIT_MAX" default:"5m"`
	SessionPollInterval time.Duration `envconfig:"SESSION_POLL_INTERVAL" default:"5s"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}

// LoadWithPrefix reads configuration with a prefix.
func LoadWithPrefix(prefix string) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return nil, fmt.Errorf("loading config with prefix %s: %w", prefix, err)
	}
	return &cfg, nil
}
