// Package config loads lighthouse configuration from the environment and
// from recipe files.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadEnvFile adds the variables in path to the process environment.
// Variables already set win, so the platform can still override them.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Server configures the control plane.
type Server struct {
	ListenAddr   string        `env:"LIGHTHOUSE_LISTEN_ADDR" envDefault:":3000"`
	RecipeFile   string        `env:"LIGHTHOUSE_RECIPE_FILE"`
	ProxyDomain  string        `env:"LIGHTHOUSE_PROXY_DOMAIN" envDefault:"localhost"`
	ReadyTimeout time.Duration `env:"LIGHTHOUSE_READY_TIMEOUT" envDefault:"60s"`
	ReadyPath    string        `env:"LIGHTHOUSE_READY_PATH"`
	Logging      Logging
}

// Logging selects the log level and output format.
type Logging struct {
	Level  string `env:"LIGHTHOUSE_LOG_LEVEL" envDefault:"info"`
	Format string `env:"LIGHTHOUSE_LOG_FORMAT" envDefault:"text"`
}

// Validate rejects values the server cannot start with.
func (s Server) Validate() error {
	if s.ListenAddr == "" {
		return errors.New("listen address is required")
	}
	if s.ReadyTimeout <= 0 {
		return fmt.Errorf("ready timeout must be positive, got %s", s.ReadyTimeout)
	}
	return nil
}
