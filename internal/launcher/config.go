// Package launcher runs the app process inside the container. It binds the
// app to the platform port on all interfaces, tracks the instance lifecycle,
// and optionally restarts the app and serves health and metrics endpoints.
package launcher

import (
	"fmt"
	"time"

	"github.com/melih/lighthouse-deploy/internal/config"
	"github.com/melih/lighthouse-deploy/internal/core/domain"
)

// RestartPolicy says when a terminated app process is started again.
type RestartPolicy string

const (
	// RestartNever leaves restarts to the orchestration platform.
	RestartNever     RestartPolicy = "never"
	RestartOnFailure RestartPolicy = "on-failure"
	RestartAlways    RestartPolicy = "always"
)

// ShouldRestart reports whether an exit with code warrants a restart.
func (p RestartPolicy) ShouldRestart(code int) bool {
	switch p {
	case RestartAlways:
		return true
	case RestartOnFailure:
		return code != 0
	}
	return false
}

// Config is read from the environment the platform gives the container.
//
// PortFlag and AddressFlag name the flags appended to the launch command.
// Left unset they default to Streamlit's for a Streamlit command and to
// nothing otherwise; FlagNone turns them off explicitly.
type Config struct {
	Port         int           `env:"PORT" envDefault:"8080"`
	BindAddress  string        `env:"LIGHTHOUSE_BIND_ADDRESS" envDefault:"0.0.0.0"`
	PortFlag     string        `env:"LIGHTHOUSE_PORT_FLAG"`
	AddressFlag  string        `env:"LIGHTHOUSE_ADDRESS_FLAG"`
	HealthPort   int           `env:"LIGHTHOUSE_HEALTH_PORT" envDefault:"8081"`
	Restart      RestartPolicy `env:"LIGHTHOUSE_RESTART_POLICY" envDefault:"never"`
	MaxRestarts  int           `env:"LIGHTHOUSE_MAX_RESTARTS" envDefault:"5"`
	GracePeriod  time.Duration `env:"LIGHTHOUSE_GRACE_PERIOD" envDefault:"10s"`
	ReadyTimeout time.Duration `env:"LIGHTHOUSE_READY_TIMEOUT" envDefault:"60s"`
	ReadyPath    string        `env:"LIGHTHOUSE_READY_PATH"`
	EnvFile      string        `env:"LIGHTHOUSE_ENV_FILE"`
	Logging      config.Logging
}

// LoadConfig reads Config from the environment. When LIGHTHOUSE_ENV_FILE
// names a file, its variables are loaded first without overriding the
// platform's.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.EnvFile != "" {
		if err := config.LoadEnvFile(cfg.EnvFile); err != nil {
			return Config{}, err
		}
		if err := config.ParseEnv(&cfg); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate refuses configurations that would leave the app unreachable.
func (c Config) Validate() error {
	if err := domain.ValidatePort(c.Port); err != nil {
		return err
	}
	if domain.IsLoopback(c.BindAddress) {
		return fmt.Errorf("%w: LIGHTHOUSE_BIND_ADDRESS=%s", domain.ErrLoopbackBind, c.BindAddress)
	}
	if c.BindAddress == "" {
		return fmt.Errorf("%w: bind address is empty", domain.ErrInvalidRecipe)
	}
	if c.HealthPort != 0 {
		if err := domain.ValidatePort(c.HealthPort); err != nil {
			return fmt.Errorf("health port: %w", err)
		}
		if c.HealthPort == c.Port {
			return fmt.Errorf("%w: health port %d collides with the app port", domain.ErrPortMismatch, c.Port)
		}
	}
	switch c.Restart {
	case RestartNever, RestartOnFailure, RestartAlways:
	default:
		return fmt.Errorf("unknown restart policy %q", c.Restart)
	}
	if c.MaxRestarts < 0 {
		return fmt.Errorf("max restarts must not be negative")
	}
	if c.GracePeriod <= 0 || c.ReadyTimeout <= 0 {
		return fmt.Errorf("grace period and ready timeout must be positive")
	}
	return nil
}
