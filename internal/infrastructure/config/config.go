package config

import (
	"fmt"
	"net"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	MainThread MainThreadConfig
	ExtHost    ExtHostConfig
	Logging    LogConfig
	RateLimit  RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, s.Port)
}

// MainThreadConfig describes the privileged main process as seen by an
// extension host, and how long the main process waits for a dispatch ack.
type MainThreadConfig struct {
	Address         string        `envconfig:"MAIN_ADDR" default:"ws://localhost:8000/exthost"`
	DispatchTimeout time.Duration `envconfig:"MAIN_DISPATCH_TIMEOUT" default:"5s"`
}

// ExtHostConfig holds extension host configuration.
type ExtHostConfig struct {
	Manifest    string        `envconfig:"EXTHOST_MANIFEST" default:"extensions.yaml"`
	DialTimeout time.Duration `envconfig:"EXTHOST_DIAL_TIMEOUT" default:"10s"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		MainThread: MainThreadConfig{
			Address:         "ws://localhost:8000/exthost",
			DispatchTimeout: 5 * time.Second,
		},
		ExtHost: ExtHostConfig{
			Manifest:    "extensions.yaml",
			DialTimeout: 10 * time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
