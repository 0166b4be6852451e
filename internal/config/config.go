// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"net"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Terminal  TerminalConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
	// CORSOrigins lists allowed browser origins. Empty allows all.
	CORSOrigins []string `envconfig:"CORS_ORIGINS"`
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// StorageConfig holds project store configuration.
type StorageConfig struct {
	DBPath string `envconfig:"DB_PATH" default:"data/projects.db"`
}

// TerminalConfig holds per-session terminal configuration.
type TerminalConfig struct {
	ReadChunkSize  int    `envconfig:"READ_CHUNK_SIZE" default:"1024"`
	OutboundQueue  int    `envconfig:"OUTBOUND_QUEUE" default:"256"`
	MaxMessageSize int    `envconfig:"MAX_MESSAGE_SIZE" default:"8388608"`
	InitialRows    uint16 `envconfig:"INITIAL_ROWS" default:"24"`
	InitialCols    uint16 `envconfig:"INITIAL_COLS" default:"80"`
	// RecordDir enables asciinema recordings of every session when set.
	RecordDir string `envconfig:"RECORD_DIR"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds handshake rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"10"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"20"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
			Host: "0.0.0.0",
		},
		Storage: StorageConfig{
			DBPath: "data/projects.db",
		},
		Terminal: TerminalConfig{
			ReadChunkSize:  1024,
			OutboundQueue:  256,
			MaxMessageSize: 8 << 20,
			InitialRows:    24,
			InitialCols:    80,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 10,
			Burst:             20,
			Enabled:           true,
		},
	}
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	if c.Terminal.ReadChunkSize < 2 {
		return fmt.Errorf("invalid config: READ_CHUNK_SIZE must be at least 2, got %d", c.Terminal.ReadChunkSize)
	}
	if c.Terminal.OutboundQueue < 1 {
		return fmt.Errorf("invalid config: OUTBOUND_QUEUE must be positive, got %d", c.Terminal.OutboundQueue)
	}
	if c.Terminal.MaxMessageSize < 2 {
		return fmt.Errorf("invalid config: MAX_MESSAGE_SIZE must be at least 2, got %d", c.Terminal.MaxMessageSize)
	}
	if c.Terminal.InitialRows == 0 || c.Terminal.InitialCols == 0 {
		return fmt.Errorf("invalid config: INITIAL_ROWS and INITIAL_COLS must be positive")
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("invalid config: rate limit values must be positive when enabled")
	}
	return nil
}
