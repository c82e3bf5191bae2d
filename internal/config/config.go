// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Backend names accepted by STORE_BACKEND and EVENT_BACKEND.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config is the process configuration shared by cmd/server and cmd/auditor.
type Config struct {
	Port            string        `env:"PORT"                  envDefault:"8080"`
	DatabaseURL     string        `env:"DATABASE_URL"`
	StoreBackend    string        `env:"STORE_BACKEND"         envDefault:"memory"`
	EventBackend    string        `env:"EVENT_BACKEND"         envDefault:"memory"`
	RedisAddr       string        `env:"REDIS_ADDR"            envDefault:"localhost:6379"`
	RedisDB         int           `env:"REDIS_DB"              envDefault:"0"`
	LogLevel        string        `env:"LOG_LEVEL"             envDefault:"info"`
	StaleAfter      time.Duration `env:"VETO_STALE_AFTER"      envDefault:"30m"`
	RefreshCooldown time.Duration `env:"VETO_REFRESH_COOLDOWN" envDefault:"5s"`
	ConfirmDelay    time.Duration `env:"VETO_CONFIRM_DELAY"    envDefault:"2s"`
	AuditInterval   time.Duration `env:"AUDIT_INTERVAL"        envDefault:"5m"`
	AllowedOrigins  []string      `env:"ALLOWED_ORIGINS"       envDefault:"http://localhost:3000" envSeparator:","`
	MetricsEnabled  bool          `env:"METRICS_ENABLED"       envDefault:"true"`

	// JWT keys are generated at startup when either path is empty.
	JWTPrivateKeyPath string        `env:"JWT_PRIVATE_KEY_PATH"`
	JWTPublicKeyPath  string        `env:"JWT_PUBLIC_KEY_PATH"`
	TokenExpire       time.Duration `env:"TOKEN_EXPIRE_TIME" envDefault:"0"`

	// AuditTournamentID scopes cmd/auditor to one tournament when set.
	AuditTournamentID string `env:"AUDIT_TOURNAMENT_ID"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects combinations the binaries cannot start with.
func (c Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("STORE_BACKEND=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	switch c.EventBackend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("unknown EVENT_BACKEND %q", c.EventBackend)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if c.AuditTournamentID != "" {
		if _, err := uuid.Parse(c.AuditTournamentID); err != nil {
			return fmt.Errorf("AUDIT_TOURNAMENT_ID: %w", err)
		}
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// NewLogger builds the process logger at the configured level.
func (c Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

// AuditScope is the tournament cmd/auditor is limited to, or nil for all sessions.
func (c Config) AuditScope() *uuid.UUID {
	if c.AuditTournamentID == "" {
		return nil
	}
	id, err := uuid.Parse(c.AuditTournamentID)
	if err != nil {
		return nil
	}
	return &id
}
