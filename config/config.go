// Package config loads process configuration from the environment,
// optionally seeded from a .env file in the working directory.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Skryldev/postboard/db"
)

// Config is the complete runtime configuration of the API server.
type Config struct {
	// Database
	Driver       string
	DB           db.DriverOptions
	MaxOpenConns int
	SlowQuery    time.Duration

	// HTTP
	Port            int
	ShutdownTimeout time.Duration

	// Logging
	LogLevel  slog.Level
	LogFormat string // "json" or "text"
}

// Defaults mirror a local MySQL development setup.
const (
	defaultDriver       = "mysql"
	defaultHost         = "127.0.0.1"
	defaultPort         = "3306"
	defaultUser         = "root"
	defaultPassword     = "0000"
	defaultDatabase     = "lab7_db"
	defaultHTTPPort     = "3000"
	defaultMaxOpenConns = "10"
)

// Load reads .env (if present) and the environment. Variables already set in
// the environment take precedence over .env entries.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function, applying defaults for
// unset or empty variables.
func FromEnv(getenv func(string) string) (*Config, error) {
	env := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	var errs []error
	atoi := func(key, fallback string) int {
		n, err := strconv.Atoi(env(key, fallback))
		if err != nil {
			errs = append(errs, fmt.Errorf("config: %s: %w", key, err))
		}
		return n
	}
	duration := func(key, fallback string) time.Duration {
		d, err := time.ParseDuration(env(key, fallback))
		if err != nil {
			errs = append(errs, fmt.Errorf("config: %s: %w", key, err))
		}
		return d
	}

	cfg := &Config{
		Driver: env("DB_DRIVER", defaultDriver),
		DB: db.DriverOptions{
			Host:     env("MYSQL_HOST", defaultHost),
			Port:     atoi("MYSQL_PORT", defaultPort),
			User:     env("MYSQL_USER", defaultUser),
			Password: env("MYSQL_PASSWORD", defaultPassword),
			Database: env("MYSQL_DB", defaultDatabase),
			SSLMode:  env("DB_SSLMODE", ""),
		},
		MaxOpenConns:    atoi("DB_MAX_OPEN_CONNS", defaultMaxOpenConns),
		SlowQuery:       duration("SLOW_QUERY_THRESHOLD", "200ms"),
		Port:            atoi("PORT", defaultHTTPPort),
		ShutdownTimeout: duration("SHUTDOWN_TIMEOUT", "5s"),
		LogFormat:       strings.ToLower(env("LOG_FORMAT", "json")),
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(env("LOG_LEVEL", "info"))); err != nil {
		errs = append(errs, fmt.Errorf("config: LOG_LEVEL: %w", err))
	}
	if cfg.MaxOpenConns <= 0 {
		errs = append(errs, fmt.Errorf("config: DB_MAX_OPEN_CONNS must be positive, got %d", cfg.MaxOpenConns))
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		errs = append(errs, fmt.Errorf("config: LOG_FORMAT must be json or text, got %q", cfg.LogFormat))
	}
	if _, err := db.LookupDriver(cfg.Driver); err != nil {
		errs = append(errs, fmt.Errorf("config: DB_DRIVER: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string { return fmt.Sprintf(":%d", c.Port) }
