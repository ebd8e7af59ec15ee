package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnv(t *testing.T) {
	t.Run("Should apply defaults", func(t *testing.T) {
		cfg, err := FromEnv(envMap(nil))
		require.NoError(t, err)

		assert.Equal(t, "mysql", cfg.Driver)
		assert.Equal(t, "127.0.0.1", cfg.DB.Host)
		assert.Equal(t, 3306, cfg.DB.Port)
		assert.Equal(t, "root", cfg.DB.User)
		assert.Equal(t, "0000", cfg.DB.Password)
		assert.Equal(t, "lab7_db", cfg.DB.Database)
		assert.Equal(t, 3000, cfg.Port)
		assert.Equal(t, ":3000", cfg.Addr())
		assert.Equal(t, 10, cfg.MaxOpenConns)
		assert.Equal(t, 200*time.Millisecond, cfg.SlowQuery)
		assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
		assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
		assert.Equal(t, "json", cfg.LogFormat)
	})

	t.Run("Should honour overrides", func(t *testing.T) {
		cfg, err := FromEnv(envMap(map[string]string{
			"DB_DRIVER":         "postgres",
			"MYSQL_HOST":        "db.internal",
			"MYSQL_PORT":        "5432",
			"MYSQL_USER":        "app",
			"MYSQL_PASSWORD":    "s3cret",
			"MYSQL_DB":          "board",
			"DB_SSLMODE":        "require",
			"PORT":              "8080",
			"DB_MAX_OPEN_CONNS": "4",
			"LOG_LEVEL":         "debug",
			"LOG_FORMAT":        "TEXT",
			"SHUTDOWN_TIMEOUT":  "30s",
		}))
		require.NoError(t, err)

		assert.Equal(t, "postgres", cfg.Driver)
		assert.Equal(t, "db.internal", cfg.DB.Host)
		assert.Equal(t, 5432, cfg.DB.Port)
		assert.Equal(t, "board", cfg.DB.Database)
		assert.Equal(t, "require", cfg.DB.SSLMode)
		assert.Equal(t, ":8080", cfg.Addr())
		assert.Equal(t, 4, cfg.MaxOpenConns)
		assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
		assert.Equal(t, "text", cfg.LogFormat)
		assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	})

	t.Run("Should treat blank values as unset", func(t *testing.T) {
		cfg, err := FromEnv(envMap(map[string]string{"MYSQL_DB": "  ", "PORT": ""}))
		require.NoError(t, err)
		assert.Equal(t, "lab7_db", cfg.DB.Database)
		assert.Equal(t, 3000, cfg.Port)
	})

	t.Run("Should report every invalid value", func(t *testing.T) {
		_, err := FromEnv(envMap(map[string]string{
			"PORT":              "http",
			"DB_MAX_OPEN_CONNS": "0",
			"LOG_FORMAT":        "xml",
			"LOG_LEVEL":         "loud",
			"DB_DRIVER":         "oracle",
		}))
		require.Error(t, err)
		for _, key := range []string{"PORT", "DB_MAX_OPEN_CONNS", "LOG_FORMAT", "LOG_LEVEL", "DB_DRIVER"} {
			assert.ErrorContains(t, err, key)
		}
	})
}
