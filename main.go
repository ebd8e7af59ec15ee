// Command postboard serves the users/posts JSON API.
//
// Startup ensures the configured database exists, opens the shared
// connection pool and only then starts accepting HTTP traffic. SIGINT or
// SIGTERM stops the listener, drains in-flight requests and closes the pool.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Skryldev/postboard/api"
	"github.com/Skryldev/postboard/config"
	"github.com/Skryldev/postboard/db"
	"github.com/Skryldev/postboard/metrics"
	"github.com/Skryldev/postboard/repo"

	// Registers "sqlite3" with database/sql for DB_DRIVER=sqlite3.
	_ "github.com/mattn/go-sqlite3"
)

const bootstrapTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fatalf("load config: %v", err)
	}

	// ── Structured logger ────────────────────────────────────────────────
	logger := newLogger(cfg)
	slog.SetDefault(logger)
	gin.SetMode(gin.ReleaseMode)

	m := metrics.New()

	// ── Bootstrap: database, then pool ──────────────────────────────────
	ctx, cancel := context.WithTimeout(context.Background(), bootstrapTimeout)
	database, err := db.Bootstrap(ctx, cfg.Driver, cfg.DB, db.Config{
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxOpenConns,
		Hooks: []db.Hook{
			db.NewLogHook(db.LogHookConfig{
				Logger:             logger,
				SlowQueryThreshold: cfg.SlowQuery,
			}),
			db.NewMetricsHook(m),
		},
	})
	cancel()
	if err != nil {
		fatalf("failed to start app: %v", err)
	}
	m.RegisterPool(database.Stats)

	// ── HTTP server ─────────────────────────────────────────────────────
	router := api.NewRouter(repo.NewStore(database), api.Options{Metrics: m})
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API listening", "address", fmt.Sprintf("http://localhost:%d", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutting down", "signal", sig.String())
	case err := <-serveErr:
		slog.Error("server failed", "error", err)
		_ = database.Close()
		os.Exit(1)
	}

	if err := shutdown(srv, database, cfg.ShutdownTimeout); err != nil {
		fatalf("error during shutdown: %v", err)
	}
	slog.Info("shutdown complete")
}

// shutdown stops accepting connections, waits for in-flight requests up to
// timeout and then closes the pool.
func shutdown(srv *http.Server, database *db.DB, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	srvErr := srv.Shutdown(ctx)
	if srvErr != nil {
		srvErr = fmt.Errorf("http shutdown: %w", srvErr)
	}
	dbErr := database.Close()
	if dbErr != nil {
		dbErr = fmt.Errorf("close pool: %w", dbErr)
	}
	return errors.Join(srvErr, dbErr)
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func fatalf(format string, args ...any) {
	slog.Error(fmt.Sprintf(format, args...))
	os.Exit(1)
}
