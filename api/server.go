// Package api is the HTTP surface of postboard: gin routes for users and
// posts backed by a repo.Store.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/Skryldev/postboard/metrics"
	"github.com/Skryldev/postboard/repo"
)

// Server holds the dependencies shared by every handler. It carries no
// mutable state of its own.
type Server struct {
	store   *repo.Store
	metrics *metrics.Metrics
}

// Options configures NewRouter.
type Options struct {
	// Metrics enables request instrumentation and the /metrics endpoint.
	// Nil disables both.
	Metrics *metrics.Metrics
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(store *repo.Store, opts Options) *gin.Engine {
	s := &Server{store: store, metrics: opts.Metrics}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	if s.metrics != nil {
		r.Use(instrument(s.metrics))
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	r.GET("/health", s.health)

	r.GET("/users", s.listUsers)
	r.POST("/users", s.createUser)
	r.GET("/users/:id/posts", s.userPosts)

	r.GET("/posts", s.listPosts)
	r.POST("/posts", s.createPost)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})
	return r
}

// ─────────────────────────────────────────────────────────────────────────────
// Responses
// ─────────────────────────────────────────────────────────────────────────────

// fail logs err with request context and writes the fixed client message.
// The client never sees err itself.
func fail(c *gin.Context, status int, message string, err error) {
	level := slog.LevelError
	if status < http.StatusInternalServerError {
		level = slog.LevelWarn
	}
	slog.Log(c.Request.Context(), level, message,
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"status", status,
		"error", err,
	)
	c.JSON(status, gin.H{"error": message})
}

// bindJSON decodes and validates the body into req. On failure it responds
// 400 with message and returns false.
func bindJSON(c *gin.Context, req any, message string) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Field())
		}
		slog.WarnContext(c.Request.Context(), "request validation failed",
			"path", c.Request.URL.Path,
			"fields", fields,
		)
		c.JSON(http.StatusBadRequest, gin.H{"error": message})
		return false
	}
	fail(c, http.StatusBadRequest, message, err)
	return false
}

// ─────────────────────────────────────────────────────────────────────────────
// Middleware
// ─────────────────────────────────────────────────────────────────────────────

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.InfoContext(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func instrument(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
