// Package http wires the gin router and server of the biomarker API.
package http

import (
	"github.com/gin-gonic/gin"

	"github.com/turtacn/biomarker-engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/biomarker-engine/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/biomarker-engine/internal/interfaces/http/handlers"
	"github.com/turtacn/biomarker-engine/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handler and middleware dependencies of the
// route tree.
type RouterConfig struct {
	// Handlers
	ValidationHandler *handlers.ValidationHandler
	OverrideHandler   *handlers.OverrideHandler
	HealthHandler     *handlers.HealthHandler

	// Middleware
	Logging     middleware.LoggingConfig
	MaxBodySize int64

	// Infrastructure
	Logger           logging.Logger
	Metrics          *prometheus.AppMetrics
	MetricsCollector prometheus.MetricsCollector
	MetricsPath      string
	Mode             string
}

// NewRouter builds the gin engine: global middleware, probes, metrics and
// the /api/v1 group.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	r := gin.New()
	r.HandleMethodNotAllowed = true

	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestLogging(cfg.Logger, cfg.Logging))
	r.Use(middleware.Metrics(cfg.Metrics))

	if cfg.HealthHandler != nil {
		cfg.HealthHandler.RegisterRoutes(r)
	}
	if cfg.MetricsCollector != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(cfg.MetricsCollector.Handler()))
	}

	api := r.Group("/api/v1")
	api.Use(middleware.BodyLimit(cfg.MaxBodySize))
	if cfg.ValidationHandler != nil {
		cfg.ValidationHandler.RegisterRoutes(api)
	}
	if cfg.OverrideHandler != nil {
		cfg.OverrideHandler.RegisterRoutes(api)
	}

	return r
}
