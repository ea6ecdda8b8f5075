package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/fetchgate/api/handler"
	"github.com/use-agent/fetchgate/api/middleware"
	"github.com/use-agent/fetchgate/config"
	"github.com/use-agent/fetchgate/engine"
	"github.com/use-agent/fetchgate/metrics"
	"github.com/use-agent/fetchgate/models"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
// m may be nil, which disables metrics. ctx bounds background work started
// by middleware.
//
// Middleware chain:
//
//	Global:  Recovery → RequestID → Metrics → Logger
//	API:     Auth (if a key is configured) → RateLimit (if enabled)
//
// Health and metrics endpoints are intentionally outside auth so monitoring
// probes always work.
func NewRouter(ctx context.Context, eng engine.Engine, cfg *config.Config, m *metrics.Metrics) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)
	handler.MustRegisterValidators()

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(metrics.HTTPMetricsMiddleware(m))
	r.Use(gin.Logger())

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Detail: "Not Found"})
	})
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, models.ErrorResponse{Detail: "Method Not Allowed"})
	})

	if m != nil && cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, m.GinHandler())
	}

	api := r.Group("/api")

	// Health — no auth required.
	api.GET("/health", handler.Health())

	// Protected group — auth + rate limit.
	protected := api.Group("")
	protected.Use(middleware.Auth(cfg.Auth.APIKey, m))
	if cfg.RateLimit.Enabled() {
		protected.Use(middleware.RateLimit(ctx, cfg.RateLimit, m))
	}

	gw := handler.NewGateway(eng, m, cfg.Server.RequestDeadline)

	// Plain HTTP engine
	protected.POST("/fetcher/get", gw.FetcherGet())
	protected.POST("/fetcher/post", gw.FetcherPost())
	protected.POST("/fetcher/put", gw.FetcherPut())
	protected.POST("/fetcher/delete", gw.FetcherDelete())

	// Browser engines
	protected.POST("/dynamic/fetch", gw.DynamicFetch())
	protected.POST("/stealthy/fetch", gw.StealthyFetch())

	return r
}
