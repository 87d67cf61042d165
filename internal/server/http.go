package server

import (
	"context"
	"log/slog"
	"net/http"

	glog "github.com/gin-contrib/slog"
	"github.com/gin-gonic/gin"

	"callflow/backend/internal/api"
	"callflow/backend/internal/audit"
	"callflow/backend/internal/metrics"
	"callflow/backend/internal/server/interceptors"
)

// RouteRegistrar mounts routes on the authenticated /api/v1 group.
type RouteRegistrar interface {
	Register(r gin.IRoutes)
}

// HTTPDeps holds the REST API dependencies. Nil fields disable the matching feature.
type HTTPDeps struct {
	Service string
	Version string
	// Ready reports dependency health for GET /health.
	Ready func(ctx context.Context) bool
	// Metrics records request metrics and serves GET /metrics.
	Metrics     *metrics.Metrics
	Tokens      interceptors.TokenValidator
	Revocations interceptors.RevocationChecker
	Audit       audit.AuditLogger
	// Handlers are mounted under /api/v1 behind auth and audit.
	Handlers []RouteRegistrar
}

// NewRouter returns the gin engine serving /health, /metrics and the /api/v1 routes.
func NewRouter(deps HTTPDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(glog.SetLogger(
		glog.WithLogger(func(c *gin.Context, l *slog.Logger) *slog.Logger {
			return slog.Default()
		}),
	))
	if deps.Metrics != nil {
		router.Use(deps.Metrics.GinMiddleware())
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	router.GET("/health", func(c *gin.Context) {
		resp := api.HealthResponse{Service: deps.Service, Version: deps.Version, Status: "ok"}
		if deps.Ready != nil && !deps.Ready(c.Request.Context()) {
			resp.Status = "unavailable"
			c.JSON(http.StatusServiceUnavailable, resp)
			return
		}
		c.JSON(http.StatusOK, resp)
	})

	v1 := router.Group("/api/v1")
	v1.Use(
		interceptors.LogGinErrors(),
		interceptors.AuthGin(deps.Tokens, deps.Revocations),
		interceptors.AuditGin(deps.Audit),
	)
	for _, h := range deps.Handlers {
		h.Register(v1)
	}
	return router
}
