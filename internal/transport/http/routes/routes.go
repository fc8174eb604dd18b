package routes

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arklim/identity-adapter/internal/infra/config"
	"github.com/arklim/identity-adapter/internal/transport/http/handlers"
	"github.com/arklim/identity-adapter/internal/transport/http/middleware"
	"github.com/arklim/identity-adapter/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth       *usecase.AuthService
	Management *usecase.ManagementService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config   *config.AppConfig
	Logger   *zap.Logger
	Services ServiceSet
	Metrics  *middleware.HTTPMetrics
	// Gatherer backs /metrics; nil means the default registry.
	Gatherer prometheus.Gatherer
	Database DatabaseChecker
	Cache    CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(deps.Metrics.Handler())

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(metricsHandler(deps.Gatherer)))

	api := r.Group("/api/v1")
	{
		// Authentication routes trust the caller's federated assertions, so they are
		// only routed behind the front end's token.
		if deps.Services.Auth != nil && deps.Config.App.ProtocolToken != "" {
			protocolGroup := api.Group("")
			protocolGroup.Use(middleware.RequireProtocolToken(deps.Config.App.ProtocolToken))
			handlers.NewAuthHandler(deps.Services.Auth).RegisterRoutes(protocolGroup)
		}

		// The administrative surface stays unrouted without an admin token.
		if deps.Services.Management != nil && deps.Config.App.AdminToken != "" {
			adminGroup := api.Group("/admin")
			adminGroup.Use(middleware.RequireAdminToken(deps.Config.App.AdminToken))
			handlers.NewManagementHandler(deps.Services.Management).RegisterRoutes(adminGroup)
		}
	}

	return r
}

func metricsHandler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
