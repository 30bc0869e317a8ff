package v1

import (
	"log/slog"

	"ekuphumuleni-api/config"
	"ekuphumuleni-api/internal/delivery/http/middleware"
	"ekuphumuleni-api/internal/domain"
	"ekuphumuleni-api/internal/metrics"
	"ekuphumuleni-api/internal/usecase"
	"ekuphumuleni-api/pkg/security"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

type RouterDeps struct {
	ContactUC domain.ContactUsecase
	HealthUC  usecase.HealthUsecase
	// RateStore backs the contact rate limit; nil keeps it in memory
	RateStore middleware.RateStore
	Config    *config.Config
	Logger    *slog.Logger
	// Security receives abuse events; nil disables them
	Security *security.SecurityLogger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := gin.New()
	// ClientIP keys the rate limit, so X-Forwarded-For only counts from known proxies.
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		logger.Error("invalid trusted proxies, trusting none", "error", err)
		_ = r.SetTrustedProxies(nil)
	}

	// Global Middlewares
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORSMiddleware(middleware.CORSConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowLocalhost: !cfg.IsProduction(),
		Security:       deps.Security,
	}))
	r.Use(middleware.Logger(logger))
	r.Use(metrics.Middleware())
	r.Use(middleware.SecurityHeadersMiddleware(cfg.IsProduction()))
	r.Use(middleware.ErrorHandler(logger))

	r.GET("/metrics", metricsAuth(cfg), gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	NewHealthHandler(api, deps.HealthUC)

	// Public routes
	limit := middleware.ContactRateLimitConfig(cfg.RateLimitContact, cfg.RateLimitWindow, deps.RateStore, logger)
	limit.Security = deps.Security

	NewContactHandler(api, deps.ContactUC, deps.Security,
		middleware.BodyLimit(middleware.DefaultMaxBodyBytes, deps.Security),
		middleware.RateLimitMiddleware(limit),
	)

	// Swagger
	api.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

func metricsAuth(cfg *config.Config) gin.HandlerFunc {
	if cfg.MetricsUsername == "" || cfg.MetricsPassword == "" {
		return func(c *gin.Context) { c.Next() }
	}
	return gin.BasicAuth(gin.Accounts{cfg.MetricsUsername: cfg.MetricsPassword})
}
