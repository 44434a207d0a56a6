package api

import (
	"github.com/gin-gonic/gin"

	"github.com/kobimpw/Economic-terminal/internal/api/handlers"
	"github.com/kobimpw/Economic-terminal/internal/logging"
	"github.com/kobimpw/Economic-terminal/internal/metrics"
	"github.com/kobimpw/Economic-terminal/internal/middleware"
)

// Scheduler is the part of the precompute scheduler the API needs.
type Scheduler interface {
	handlers.Refresher
	handlers.SweepStatus
}

// Dependencies are the collaborators behind the routes. DB, Redis,
// CacheAnalytics and Metrics may be nil.
type Dependencies struct {
	DB             handlers.HealthChecker
	Redis          handlers.HealthChecker
	Cache          handlers.ForecastReader
	Catalog        handlers.SeriesCatalog
	Scheduler      Scheduler
	Analyzer       handlers.Analyzer
	CacheAnalytics handlers.CacheAnalyticsInterface
	Metrics        *metrics.Collector
	Logger         *logging.StandardLogger
	ServiceName    string
	AllowedOrigins []string
}

// SetupRoutes installs the middleware chain and every endpoint.
func SetupRoutes(router *gin.Engine, deps Dependencies) {
	if deps.Logger == nil {
		deps.Logger = logging.NewStandardLogger("info", "")
	}
	if deps.ServiceName == "" {
		deps.ServiceName = "economic-terminal"
	}

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(deps.AllowedOrigins))
	router.Use(middleware.TelemetryMiddleware(deps.ServiceName))
	if deps.Metrics != nil {
		router.Use(deps.Metrics.GinMiddleware())
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}
	router.Use(middleware.RequestLogger(deps.Logger))

	var sweep handlers.SweepStatus
	var refresher handlers.Refresher
	if deps.Scheduler != nil {
		sweep = deps.Scheduler
		refresher = deps.Scheduler
	}

	healthHandler := handlers.NewHealthHandler(deps.DB, deps.Redis, sweep, deps.Cache, deps.Catalog)
	router.GET("/health", healthHandler.HealthCheck)
	router.HEAD("/health", healthHandler.HealthCheck)

	forecastHandler := handlers.NewForecastHandler(deps.Cache, deps.Catalog, refresher)
	analysisHandler := handlers.NewAnalysisHandler(deps.Analyzer)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/series", forecastHandler.ListSeries)

		precomputed := v1.Group("/precomputed")
		{
			precomputed.GET("", forecastHandler.GetPrecomputedSummary)
			precomputed.GET("/:seriesId", forecastHandler.GetPrecomputed)
		}

		v1.GET("/chart/:seriesId", forecastHandler.GetChart)
		v1.POST("/analyze", analysisHandler.Analyze)

		if refresher != nil {
			v1.POST("/refresh/:scope", forecastHandler.Refresh)
		}

		if deps.CacheAnalytics != nil {
			cacheHandler := handlers.NewCacheHandler(deps.CacheAnalytics)
			cache := v1.Group("/cache")
			{
				cache.GET("/stats", cacheHandler.GetCacheStats)
				cache.GET("/stats/:category", cacheHandler.GetCacheStatsByCategory)
				cache.DELETE("/stats", cacheHandler.ResetCacheStats)
			}
		}
	}
}
