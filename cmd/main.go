package main

import (
	"commerce-api/internal/handler"
	mid "commerce-api/internal/middleware"
	"commerce-api/internal/ref"
	"commerce-api/internal/telemetry"
	"commerce-api/pkg/config"
	"commerce-api/pkg/database"
	"commerce-api/pkg/jwtutil"
	"commerce-api/pkg/logger"
	"commerce-api/prometheus"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	// Load configuration (reads .env when present)
	appConfig, err := config.Load()
	if err != nil {
		// Can't use structured logger yet since it's not initialized
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	if err := logger.InitLogger(appConfig); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	defer log.Sync()

	log.Info("Starting commerce-api",
		zap.String("environment", appConfig.Server.Env),
		zap.String("port", appConfig.Server.Port))

	// Initialize JWT utility
	jwtutil.Initialize(&appConfig.JWT)
	log.Info("JWT utility initialized")

	// Initialize Prometheus metrics
	prometheus.InitMetrics(appConfig)
	log.Info("Prometheus metrics initialized",
		zap.String("metrics_prefix", appConfig.Metrics.Prefix))

	// Initialize database
	if err := database.InitDB(appConfig); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	// Shared handler dependencies
	deps := &handler.Deps{
		Config:  appConfig,
		Tracker: telemetry.NewTracker(log),
		Events:  telemetry.NewPublisher(appConfig, log),
		Resolver: ref.NewResolver(
			"customers", "addresses", "phones",
			"orders", "products", "productbrands"),
	}
	if deps.Events.Enabled() {
		log.Info("Change event publication enabled",
			zap.String("endpoint", appConfig.Event.Endpoint))
	}

	// Initialize Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()

	// Key-in-parentheses paths must rewrite before routing
	e.Pre(mid.ODataPathMiddleware)

	// Middleware
	e.Use(middleware.Recover())
	e.Use(mid.RequestIDMiddleware)
	e.Use(mid.MetricsMiddleware)

	// Metrics endpoint
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Health check endpoint
	e.GET("/health", handler.HealthCheck)

	// Entity API routes
	var api *echo.Group
	if appConfig.Auth.Enabled {
		log.Info("Bearer token enforcement enabled")
		api = e.Group("", mid.AuthMiddleware)
	} else {
		api = e.Group("")
	}

	handler.NewCustomerResource(deps).Register(api)
	handler.NewAddressResource(deps).Register(api)
	handler.NewPhoneResource(deps).Register(api)
	handler.NewOrderResource(deps).Register(api)
	handler.NewProductResource(deps).Register(api)
	handler.NewProductBrandResource(deps).Register(api)

	// Start server
	port := appConfig.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Server error", zap.Error(err))
	}
}
