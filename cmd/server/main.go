package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dalfonso89/currency-converter/internal/api"
	"github.com/dalfonso89/currency-converter/internal/cache"
	"github.com/dalfonso89/currency-converter/internal/config"
	"github.com/dalfonso89/currency-converter/internal/logger"
	"github.com/dalfonso89/currency-converter/internal/metrics"
	"github.com/dalfonso89/currency-converter/internal/platform"
	"github.com/dalfonso89/currency-converter/internal/ratelimit"
	"github.com/dalfonso89/currency-converter/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger := logger.New(cfg.LogLevel)
	if cfg.LogFormat == "text" {
		appLogger = logger.NewWithOutput(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	}
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	apiKey, err := cfg.RequireAPIKey()
	if err != nil {
		appLogger.Fatalf("Cannot start: %v", err)
	}

	shutdownCtx, stop := platform.NewShutdownContext(context.Background())
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	serviceMetrics := metrics.NewMetrics(registry)

	handlerConfig := api.HandlerConfig{
		Logger:   appLogger,
		Metrics:  serviceMetrics,
		Gatherer: registry,
	}

	// A cache that cannot be opened only costs API requests.
	var store service.CacheStore
	cacheStore, err := cache.Open(shutdownCtx, cfg.CachePath())
	if err != nil {
		appLogger.WithError(err).WithField("path", cfg.CachePath()).Warn("Cache unavailable, every request will go to the API")
	} else {
		defer cacheStore.Close()
		store = cacheStore
		handlerConfig.Cache = cacheStore
	}

	client := service.NewExchangeRateAPIClient(cfg, appLogger)
	handlerConfig.RatesService = service.NewRatesService(store, client, apiKey, appLogger, serviceMetrics)

	rateLimiter := ratelimit.NewLimiter(cfg, appLogger)
	handlerConfig.RateLimiter = rateLimiter

	router := api.NewHandlers(handlerConfig).SetupRoutes()

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		appLogger.WithField("cache", cfg.CachePath()).Info("Starting currency converter on port " + cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-shutdownCtx.Done()
	appLogger.Info("Shutting down server...")

	rateLimiter.Stop()

	// Give outstanding requests 30 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		appLogger.Errorf("Server forced to shutdown: %v", err)
	}

	appLogger.Info("Server exited")
}
