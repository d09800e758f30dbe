package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dalfonso89/currency-converter/internal/logger"
	"github.com/dalfonso89/currency-converter/internal/metrics"
	"github.com/dalfonso89/currency-converter/internal/middleware"
	"github.com/dalfonso89/currency-converter/internal/models"
	"github.com/dalfonso89/currency-converter/internal/ratelimit"
)

const version = "1.0.0"

// RatesResolver is the part of service.RatesService the handlers use.
type RatesResolver interface {
	GetRates(ctx context.Context, baseCode string) (*models.RateSnapshot, error)
	Convert(ctx context.Context, from, to string, amount float64) (models.ConvertResponse, error)
}

// Pinger reports whether the cache is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HandlerConfig holds the dependencies of the handlers. Cache, RateLimiter,
// Metrics and Gatherer are optional.
type HandlerConfig struct {
	Logger       *logger.Logger
	RatesService RatesResolver
	Cache        Pinger
	RateLimiter  *ratelimit.Limiter
	Metrics      *metrics.Metrics
	Gatherer     prometheus.Gatherer
}

// Handlers contains all HTTP handlers
type Handlers struct {
	logger       *logger.Logger
	ratesService RatesResolver
	cache        Pinger
	rateLimiter  *ratelimit.Limiter
	metrics      *metrics.Metrics
	gatherer     prometheus.Gatherer
	startTime    time.Time
}

// NewHandlers creates a new handlers instance
func NewHandlers(handlerConfig HandlerConfig) *Handlers {
	return &Handlers{
		logger:       handlerConfig.Logger,
		ratesService: handlerConfig.RatesService,
		cache:        handlerConfig.Cache,
		rateLimiter:  handlerConfig.RateLimiter,
		metrics:      handlerConfig.Metrics,
		gatherer:     handlerConfig.Gatherer,
		startTime:    time.Now(),
	}
}

// SetupRoutes configures all the routes using Gin
func (handlers *Handlers) SetupRoutes() *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(handlers.logger))
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(handlers.corsMiddleware())
	if handlers.metrics != nil {
		router.Use(middleware.Metrics(handlers.metrics))
	}

	router.GET("/health", handlers.HealthCheck)
	if handlers.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(handlers.gatherer, promhttp.HandlerOpts{})))
	}

	apiV1 := router.Group("/api/v1")
	if handlers.rateLimiter != nil {
		apiV1.Use(handlers.rateLimiter.Middleware())
	}
	{
		apiV1.GET("/rates/:base", handlers.GetRatesByBase)
		apiV1.GET("/convert", handlers.Convert)
	}

	return router
}

// HealthCheck reports liveness and whether the cache is reachable. A broken
// cache only degrades the service.
func (handlers *Handlers) HealthCheck(context *gin.Context) {
	cacheStatus := "disabled"
	if handlers.cache != nil {
		cacheStatus = "ok"
		if err := handlers.cache.Ping(context.Request.Context()); err != nil {
			cacheStatus = "unavailable"
			handlers.logger.WithError(err).Warn("Cache health check failed")
		}
	}

	status := "healthy"
	if cacheStatus == "unavailable" {
		status = "degraded"
	}

	context.JSON(http.StatusOK, models.HealthCheck{
		Status:    status,
		Cache:     cacheStatus,
		Timestamp: time.Now(),
		Version:   version,
		Uptime:    time.Since(handlers.startTime).String(),
	})
}

// GetRatesByBase returns the rate table for the base currency in the path.
func (handlers *Handlers) GetRatesByBase(context *gin.Context) {
	baseCode := strings.ToUpper(context.Param("base"))
	if !models.IsCurrencyCode(baseCode) {
		handlers.writeError(context, models.NewInvalidInputError("currency code has to be three letters, for example USD or EUR"))
		return
	}

	snapshot, err := handlers.ratesService.GetRates(context.Request.Context(), baseCode)
	if err != nil {
		handlers.writeError(context, err)
		return
	}

	context.JSON(http.StatusOK, snapshot)
}

// Convert handles GET /api/v1/convert?from=USD&to=GBP&amount=10
func (handlers *Handlers) Convert(context *gin.Context) {
	var query models.ConvertQuery
	if err := context.ShouldBindQuery(&query); err != nil {
		handlers.writeError(context, models.NewInvalidInputError("from and to must be uppercase currency codes and amount a positive number"))
		return
	}

	result, err := handlers.ratesService.Convert(context.Request.Context(), query.From, query.To, query.Amount)
	if err != nil {
		handlers.writeError(context, err)
		return
	}

	context.JSON(http.StatusOK, result)
}

// writeError maps the error taxonomy onto HTTP statuses.
func (handlers *Handlers) writeError(context *gin.Context, err error) {
	statusCode := statusFor(err)
	errorName := "internal_error"
	if errorType, ok := models.TypeOf(err); ok {
		errorName = errorType.String()
	}

	if statusCode >= http.StatusInternalServerError {
		handlers.logger.WithError(err).WithField("path", context.Request.URL.Path).Error("Request failed")
	}
	context.Error(err)

	context.JSON(statusCode, models.ErrorResponse{
		Error:   errorName,
		Message: err.Error(),
		Code:    statusCode,
	})
}

func statusFor(err error) int {
	errorType, ok := models.TypeOf(err)
	if !ok {
		return http.StatusInternalServerError
	}

	switch errorType {
	case models.ErrorTypeInvalidInput, models.ErrorTypeMalformedRequest:
		return http.StatusBadRequest
	case models.ErrorTypeUnsupportedCurrencyCode, models.ErrorTypeCurrencyNotFound:
		return http.StatusNotFound
	case models.ErrorTypeQuotaExceeded:
		return http.StatusTooManyRequests
	case models.ErrorTypeInvalidAPIKey, models.ErrorTypeInactiveAccount, models.ErrorTypeUnknownProvider,
		models.ErrorTypeTransport, models.ErrorTypeDeserialize:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// corsMiddleware adds CORS headers using Gin middleware
func (handlers *Handlers) corsMiddleware() gin.HandlerFunc {
	return func(context *gin.Context) {
		context.Header("Access-Control-Allow-Origin", "*")
		context.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		context.Header("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")

		if context.Request.Method == http.MethodOptions {
			context.AbortWithStatus(http.StatusOK)
			return
		}

		context.Next()
	}
}
