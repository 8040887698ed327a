package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dalfonso89/rate-ingestion-service/internal/metrics"
	"github.com/dalfonso89/rate-ingestion-service/internal/middleware"
	"github.com/dalfonso89/rate-ingestion-service/internal/models"
	"github.com/dalfonso89/rate-ingestion-service/internal/ratelimit"
	"github.com/dalfonso89/rate-ingestion-service/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// RateEngine is the read and admin surface of the ingestion engine
type RateEngine interface {
	HealthCheck(ctx context.Context) (models.HealthReport, error)
	ListRates(ctx context.Context, category models.Category) ([]models.RateRecord, error)
	GetRateRecord(ctx context.Context, code string) (models.RateRecord, error)
	ConvertCurrency(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, bool, error)
	GetCircuitBreakerStatus() []models.CircuitBreakerStatus
	ResetCircuitBreaker(providerName string) error
	GetFallbackRates() []models.FallbackEntry
	ProviderStatus() []models.ProviderHealth
}

// RefreshTrigger starts a refresh cycle on demand
type RefreshTrigger interface {
	TriggerNow(ctx context.Context) (models.CycleResult, error)
}

// HandlerConfig contains all dependencies for the Handlers
type HandlerConfig struct {
	Logger       *logrus.Logger
	Engine       RateEngine
	Trigger      RefreshTrigger
	RateLimiter  *ratelimit.Limiter
	Metrics      *metrics.Metrics
	Gatherer     prometheus.Gatherer
	BaseCurrency string
}

// Handlers contains all HTTP handlers
type Handlers struct {
	logger       *logrus.Logger
	engine       RateEngine
	trigger      RefreshTrigger
	rateLimiter  *ratelimit.Limiter
	metrics      *metrics.Metrics
	gatherer     prometheus.Gatherer
	baseCurrency string
}

// NewHandlers creates a new handlers instance with all dependencies
func NewHandlers(config HandlerConfig) *Handlers {
	return &Handlers{
		logger:       config.Logger,
		engine:       config.Engine,
		trigger:      config.Trigger,
		rateLimiter:  config.RateLimiter,
		metrics:      config.Metrics,
		gatherer:     config.Gatherer,
		baseCurrency: config.BaseCurrency,
	}
}

// SetupRoutes configures all the routes using Gin
func (handlers *Handlers) SetupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(handlers.logger))
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.Metrics(handlers.metrics))
	router.Use(handlers.corsMiddleware())

	router.GET("/health", handlers.HealthCheck)
	if handlers.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(handlers.gatherer, promhttp.HandlerOpts{})))
	}

	apiV1 := router.Group("/api/v1")
	if handlers.rateLimiter != nil {
		apiV1.Use(handlers.rateLimiter.Middleware())
	}
	{
		apiV1.GET("/rates", handlers.GetRates)
		apiV1.GET("/rates/:code", handlers.GetRate)
		apiV1.GET("/convert", handlers.Convert)
	}

	admin := apiV1.Group("/admin")
	{
		admin.GET("/circuit-breakers", handlers.GetCircuitBreakers)
		admin.POST("/circuit-breakers/:provider/reset", handlers.ResetCircuitBreaker)
		admin.GET("/fallback-rates", handlers.GetFallbackRates)
		admin.GET("/providers", handlers.GetProviders)
		admin.POST("/refresh", handlers.TriggerRefresh)
	}

	return router
}

// HealthCheck reports engine health, 503 when unhealthy
func (handlers *Handlers) HealthCheck(context *gin.Context) {
	report, err := handlers.engine.HealthCheck(context.Request.Context())
	if err != nil {
		handlers.logger.WithError(err).Warn("Health check could not read the rate store")
	}

	statusCode := http.StatusOK
	if report.Status == models.StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	context.JSON(statusCode, report)
}

// GetRates returns current rates, optionally filtered by ?category=
func (handlers *Handlers) GetRates(context *gin.Context) {
	var category models.Category
	if value := context.Query("category"); value != "" {
		parsed, ok := models.ParseCategory(value)
		if !ok {
			handlers.writeErrorResponse(context, http.StatusBadRequest, "invalid category", "category must be fiat or crypto")
			return
		}
		category = parsed
	}

	records, err := handlers.engine.ListRates(context.Request.Context(), category)
	if err != nil {
		handlers.writeServiceError(context, err)
		return
	}

	response := models.RatesResponse{
		Base:      handlers.baseCurrency,
		Timestamp: time.Now().Unix(),
		Rates:     make(map[string]float64, len(records)),
	}
	for _, record := range records {
		if record.HasRate() {
			response.Rates[record.Code] = record.Rate.Decimal.InexactFloat64()
		}
	}
	context.JSON(http.StatusOK, response)
}

// GetRate returns the current rate of one currency
func (handlers *Handlers) GetRate(context *gin.Context) {
	code := strings.ToUpper(context.Param("code"))

	record, err := handlers.engine.GetRateRecord(context.Request.Context(), code)
	if err != nil {
		handlers.writeServiceError(context, err)
		return
	}
	if !record.HasRate() {
		handlers.writeErrorResponse(context, http.StatusNotFound, "rate unavailable", "no rate has been recorded for "+code)
		return
	}

	context.JSON(http.StatusOK, models.RateResponse{
		Code:        record.Code,
		Rate:        record.Rate.Decimal.InexactFloat64(),
		Category:    record.Category,
		LastUpdated: record.LastUpdated,
	})
}

// Convert converts an amount between two currencies
func (handlers *Handlers) Convert(context *gin.Context) {
	var query models.ConvertQuery
	if err := context.ShouldBindQuery(&query); err != nil {
		handlers.writeErrorResponse(context, http.StatusBadRequest, "invalid conversion request", err.Error())
		return
	}
	from := strings.ToUpper(query.From)
	to := strings.ToUpper(query.To)

	converted, ok, err := handlers.engine.ConvertCurrency(context.Request.Context(), decimal.NewFromFloat(query.Amount), from, to)
	if err != nil {
		handlers.writeServiceError(context, err)
		return
	}
	if !ok {
		handlers.writeErrorResponse(context, http.StatusNotFound, "rate unavailable", "no rate available for "+from+" or "+to)
		return
	}

	context.JSON(http.StatusOK, models.ConvertResponse{
		From:      from,
		To:        to,
		Amount:    query.Amount,
		Converted: converted.InexactFloat64(),
	})
}

// GetCircuitBreakers lists every provider breaker
func (handlers *Handlers) GetCircuitBreakers(context *gin.Context) {
	context.JSON(http.StatusOK, models.APIResponse{
		Data:   handlers.engine.GetCircuitBreakerStatus(),
		Status: http.StatusOK,
	})
}

// ResetCircuitBreaker closes one provider's breaker
func (handlers *Handlers) ResetCircuitBreaker(context *gin.Context) {
	providerName := context.Param("provider")
	if err := handlers.engine.ResetCircuitBreaker(providerName); err != nil {
		handlers.writeServiceError(context, err)
		return
	}

	handlers.logger.WithFields(logrus.Fields{
		"provider":   providerName,
		"request_id": context.GetString(middleware.RequestIDKey),
	}).Info("Circuit breaker reset by operator")
	context.JSON(http.StatusOK, models.APIResponse{
		Data:   gin.H{"provider": providerName, "reset": true},
		Status: http.StatusOK,
	})
}

// GetFallbackRates lists the fallback cache, stale entries included
func (handlers *Handlers) GetFallbackRates(context *gin.Context) {
	context.JSON(http.StatusOK, models.APIResponse{
		Data:   handlers.engine.GetFallbackRates(),
		Status: http.StatusOK,
	})
}

// GetProviders lists provider health records
func (handlers *Handlers) GetProviders(context *gin.Context) {
	context.JSON(http.StatusOK, models.APIResponse{
		Data:   handlers.engine.ProviderStatus(),
		Status: http.StatusOK,
	})
}

// TriggerRefresh runs a refresh cycle and returns its result
func (handlers *Handlers) TriggerRefresh(context *gin.Context) {
	if handlers.trigger == nil {
		handlers.writeErrorResponse(context, http.StatusServiceUnavailable, "refresh unavailable", "scheduler not configured")
		return
	}

	result, err := handlers.trigger.TriggerNow(context.Request.Context())
	if err != nil {
		handlers.writeServiceError(context, err)
		return
	}
	context.JSON(http.StatusOK, result)
}

// writeServiceError maps a service error onto an HTTP status
func (handlers *Handlers) writeServiceError(context *gin.Context, err error) {
	statusCode := http.StatusInternalServerError
	switch service.TypeOf(err) {
	case service.ErrorTypeNotFound:
		statusCode = http.StatusNotFound
	case service.ErrorTypeCycleInProgress:
		statusCode = http.StatusConflict
	case service.ErrorTypeContextCancelled, service.ErrorTypeNetworkError:
		statusCode = http.StatusServiceUnavailable
	}

	if statusCode >= http.StatusInternalServerError {
		handlers.logger.WithFields(logrus.Fields{
			"path":       context.FullPath(),
			"request_id": context.GetString(middleware.RequestIDKey),
			"error":      err.Error(),
		}).Error("Request failed")
	}
	handlers.writeErrorResponse(context, statusCode, http.StatusText(statusCode), err.Error())
}

// writeErrorResponse writes an error response using Gin context
func (handlers *Handlers) writeErrorResponse(context *gin.Context, statusCode int, errorMessage, errorDetails string) {
	context.JSON(statusCode, models.ErrorResponse{
		Error:   errorMessage,
		Message: errorDetails,
		Code:    statusCode,
	})
}

// corsMiddleware adds CORS headers using Gin middleware
func (handlers *Handlers) corsMiddleware() gin.HandlerFunc {
	return func(context *gin.Context) {
		context.Header("Access-Control-Allow-Origin", "*")
		context.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		context.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")

		if context.Request.Method == http.MethodOptions {
			context.AbortWithStatus(http.StatusNoContent)
			return
		}

		context.Next()
	}
}
