package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Category groups currencies fetched from a common kind of provider
type Category string

const (
	CategoryFiat   Category = "FIAT"
	CategoryCrypto Category = "CRYPTO"
)

// Categories lists every category in refresh order
var Categories = []Category{CategoryFiat, CategoryCrypto}

// ParseCategory parses a category name case-insensitively
func ParseCategory(value string) (Category, bool) {
	switch Category(strings.ToUpper(strings.TrimSpace(value))) {
	case CategoryFiat:
		return CategoryFiat, true
	case CategoryCrypto:
		return CategoryCrypto, true
	default:
		return "", false
	}
}

// RateRecord is the current known exchange rate for one currency code.
// Rate is expressed in units of Code per one unit of the base currency.
type RateRecord struct {
	Code        string              `json:"code"`
	Rate        decimal.NullDecimal `json:"rate"`
	Category    Category            `json:"category"`
	LastUpdated *time.Time          `json:"last_updated,omitempty"`
	Active      bool                `json:"active"`
}

// HasRate reports whether the record carries a usable rate
func (r RateRecord) HasRate() bool {
	return r.Rate.Valid && r.Rate.Decimal.IsPositive()
}

// FallbackEntry is the last-known-good snapshot for one currency code
type FallbackEntry struct {
	Code      string    `json:"code" msgpack:"code"`
	Rate      float64   `json:"rate" msgpack:"rate"`
	Category  Category  `json:"category" msgpack:"category"`
	Source    string    `json:"source" msgpack:"source"`
	Timestamp time.Time `json:"timestamp" msgpack:"timestamp"`
}

// CircuitBreakerStatus is a point-in-time view of one provider's breaker
type CircuitBreakerStatus struct {
	Provider    string     `json:"provider"`
	IsOpen      bool       `json:"is_open"`
	Failures    int        `json:"failures"`
	LastAttempt *time.Time `json:"last_attempt,omitempty"`
}

// ProviderHealth is the observability record for one provider
type ProviderHealth struct {
	Provider            string     `json:"provider"`
	IsHealthy           bool       `json:"is_healthy"`
	LastCheck           *time.Time `json:"last_check,omitempty"`
	LastSuccess         *time.Time `json:"last_success,omitempty"`
	ErrorCount          int        `json:"error_count"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	Configured          bool       `json:"configured"`
}

// HealthStatus is the overall engine status reported by health checks
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
)

// HealthReport is the response of the engine health check
type HealthReport struct {
	Status             HealthStatus           `json:"status"`
	APIStatus          []ProviderHealth       `json:"api_status"`
	CircuitBreakers    []CircuitBreakerStatus `json:"circuit_breakers"`
	LastUpdate         *time.Time             `json:"last_update,omitempty"`
	FallbackRatesCount int                    `json:"fallback_rates_count"`
	MockMode           bool                   `json:"mock_mode"`
	Timestamp          time.Time              `json:"timestamp"`
}

// CycleStatus summarises the outcome of a refresh cycle
type CycleStatus string

const (
	CycleSuccess  CycleStatus = "success"
	CyclePartial  CycleStatus = "partial"
	CycleFallback CycleStatus = "fallback"
	CycleFailed   CycleStatus = "failed"
	CycleSkipped  CycleStatus = "skipped"
)

// CategoryResult is the outcome of one category within a cycle
type CategoryResult struct {
	Category     Category `json:"category"`
	Succeeded    bool     `json:"succeeded"`
	Skipped      bool     `json:"skipped,omitempty"`
	Provider     string   `json:"provider,omitempty"`
	RatesUpdated int      `json:"rates_updated"`
	Attempts     []string `json:"attempts,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// CycleResult is returned by every refresh cycle
type CycleResult struct {
	ID              string           `json:"id"`
	Status          CycleStatus      `json:"status"`
	StartedAt       time.Time        `json:"started_at"`
	FinishedAt      time.Time        `json:"finished_at"`
	Categories      []CategoryResult `json:"categories"`
	FallbackApplied int              `json:"fallback_applied"`
}

// Duration returns how long the cycle ran
func (c CycleResult) Duration() time.Duration {
	return c.FinishedAt.Sub(c.StartedAt)
}

// RatesResponse lists current rates keyed by currency code
type RatesResponse struct {
	Base      string             `json:"base"`
	Timestamp int64              `json:"timestamp"`
	Rates     map[string]float64 `json:"rates"`
}

// RateResponse is the current rate of a single currency
type RateResponse struct {
	Code        string     `json:"code"`
	Rate        float64    `json:"rate"`
	Category    Category   `json:"category"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
}

// ConvertQuery holds the query parameters of a conversion request
type ConvertQuery struct {
	From   string  `form:"from" binding:"required,min=3,max=10"`
	To     string  `form:"to" binding:"required,min=3,max=10"`
	Amount float64 `form:"amount" binding:"required,gt=0"`
}

// ConvertResponse is the result of a conversion
type ConvertResponse struct {
	From      string  `json:"from"`
	To        string  `json:"to"`
	Amount    float64 `json:"amount"`
	Converted float64 `json:"converted"`
}

// ErrorResponse is the JSON error envelope returned by the API
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// APIResponse wraps list payloads returned by the admin API
type APIResponse struct {
	Data   interface{} `json:"data"`
	Status int         `json:"status"`
}
