package service

import (
	"context"
	"errors"
	"strings"

	"github.com/dalfonso89/rate-ingestion-service/internal/models"
	"github.com/dalfonso89/rate-ingestion-service/internal/store"
	"github.com/shopspring/decimal"
)

// GetRateRecord returns the stored record for code
func (engine *Engine) GetRateRecord(ctx context.Context, code string) (models.RateRecord, error) {
	record, err := engine.store.GetRate(ctx, strings.ToUpper(code))
	if errors.Is(err, store.ErrNotFound) {
		return models.RateRecord{}, newError(ErrorTypeNotFound, "currency "+strings.ToUpper(code)+" not found", err)
	}
	if err != nil {
		return models.RateRecord{}, newError(ErrorTypeStorage, "failed to read rate", err)
	}
	return record, nil
}

// GetCurrentRate returns the current rate of code. ok is false when the code is
// unknown or has no rate yet.
func (engine *Engine) GetCurrentRate(ctx context.Context, code string) (rate decimal.Decimal, ok bool, err error) {
	record, err := engine.GetRateRecord(ctx, code)
	if IsNotFound(err) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	if !record.HasRate() {
		return decimal.Zero, false, nil
	}
	return record.Rate.Decimal, true, nil
}

// ConvertCurrency converts amount between two codes through the base currency:
// amount * rate(to) / rate(from). ok is false when either rate is unknown.
func (engine *Engine) ConvertCurrency(ctx context.Context, amount decimal.Decimal, from, to string) (converted decimal.Decimal, ok bool, err error) {
	fromRate, ok, err := engine.GetCurrentRate(ctx, from)
	if err != nil || !ok || fromRate.IsZero() {
		return decimal.Zero, false, err
	}
	toRate, ok, err := engine.GetCurrentRate(ctx, to)
	if err != nil || !ok {
		return decimal.Zero, false, err
	}
	return amount.Mul(toRate).Div(fromRate), true, nil
}

// GetAllCurrentRates returns every active currency that has a rate
func (engine *Engine) GetAllCurrentRates(ctx context.Context) (map[string]decimal.Decimal, error) {
	records, err := engine.store.ListActive(ctx)
	if err != nil {
		return nil, newError(ErrorTypeStorage, "failed to list rates", err)
	}

	rates := make(map[string]decimal.Decimal, len(records))
	for _, record := range records {
		if record.HasRate() {
			rates[record.Code] = record.Rate.Decimal
		}
	}
	return rates, nil
}

// ListRates returns the active records of one category, or of all categories when empty
func (engine *Engine) ListRates(ctx context.Context, category models.Category) ([]models.RateRecord, error) {
	var (
		records []models.RateRecord
		err     error
	)
	if category == "" {
		records, err = engine.store.ListActive(ctx)
	} else {
		records, err = engine.store.ListByCategory(ctx, category)
	}
	if err != nil {
		return nil, newError(ErrorTypeStorage, "failed to list rates", err)
	}
	return records, nil
}

// HealthCheck reports unhealthy when no active rate was updated within the staleness
// window, degraded when a breaker is open or a provider is unhealthy, healthy otherwise.
func (engine *Engine) HealthCheck(ctx context.Context) (models.HealthReport, error) {
	now := engine.now()
	report := models.HealthReport{
		APIStatus:          engine.health.Status(),
		CircuitBreakers:    engine.breakers.Status(),
		FallbackRatesCount: engine.fallback.Len(),
		MockMode:           engine.mockMode,
		Timestamp:          now,
	}

	records, err := engine.store.ListActive(ctx)
	if err != nil {
		report.Status = models.StatusUnhealthy
		return report, newError(ErrorTypeStorage, "failed to list rates", err)
	}
	for _, record := range records {
		if record.LastUpdated == nil {
			continue
		}
		if report.LastUpdate == nil || record.LastUpdated.After(*report.LastUpdate) {
			lastUpdate := *record.LastUpdated
			report.LastUpdate = &lastUpdate
		}
	}

	switch {
	case report.LastUpdate == nil || now.Sub(*report.LastUpdate) > engine.configuration.StaleAfter:
		report.Status = models.StatusUnhealthy
	case engine.breakers.AnyOpen() || engine.health.AnyUnhealthy():
		report.Status = models.StatusDegraded
	default:
		report.Status = models.StatusHealthy
	}
	return report, nil
}

// GetCircuitBreakerStatus returns the state of every provider breaker
func (engine *Engine) GetCircuitBreakerStatus() []models.CircuitBreakerStatus {
	return engine.breakers.Status()
}

// ResetCircuitBreaker closes the breaker of providerName
func (engine *Engine) ResetCircuitBreaker(providerName string) error {
	if err := engine.breakers.Reset(providerName); err != nil {
		return newError(ErrorTypeNotFound, "provider "+providerName+" not found", err)
	}
	engine.metrics.SetBreakerOpen(providerName, false)
	engine.logger.WithField("provider", providerName).Info("Circuit breaker reset")
	return nil
}

// GetFallbackRates returns every fallback entry, stale ones included
func (engine *Engine) GetFallbackRates() []models.FallbackEntry {
	return engine.fallback.GetAll()
}

// ProviderStatus returns the health record of every provider
func (engine *Engine) ProviderStatus() []models.ProviderHealth {
	return engine.health.Status()
}
