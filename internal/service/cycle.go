package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dalfonso89/rate-ingestion-service/internal/events"
	"github.com/dalfonso89/rate-ingestion-service/internal/models"
	"github.com/dalfonso89/rate-ingestion-service/internal/provider"
	"github.com/dalfonso89/rate-ingestion-service/internal/retry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const mockSource = "mock"

// RunCycle performs one refresh of every category. Only one cycle runs at a time;
// a concurrent call returns ErrCycleInProgress with a skipped result.
func (engine *Engine) RunCycle(ctx context.Context) (models.CycleResult, error) {
	if !engine.running.CompareAndSwap(false, true) {
		return models.CycleResult{Status: models.CycleSkipped, StartedAt: engine.now(), FinishedAt: engine.now()}, ErrCycleInProgress
	}
	defer engine.running.Store(false)

	result := models.CycleResult{
		ID:        uuid.NewString(),
		StartedAt: engine.now(),
	}
	cycleLogger := engine.logger.WithField("cycle_id", result.ID)
	cycleLogger.Debug("Refresh cycle started")

	if engine.mockMode {
		result.Categories = engine.refreshMock(ctx)
	} else {
		result.Categories = engine.refreshLive(ctx, result.ID)
	}

	var failed []models.Category
	succeeded := 0
	for _, categoryResult := range result.Categories {
		if categoryResult.Succeeded {
			succeeded++
		} else if !categoryResult.Skipped {
			failed = append(failed, categoryResult.Category)
		}
	}

	var cycleErr error
	if ctx.Err() != nil {
		cycleErr = newError(ErrorTypeContextCancelled, "refresh cycle cancelled", ctx.Err())
	} else if len(failed) > 0 {
		result.FallbackApplied = engine.fallback.Apply(ctx, engine.store, engine.configuration.FallbackMaxAge, failed...)
		engine.metrics.FallbackApplied(result.FallbackApplied)
	}

	switch {
	case cycleErr != nil:
		result.Status = models.CycleFailed
	case len(failed) == 0:
		result.Status = models.CycleSuccess
	case succeeded > 0:
		result.Status = models.CyclePartial
	case result.FallbackApplied > 0:
		result.Status = models.CycleFallback
	default:
		result.Status = models.CycleFailed
	}
	result.FinishedAt = engine.now()

	engine.resultLock.Lock()
	stored := result
	engine.lastResult = &stored
	engine.resultLock.Unlock()

	engine.metrics.ObserveCycle(string(result.Status), result.Duration())
	fields := logrus.Fields{
		"status":           result.Status,
		"duration":         result.Duration().String(),
		"fallback_applied": result.FallbackApplied,
	}
	switch result.Status {
	case models.CycleSuccess:
		cycleLogger.WithFields(fields).Info("Refresh cycle completed")
	case models.CycleFailed:
		cycleLogger.WithFields(fields).WithField("failed_categories", failed).Error("Refresh cycle failed, keeping previous rates")
	default:
		cycleLogger.WithFields(fields).WithField("failed_categories", failed).Warn("Refresh cycle degraded")
	}

	return result, cycleErr
}

// LastCycle returns the result of the most recent completed cycle
func (engine *Engine) LastCycle() (models.CycleResult, bool) {
	engine.resultLock.RLock()
	defer engine.resultLock.RUnlock()

	if engine.lastResult == nil {
		return models.CycleResult{}, false
	}
	return *engine.lastResult, true
}

// refreshLive runs the fiat and crypto phases concurrently
func (engine *Engine) refreshLive(ctx context.Context, cycleID string) []models.CategoryResult {
	results := make([]models.CategoryResult, 2)

	var group errgroup.Group
	group.Go(func() error {
		results[0] = engine.refreshFiat(ctx, cycleID)
		return nil
	})
	group.Go(func() error {
		results[1] = engine.refreshCrypto(ctx, cycleID)
		return nil
	})
	_ = group.Wait()

	return results
}

func (engine *Engine) refreshFiat(ctx context.Context, cycleID string) models.CategoryResult {
	result := models.CategoryResult{Category: models.CategoryFiat}
	if len(engine.fiatSymbols) == 0 {
		result.Skipped = true
		return result
	}
	if len(engine.fiatChain) == 0 {
		result.Error = "no configured provider"
		return result
	}

	base := engine.configuration.BaseCurrency
	for _, client := range engine.fiatChain {
		rates, err := attempt(ctx, engine, client, models.CategoryFiat, &result, func(ctx context.Context) (map[string]float64, error) {
			return client.FetchFiatRates(ctx, base, engine.fiatSymbols)
		})
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			continue
		}

		written := engine.writeRates(ctx, cycleID, client.Name(), models.CategoryFiat, rates)
		if written > 0 {
			result.Succeeded = true
			result.Provider = client.Name()
			result.RatesUpdated = written
			result.Error = ""
			return result
		}
	}
	return result
}

func (engine *Engine) refreshCrypto(ctx context.Context, cycleID string) models.CategoryResult {
	result := models.CategoryResult{Category: models.CategoryCrypto}
	if len(engine.cryptoAssets) == 0 {
		result.Skipped = true
		return result
	}
	if len(engine.cryptoChain) == 0 {
		result.Error = "no configured provider"
		return result
	}

	ids := make([]string, len(engine.cryptoAssets))
	codes := make(map[string]string, len(engine.cryptoAssets))
	for i, asset := range engine.cryptoAssets {
		ids[i] = asset.ID
		codes[asset.ID] = asset.Code
	}
	vsCurrency := engine.configuration.BaseCurrency

	for _, client := range engine.cryptoChain {
		prices, err := attempt(ctx, engine, client, models.CategoryCrypto, &result, func(ctx context.Context) (map[string]float64, error) {
			return client.FetchCryptoPrices(ctx, ids, vsCurrency)
		})
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			continue
		}

		// Prices are base per unit; the store holds units per base
		rates := make(map[string]float64, len(prices))
		for id, price := range prices {
			code, ok := codes[id]
			if !ok || price <= 0 {
				continue
			}
			rates[code] = decimal.NewFromInt(1).Div(decimal.NewFromFloat(price)).InexactFloat64()
		}

		written := engine.writeRates(ctx, cycleID, client.Name(), models.CategoryCrypto, rates)
		if written > 0 {
			result.Succeeded = true
			result.Provider = client.Name()
			result.RatesUpdated = written
			result.Error = ""
			return result
		}
	}
	return result
}

// attempt runs one provider through its breaker and the retry policy and records the outcome
func attempt[T any](ctx context.Context, engine *Engine, client provider.Client, category models.Category, result *models.CategoryResult, fetch func(context.Context) (T, error)) (T, error) {
	var zero T
	name := client.Name()

	if !engine.breakers.Allow(name) {
		engine.metrics.ProviderAttempt(name, "skipped")
		engine.logger.WithFields(logrus.Fields{
			"provider": name,
			"category": category,
		}).Warn("Circuit breaker open, skipping provider")
		result.Attempts = append(result.Attempts, name+": circuit open")
		result.Error = fmt.Sprintf("%s: circuit open", name)
		return zero, fmt.Errorf("%s: circuit breaker open", name)
	}

	policy := engine.policy
	policy.OnRetry = func(attemptNumber int, err error, delay time.Duration) {
		engine.logger.WithFields(logrus.Fields{
			"provider": name,
			"category": category,
			"attempt":  attemptNumber + 1,
			"status":   provider.StatusCode(err),
			"endpoint": provider.Endpoint(err),
			"delay":    delay.String(),
		}).Debug("Retrying provider request")
	}

	value, err := retry.Execute(ctx, policy, fetch)
	if err != nil && ctx.Err() != nil {
		// Shutdown is not the provider's fault
		result.Error = ctx.Err().Error()
		return zero, err
	}

	engine.recordOutcome(name, err == nil)
	if err != nil {
		engine.logProviderError(name, category, 0, err, "Provider request failed")
		result.Attempts = append(result.Attempts, name+": "+classifyError(err).String())
		result.Error = err.Error()
		return zero, err
	}

	result.Attempts = append(result.Attempts, name+": ok")
	return value, nil
}

// writeRates stores every positive rate and refreshes its fallback entry
func (engine *Engine) writeRates(ctx context.Context, cycleID, source string, category models.Category, rates map[string]float64) int {
	now := engine.now()
	written := make(map[string]float64, len(rates))

	for code, value := range rates {
		code = strings.ToUpper(code)
		rate := decimal.NewFromFloat(value)
		if !rate.IsPositive() {
			engine.logger.WithFields(logrus.Fields{
				"provider": source,
				"code":     code,
				"rate":     value,
			}).Warn("Discarding non-positive rate")
			continue
		}
		if err := engine.store.SetRate(ctx, code, rate, now); err != nil {
			engine.logger.WithFields(logrus.Fields{
				"provider": source,
				"code":     code,
				"error":    err,
			}).Warn("Failed to store rate")
			continue
		}
		if source != mockSource {
			engine.fallback.Put(ctx, code, value, category, source)
		}
		written[code] = value
	}

	if len(written) == 0 {
		return 0
	}
	engine.metrics.RatesUpdated(string(category), len(written))

	if source != mockSource {
		event := events.RatesUpdated{
			CycleID:   cycleID,
			Category:  string(category),
			Provider:  source,
			Base:      engine.configuration.BaseCurrency,
			Rates:     written,
			Timestamp: now,
		}
		if err := engine.publisher.PublishRatesUpdated(ctx, event); err != nil {
			engine.logger.WithFields(logrus.Fields{
				"category": category,
				"error":    err,
			}).Warn("Failed to publish rates event")
		}
	}
	return len(written)
}

// refreshMock restamps the configured mock rates without any network call
func (engine *Engine) refreshMock(ctx context.Context) []models.CategoryResult {
	results := make([]models.CategoryResult, 0, 2)

	fiat := make(map[string]float64, len(engine.fiatSymbols))
	for _, code := range engine.fiatSymbols {
		if rate, ok := engine.mockRates[code]; ok {
			fiat[code] = rate
		}
	}
	crypto := make(map[string]float64, len(engine.cryptoAssets))
	for _, asset := range engine.cryptoAssets {
		if rate, ok := engine.mockRates[asset.Code]; ok {
			crypto[asset.Code] = rate
		}
	}

	for _, phase := range []struct {
		category models.Category
		rates    map[string]float64
	}{
		{models.CategoryFiat, fiat},
		{models.CategoryCrypto, crypto},
	} {
		result := models.CategoryResult{Category: phase.category, Skipped: len(phase.rates) == 0}
		if !result.Skipped {
			result.RatesUpdated = engine.writeRates(ctx, "", mockSource, phase.category, phase.rates)
			result.Succeeded = result.RatesUpdated > 0
			result.Provider = mockSource
		}
		results = append(results, result)
	}
	return results
}
