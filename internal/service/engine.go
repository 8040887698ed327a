package service

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dalfonso89/rate-ingestion-service/internal/breaker"
	"github.com/dalfonso89/rate-ingestion-service/internal/config"
	"github.com/dalfonso89/rate-ingestion-service/internal/events"
	"github.com/dalfonso89/rate-ingestion-service/internal/fallback"
	"github.com/dalfonso89/rate-ingestion-service/internal/health"
	"github.com/dalfonso89/rate-ingestion-service/internal/metrics"
	"github.com/dalfonso89/rate-ingestion-service/internal/models"
	"github.com/dalfonso89/rate-ingestion-service/internal/provider"
	"github.com/dalfonso89/rate-ingestion-service/internal/retry"
	"github.com/dalfonso89/rate-ingestion-service/internal/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Dependencies are the collaborators of the Engine. Store and Logger are required.
type Dependencies struct {
	Store    store.RateStore
	Fallback *fallback.Cache
	Logger   *logrus.Logger
	// Clients overrides the provider clients built from configuration, keyed by provider name
	Clients   map[string]provider.Client
	Publisher events.Publisher
	Metrics   *metrics.Metrics
	Now       func() time.Time
}

// Engine is the ingestion orchestrator. It owns breakers and health records for the
// fixed provider set and runs at most one refresh cycle at a time.
type Engine struct {
	configuration *config.Config
	logger        *logrus.Logger
	store         store.RateStore
	fallback      *fallback.Cache
	breakers      *breaker.Set
	health        *health.Tracker
	policy        retry.Policy
	publisher     events.Publisher
	metrics       *metrics.Metrics
	now           func() time.Time

	fiatChain    []provider.Client
	cryptoChain  []provider.Client
	fiatSymbols  []string
	cryptoAssets []config.CryptoAsset
	mockRates    map[string]float64
	mockMode     bool

	running    atomic.Bool
	resultLock sync.RWMutex
	lastResult *models.CycleResult
}

// NewEngine wires the engine for the configured provider set
func NewEngine(configuration *config.Config, deps Dependencies) (*Engine, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("rate store is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Fallback == nil {
		deps.Fallback = fallback.NewCache(nil, deps.Logger, deps.Now)
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NopPublisher{}
	}

	cryptoAssets, err := configuration.CryptoAssets()
	if err != nil {
		return nil, err
	}
	mockRates, err := configuration.MockRates()
	if err != nil {
		return nil, err
	}

	providerConfigs := configuration.Providers()
	names := make([]string, len(providerConfigs))
	for i, providerConfig := range providerConfigs {
		names[i] = providerConfig.Name
	}

	engine := &Engine{
		configuration: configuration,
		logger:        deps.Logger,
		store:         deps.Store,
		fallback:      deps.Fallback,
		breakers:      breaker.New(names, configuration.BreakerThreshold, configuration.BreakerTimeout, breaker.WithClock(deps.Now)),
		health:        health.NewTracker(names, configuration.HealthMaxConsecutiveFails, deps.Now),
		policy:        retry.NewPolicy(configuration.RetryMax, configuration.RetryBaseDelay, configuration.RetryMaxDelay),
		publisher:     deps.Publisher,
		metrics:       deps.Metrics,
		now:           deps.Now,
		fiatSymbols:   configuration.FiatCurrencies,
		cryptoAssets:  cryptoAssets,
		mockRates:     mockRates,
	}

	factory := provider.NewFactory(deps.Logger)
	for _, providerConfig := range providerConfigs {
		if !providerConfig.Configured() {
			engine.health.MarkUnconfigured(providerConfig.Name)
			engine.logger.WithField("provider", providerConfig.Name).Warn("Provider not configured, marking unhealthy")
			continue
		}

		client, ok := deps.Clients[providerConfig.Name]
		if !ok {
			if client, err = factory.Create(providerConfig); err != nil {
				return nil, err
			}
		}

		switch providerConfig.Role {
		case config.RoleFiatPrimary, config.RoleFiatSecondary:
			engine.fiatChain = append(engine.fiatChain, client)
		case config.RoleCrypto:
			engine.cryptoChain = append(engine.cryptoChain, client)
		}
	}
	engine.mockMode = len(engine.fiatChain) == 0 && len(engine.cryptoChain) == 0

	return engine, nil
}

// MockMode reports whether the engine runs without any configured provider
func (engine *Engine) MockMode() bool {
	return engine.mockMode
}

// Bootstrap seeds the rate store, restores the fallback mirror and validates providers.
// Provider validation failures are logged and recorded, never returned.
func (engine *Engine) Bootstrap(ctx context.Context) error {
	if err := engine.store.Seed(ctx, engine.seedRecords()); err != nil {
		return newError(ErrorTypeStorage, "failed to seed currencies", err)
	}

	if loaded, err := engine.fallback.Load(ctx); err != nil {
		engine.logger.WithError(err).Warn("Failed to load fallback entries from mirror")
	} else if loaded > 0 {
		engine.logger.WithField("entries", loaded).Info("Restored fallback entries from mirror")
	}

	if engine.mockMode {
		engine.logger.Warn("No rate providers configured, serving seeded mock rates")
		return nil
	}

	clients := append(append([]provider.Client{}, engine.fiatChain...), engine.cryptoChain...)
	var group errgroup.Group
	for _, client := range clients {
		client := client
		group.Go(func() error {
			engine.validate(ctx, client)
			return nil
		})
	}
	return group.Wait()
}

func (engine *Engine) validate(ctx context.Context, client provider.Client) {
	err := client.Validate(ctx)
	if ctx.Err() != nil {
		return
	}

	engine.recordOutcome(client.Name(), err == nil)
	if err == nil {
		engine.logger.WithField("provider", client.Name()).Info("Provider validated")
		return
	}
	engine.logProviderError(client.Name(), "", 0, err, "Provider validation failed")
}

func (engine *Engine) seedRecords() []models.RateRecord {
	now := engine.now()
	records := make([]models.RateRecord, 0, len(engine.fiatSymbols)+len(engine.cryptoAssets))
	add := func(code string, category models.Category) {
		record := models.RateRecord{Code: code, Category: category, Active: true}
		if engine.mockMode {
			if rate, ok := engine.mockRates[code]; ok {
				ts := now
				record.Rate = decimal.NewNullDecimal(decimal.NewFromFloat(rate))
				record.LastUpdated = &ts
			}
		}
		records = append(records, record)
	}

	for _, code := range engine.fiatSymbols {
		add(code, models.CategoryFiat)
	}
	for _, asset := range engine.cryptoAssets {
		add(asset.Code, models.CategoryCrypto)
	}
	return records
}

// recordOutcome applies one provider outcome to its breaker and health record
func (engine *Engine) recordOutcome(providerName string, success bool) {
	engine.breakers.RecordResult(providerName, success)
	engine.health.RecordAttempt(providerName, success)

	outcome := "success"
	if !success {
		outcome = "failure"
	}
	engine.metrics.ProviderAttempt(providerName, outcome)

	state, err := engine.breakers.State(providerName)
	if err == nil {
		engine.metrics.SetBreakerOpen(providerName, state != breaker.StateClosed)
	}
}

func (engine *Engine) logProviderError(providerName string, category models.Category, attempt int, err error, message string) {
	fields := logrus.Fields{
		"provider":   providerName,
		"status":     provider.StatusCode(err),
		"endpoint":   provider.Endpoint(err),
		"error_type": classifyError(err).String(),
		"error":      err.Error(),
	}
	if category != "" {
		fields["category"] = category
	}
	if attempt > 0 {
		fields["attempt"] = attempt
	}

	entry := engine.logger.WithFields(fields)
	if provider.StatusCode(err) == http.StatusForbidden {
		entry.Error(message + ": access denied, check the API key and plan quota")
		return
	}
	entry.Warn(message)
}
