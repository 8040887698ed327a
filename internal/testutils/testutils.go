package testutils

import (
	"context"
	"time"

	"github.com/dalfonso89/rate-ingestion-service/internal/config"
	"github.com/dalfonso89/rate-ingestion-service/internal/logger"
	"github.com/sirupsen/logrus"
)

// MockLogger creates a logger for tests that only prints errors
func MockLogger() *logrus.Logger {
	return logger.New("error")
}

// MockConfig creates a configuration with every provider configured and
// millisecond retry delays. Base URLs point nowhere; tests inject clients or a mock server.
func MockConfig() *config.Config {
	return &config.Config{
		Port:            "8081",
		LogLevel:        "error",
		RefreshInterval: time.Minute,
		RefreshOnStart:  false,

		BaseCurrency:   "USD",
		FiatCurrencies: []string{"USD", "EUR", "GBP"},
		CryptoAssetMap: []string{"BTC:bitcoin", "ETH:ethereum"},
		MockRateList:   []string{"USD:1", "EUR:0.92", "GBP:0.79", "BTC:0.0000155", "ETH:0.00029"},

		BreakerThreshold:          5,
		BreakerTimeout:            30 * time.Second,
		RetryMax:                  3,
		RetryBaseDelay:            time.Millisecond,
		RetryMaxDelay:             5 * time.Millisecond,
		HealthMaxConsecutiveFails: 3,
		FallbackMaxAge:            24 * time.Hour,
		StaleAfter:                time.Hour,
		ProviderTimeout:           2 * time.Second,

		ExchangeRateAPI: config.ExchangeRateAPIConfig{
			BaseURL: "http://exchangerate-api.invalid",
			APIKey:  "test-api-key",
			Enabled: true,
		},
		OpenExchangeRates: config.OpenExchangeRatesConfig{
			BaseURL: "http://openexchangerates.invalid",
			APIKey:  "test-app-id",
			Enabled: true,
		},
		CoinGecko: config.CoinGeckoConfig{
			BaseURL: "http://coingecko.invalid",
			Enabled: true,
		},

		KafkaTopic: "exchange-rates",

		RateLimitEnabled:  true,
		RateLimitRequests: 100,
		RateLimitWindow:   60 * time.Second,
		RateLimitBurst:    10,
	}
}

// MockConfigWithoutProviders creates a configuration that leaves every provider unconfigured
func MockConfigWithoutProviders() *config.Config {
	cfg := MockConfig()
	cfg.ExchangeRateAPI.APIKey = ""
	cfg.OpenExchangeRates.APIKey = ""
	cfg.CoinGecko.Enabled = false
	return cfg
}

// MockContext creates a context that is cancelled when the test ends
func MockContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}
