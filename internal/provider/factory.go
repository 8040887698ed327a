package provider

import (
	"fmt"

	"github.com/dalfonso89/rate-ingestion-service/internal/config"
	"github.com/sirupsen/logrus"
)

// Factory creates provider clients from configuration
type Factory struct {
	logger *logrus.Logger
}

// NewFactory creates a new provider factory
func NewFactory(logger *logrus.Logger) *Factory {
	return &Factory{logger: logger}
}

// Create builds the client for one configured provider
func (f *Factory) Create(providerConfig config.ProviderConfig) (Client, error) {
	switch providerConfig.Name {
	case config.ProviderExchangeRateAPI:
		return NewExchangeRateAPIClient(providerConfig.Name, providerConfig.BaseURL, providerConfig.APIKey, providerConfig.Timeout, f.logger), nil
	case config.ProviderOpenExchangeRates:
		return NewOpenExchangeRatesClient(providerConfig.Name, providerConfig.BaseURL, providerConfig.APIKey, providerConfig.Timeout, f.logger), nil
	case config.ProviderCoinGecko:
		return NewCoinGeckoClient(providerConfig.Name, providerConfig.BaseURL, providerConfig.APIKey, providerConfig.Timeout, f.logger), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", providerConfig.Name)
	}
}
