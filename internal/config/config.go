package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Provider identifiers. The provider set is fixed at startup.
const (
	ProviderExchangeRateAPI   = "exchangerate-api"
	ProviderOpenExchangeRates = "openexchangerates"
	ProviderCoinGecko         = "coingecko"
)

// ProviderRole is the position of a provider in the fallback chain of its category
type ProviderRole string

const (
	RoleFiatPrimary   ProviderRole = "fiat-primary"
	RoleFiatSecondary ProviderRole = "fiat-secondary"
	RoleCrypto        ProviderRole = "crypto"
)

// ProviderConfig is the resolved configuration of one rate provider
type ProviderConfig struct {
	Name        string
	Role        ProviderRole
	BaseURL     string
	APIKey      string
	Enabled     bool
	RequiresKey bool
	Timeout     time.Duration
}

// Configured reports whether the provider can be called at all
func (p ProviderConfig) Configured() bool {
	if !p.Enabled || p.BaseURL == "" {
		return false
	}
	return !p.RequiresKey || p.APIKey != ""
}

// ExchangeRateAPIConfig configures the primary fiat provider
type ExchangeRateAPIConfig struct {
	BaseURL string `yaml:"base_url" env:"EXCHANGE_RATE_API_BASE_URL" env-default:"https://v6.exchangerate-api.com/v6"`
	APIKey  string `yaml:"api_key" env:"EXCHANGE_RATE_API_KEY"`
	Enabled bool   `yaml:"enabled" env:"EXCHANGE_RATE_API_ENABLED" env-default:"true"`
}

// OpenExchangeRatesConfig configures the secondary fiat provider
type OpenExchangeRatesConfig struct {
	BaseURL string `yaml:"base_url" env:"OPEN_EXCHANGE_RATES_BASE_URL" env-default:"https://openexchangerates.org/api"`
	APIKey  string `yaml:"app_id" env:"OPEN_EXCHANGE_RATES_APP_ID"`
	Enabled bool   `yaml:"enabled" env:"OPEN_EXCHANGE_RATES_ENABLED" env-default:"true"`
}

// CoinGeckoConfig configures the crypto provider
type CoinGeckoConfig struct {
	BaseURL string `yaml:"base_url" env:"COINGECKO_BASE_URL" env-default:"https://api.coingecko.com/api/v3"`
	APIKey  string `yaml:"api_key" env:"COINGECKO_API_KEY"`
	Enabled bool   `yaml:"enabled" env:"COINGECKO_ENABLED" env-default:"true"`
}

// Config holds all configuration for the application
type Config struct {
	Port     string `yaml:"port" env:"PORT" env-default:"8081"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`

	// Refresh scheduling
	RefreshInterval time.Duration `yaml:"refresh_interval" env:"REFRESH_INTERVAL" env-default:"5m"`
	RefreshOnStart  bool          `yaml:"refresh_on_start" env:"REFRESH_ON_START" env-default:"true"`

	// Currencies
	BaseCurrency   string   `yaml:"base_currency" env:"BASE_CURRENCY" env-default:"USD"`
	FiatCurrencies []string `yaml:"fiat_currencies" env:"FIAT_CURRENCIES" env-separator:"," env-default:"USD,EUR,GBP,JPY,CAD,NGN"`
	CryptoAssetMap []string `yaml:"crypto_assets" env:"CRYPTO_ASSETS" env-separator:"," env-default:"BTC:bitcoin,ETH:ethereum,USDT:tether"`
	MockRateList   []string `yaml:"mock_rates" env:"MOCK_RATES" env-separator:"," env-default:"USD:1,EUR:0.92,GBP:0.79,JPY:151.5,CAD:1.36,NGN:1550,BTC:0.0000155,ETH:0.00029,USDT:1"`

	// Resilience
	BreakerThreshold          int           `yaml:"breaker_threshold" env:"BREAKER_THRESHOLD" env-default:"5"`
	BreakerTimeout            time.Duration `yaml:"breaker_timeout" env:"BREAKER_TIMEOUT" env-default:"30s"`
	RetryMax                  int           `yaml:"retry_max" env:"RETRY_MAX" env-default:"3"`
	RetryBaseDelay            time.Duration `yaml:"retry_base_delay" env:"RETRY_BASE_DELAY" env-default:"1s"`
	RetryMaxDelay             time.Duration `yaml:"retry_max_delay" env:"RETRY_MAX_DELAY" env-default:"30s"`
	HealthMaxConsecutiveFails int           `yaml:"health_max_consecutive_failures" env:"HEALTH_MAX_CONSECUTIVE_FAILURES" env-default:"3"`
	FallbackMaxAge            time.Duration `yaml:"fallback_max_age" env:"FALLBACK_MAX_AGE" env-default:"24h"`
	StaleAfter                time.Duration `yaml:"stale_after" env:"STALE_AFTER" env-default:"1h"`
	ProviderTimeout           time.Duration `yaml:"provider_timeout" env:"PROVIDER_TIMEOUT" env-default:"10s"`

	// Providers
	ExchangeRateAPI   ExchangeRateAPIConfig   `yaml:"exchange_rate_api"`
	OpenExchangeRates OpenExchangeRatesConfig `yaml:"open_exchange_rates"`
	CoinGecko         CoinGeckoConfig         `yaml:"coingecko"`

	// Infrastructure, all optional
	DatabaseURL   string   `yaml:"database_url" env:"DATABASE_URL"`
	RedisAddr     string   `yaml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword string   `yaml:"redis_password" env:"REDIS_PASSWORD"`
	KafkaBrokers  []string `yaml:"kafka_brokers" env:"KAFKA_BROKERS" env-separator:","`
	KafkaTopic    string   `yaml:"kafka_topic" env:"KAFKA_TOPIC" env-default:"exchange-rates"`

	// Rate limiting
	RateLimitEnabled  bool          `yaml:"rate_limit_enabled" env:"RATE_LIMIT_ENABLED" env-default:"true"`
	RateLimitRequests int           `yaml:"rate_limit_requests" env:"RATE_LIMIT_REQUESTS" env-default:"100"`
	RateLimitWindow   time.Duration `yaml:"rate_limit_window" env:"RATE_LIMIT_WINDOW" env-default:"60s"`
	RateLimitBurst    int           `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST" env-default:"10"`
}

// CryptoAsset maps a currency code to the provider's asset id
type CryptoAsset struct {
	Code string
	ID   string
}

// Load loads configuration from an optional YAML file and environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	var cfg Config
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.BaseCurrency = strings.ToUpper(strings.TrimSpace(c.BaseCurrency))
	for i, code := range c.FiatCurrencies {
		c.FiatCurrencies[i] = strings.ToUpper(strings.TrimSpace(code))
	}
}

// Validate rejects settings the engine cannot run with.
// Missing provider credentials are not an error, the provider is simply unconfigured.
func (c *Config) Validate() error {
	var errs []error
	if c.RefreshInterval <= 0 {
		errs = append(errs, errors.New("REFRESH_INTERVAL must be positive"))
	}
	if c.BreakerThreshold <= 0 {
		errs = append(errs, errors.New("BREAKER_THRESHOLD must be positive"))
	}
	if c.BreakerTimeout <= 0 {
		errs = append(errs, errors.New("BREAKER_TIMEOUT must be positive"))
	}
	if c.RetryMax < 0 {
		errs = append(errs, errors.New("RETRY_MAX must not be negative"))
	}
	if c.HealthMaxConsecutiveFails <= 0 {
		errs = append(errs, errors.New("HEALTH_MAX_CONSECUTIVE_FAILURES must be positive"))
	}
	if c.FallbackMaxAge <= 0 {
		errs = append(errs, errors.New("FALLBACK_MAX_AGE must be positive"))
	}
	if c.ProviderTimeout <= 0 {
		errs = append(errs, errors.New("PROVIDER_TIMEOUT must be positive"))
	}
	if len(c.BaseCurrency) < 3 || len(c.BaseCurrency) > 10 {
		errs = append(errs, fmt.Errorf("BASE_CURRENCY %q must be 3-10 characters", c.BaseCurrency))
	}
	for _, code := range c.FiatCurrencies {
		if len(code) < 3 || len(code) > 10 {
			errs = append(errs, fmt.Errorf("fiat currency %q must be 3-10 characters", code))
		}
	}
	if _, err := c.CryptoAssets(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.MockRates(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Providers returns the enumerated provider set in fallback order
func (c *Config) Providers() []ProviderConfig {
	return []ProviderConfig{
		{
			Name:        ProviderExchangeRateAPI,
			Role:        RoleFiatPrimary,
			BaseURL:     c.ExchangeRateAPI.BaseURL,
			APIKey:      c.ExchangeRateAPI.APIKey,
			Enabled:     c.ExchangeRateAPI.Enabled,
			RequiresKey: true,
			Timeout:     c.ProviderTimeout,
		},
		{
			Name:        ProviderOpenExchangeRates,
			Role:        RoleFiatSecondary,
			BaseURL:     c.OpenExchangeRates.BaseURL,
			APIKey:      c.OpenExchangeRates.APIKey,
			Enabled:     c.OpenExchangeRates.Enabled,
			RequiresKey: true,
			Timeout:     c.ProviderTimeout,
		},
		{
			Name:    ProviderCoinGecko,
			Role:    RoleCrypto,
			BaseURL: c.CoinGecko.BaseURL,
			APIKey:  c.CoinGecko.APIKey,
			Enabled: c.CoinGecko.Enabled,
			Timeout: c.ProviderTimeout,
		},
	}
}

// CryptoAssets parses CODE:id pairs
func (c *Config) CryptoAssets() ([]CryptoAsset, error) {
	assets := make([]CryptoAsset, 0, len(c.CryptoAssetMap))
	for _, pair := range c.CryptoAssetMap {
		code, id, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || code == "" || id == "" {
			return nil, fmt.Errorf("invalid crypto asset %q, expected CODE:id", pair)
		}
		assets = append(assets, CryptoAsset{Code: strings.ToUpper(code), ID: strings.ToLower(id)})
	}
	return assets, nil
}

// MockRates parses CODE:rate pairs used when no provider is configured
func (c *Config) MockRates() (map[string]float64, error) {
	rates := make(map[string]float64, len(c.MockRateList))
	for _, pair := range c.MockRateList {
		code, value, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok {
			return nil, fmt.Errorf("invalid mock rate %q, expected CODE:rate", pair)
		}
		rate, err := strconv.ParseFloat(value, 64)
		if err != nil || rate <= 0 {
			return nil, fmt.Errorf("invalid mock rate %q: must be a positive number", pair)
		}
		rates[strings.ToUpper(code)] = rate
	}
	return rates, nil
}
