package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		expected func(*Config) bool
	}{
		{
			name:    "default configuration",
			envVars: map[string]string{},
			expected: func(cfg *Config) bool {
				return cfg.Port == "8081" &&
					cfg.LogLevel == "info" &&
					cfg.RefreshInterval == 5*time.Minute &&
					cfg.BreakerThreshold == 5 &&
					cfg.BreakerTimeout == 30*time.Second &&
					cfg.RetryMax == 3 &&
					cfg.RetryBaseDelay == time.Second &&
					cfg.RetryMaxDelay == 30*time.Second &&
					cfg.HealthMaxConsecutiveFails == 3 &&
					cfg.FallbackMaxAge == 24*time.Hour &&
					cfg.StaleAfter == time.Hour &&
					cfg.ProviderTimeout == 10*time.Second &&
					cfg.BaseCurrency == "USD" &&
					len(cfg.FiatCurrencies) == 6 &&
					cfg.RateLimitEnabled
			},
		},
		{
			name: "custom configuration",
			envVars: map[string]string{
				"PORT":               "9090",
				"LOG_LEVEL":          "debug",
				"REFRESH_INTERVAL":   "1m",
				"BREAKER_THRESHOLD":  "2",
				"FIAT_CURRENCIES":    "usd, eur",
				"RATE_LIMIT_ENABLED": "false",
			},
			expected: func(cfg *Config) bool {
				return cfg.Port == "9090" &&
					cfg.LogLevel == "debug" &&
					cfg.RefreshInterval == time.Minute &&
					cfg.BreakerThreshold == 2 &&
					len(cfg.FiatCurrencies) == 2 &&
					cfg.FiatCurrencies[0] == "USD" &&
					cfg.FiatCurrencies[1] == "EUR" &&
					!cfg.RateLimitEnabled
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CONFIG_PATH", "")
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}

			if !tt.expected(cfg) {
				t.Errorf("Load() configuration does not match expected values: %+v", cfg)
			}
		})
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
	}{
		{"zero breaker threshold", map[string]string{"BREAKER_THRESHOLD": "0"}},
		{"bad crypto asset", map[string]string{"CRYPTO_ASSETS": "BTC"}},
		{"negative mock rate", map[string]string{"MOCK_RATES": "EUR:-1"}},
		{"short base currency", map[string]string{"BASE_CURRENCY": "US"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CONFIG_PATH", "")
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			if _, err := Load(); err == nil {
				t.Errorf("Load() expected error, got nil")
			}
		})
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	content := []byte("port: \"7070\"\nbreaker_threshold: 7\nexchange_rate_api:\n  api_key: file-key\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != "7070" {
		t.Errorf("Port = %v, want 7070", cfg.Port)
	}
	if cfg.BreakerThreshold != 7 {
		t.Errorf("BreakerThreshold = %v, want 7", cfg.BreakerThreshold)
	}
	if cfg.ExchangeRateAPI.APIKey != "file-key" {
		t.Errorf("ExchangeRateAPI.APIKey = %v, want file-key", cfg.ExchangeRateAPI.APIKey)
	}
}

func TestProviderConfig_Configured(t *testing.T) {
	tests := []struct {
		name     string
		provider ProviderConfig
		expected bool
	}{
		{"key present", ProviderConfig{Enabled: true, BaseURL: "http://x", RequiresKey: true, APIKey: "k"}, true},
		{"key missing", ProviderConfig{Enabled: true, BaseURL: "http://x", RequiresKey: true}, false},
		{"key optional", ProviderConfig{Enabled: true, BaseURL: "http://x"}, true},
		{"disabled", ProviderConfig{Enabled: false, BaseURL: "http://x", APIKey: "k"}, false},
		{"no url", ProviderConfig{Enabled: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.provider.Configured(); got != tt.expected {
				t.Errorf("Configured() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestConfig_Providers(t *testing.T) {
	cfg := &Config{
		ProviderTimeout:   10 * time.Second,
		ExchangeRateAPI:   ExchangeRateAPIConfig{BaseURL: "http://a", APIKey: "a", Enabled: true},
		OpenExchangeRates: OpenExchangeRatesConfig{BaseURL: "http://b", Enabled: true},
		CoinGecko:         CoinGeckoConfig{BaseURL: "http://c", Enabled: true},
	}

	providers := cfg.Providers()
	if len(providers) != 3 {
		t.Fatalf("Providers() length = %v, want 3", len(providers))
	}

	expected := []struct {
		name       string
		role       ProviderRole
		configured bool
	}{
		{ProviderExchangeRateAPI, RoleFiatPrimary, true},
		{ProviderOpenExchangeRates, RoleFiatSecondary, false},
		{ProviderCoinGecko, RoleCrypto, true},
	}
	for i, want := range expected {
		if providers[i].Name != want.name || providers[i].Role != want.role {
			t.Errorf("Providers()[%d] = %s/%s, want %s/%s", i, providers[i].Name, providers[i].Role, want.name, want.role)
		}
		if providers[i].Configured() != want.configured {
			t.Errorf("Providers()[%d].Configured() = %v, want %v", i, providers[i].Configured(), want.configured)
		}
		if providers[i].Timeout != 10*time.Second {
			t.Errorf("Providers()[%d].Timeout = %v, want 10s", i, providers[i].Timeout)
		}
	}
}

func TestConfig_CryptoAssets(t *testing.T) {
	cfg := &Config{CryptoAssetMap: []string{"btc:Bitcoin", " ETH:ethereum "}}

	assets, err := cfg.CryptoAssets()
	if err != nil {
		t.Fatalf("CryptoAssets() error = %v", err)
	}
	if len(assets) != 2 {
		t.Fatalf("CryptoAssets() length = %v, want 2", len(assets))
	}
	if assets[0] != (CryptoAsset{Code: "BTC", ID: "bitcoin"}) {
		t.Errorf("CryptoAssets()[0] = %+v", assets[0])
	}
	if assets[1] != (CryptoAsset{Code: "ETH", ID: "ethereum"}) {
		t.Errorf("CryptoAssets()[1] = %+v", assets[1])
	}
}

func TestConfig_MockRates(t *testing.T) {
	cfg := &Config{MockRateList: []string{"usd:1", "EUR:0.9"}}

	rates, err := cfg.MockRates()
	if err != nil {
		t.Fatalf("MockRates() error = %v", err)
	}
	if rates["USD"] != 1 || rates["EUR"] != 0.9 {
		t.Errorf("MockRates() = %v", rates)
	}
}
