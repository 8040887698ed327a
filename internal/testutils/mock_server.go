package testutils

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/dalfonso89/rate-ingestion-service/internal/config"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// MockProviderServer serves the three upstream rate APIs from one httptest server,
// each under its own path prefix.
type MockProviderServer struct {
	server *httptest.Server

	mu           sync.Mutex
	fiatRates    map[string]float64
	cryptoPrices map[string]float64
	statuses     map[string]int
	requests     map[string]int
}

// NewMockProviderServer starts a server with default USD-based data
func NewMockProviderServer() *MockProviderServer {
	mock := &MockProviderServer{
		fiatRates:    map[string]float64{"USD": 1, "EUR": 0.9, "GBP": 0.8, "JPY": 150},
		cryptoPrices: map[string]float64{"bitcoin": 50000, "ethereum": 2500},
		statuses:     make(map[string]int),
		requests:     make(map[string]int),
	}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.handler))
	return mock
}

// URL returns the server root URL
func (m *MockProviderServer) URL() string {
	return m.server.URL
}

// Close shuts the server down
func (m *MockProviderServer) Close() {
	m.server.Close()
}

// SetStatus makes every request to the named provider answer with status.
// Zero restores normal responses.
func (m *MockProviderServer) SetStatus(providerName string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[providerName] = status
}

// SetFiatRates replaces the rates served by both fiat providers
func (m *MockProviderServer) SetFiatRates(rates map[string]float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fiatRates = rates
}

// Requests returns how many requests the named provider received
func (m *MockProviderServer) Requests(providerName string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[providerName]
}

// Configure points every provider of cfg at the mock server
func (m *MockProviderServer) Configure(cfg *config.Config) {
	cfg.ExchangeRateAPI.BaseURL = m.URL() + "/" + config.ProviderExchangeRateAPI
	cfg.OpenExchangeRates.BaseURL = m.URL() + "/" + config.ProviderOpenExchangeRates
	cfg.CoinGecko.BaseURL = m.URL() + "/" + config.ProviderCoinGecko
}

func (m *MockProviderServer) handler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	providerName, path, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")

	m.mu.Lock()
	m.requests[providerName]++
	status := m.statuses[providerName]
	fiat := copyRates(m.fiatRates)
	crypto := copyRates(m.cryptoPrices)
	m.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch providerName {
	case config.ProviderExchangeRateAPI:
		if strings.HasSuffix(path, "/quota") {
			writeJSON(w, map[string]interface{}{"result": "success", "requests_remaining": 1000})
			return
		}
		writeJSON(w, map[string]interface{}{"result": "success", "base_code": "USD", "conversion_rates": fiat})
	case config.ProviderOpenExchangeRates:
		if path == "usage.json" {
			writeJSON(w, map[string]interface{}{"status": 200})
			return
		}
		writeJSON(w, map[string]interface{}{"base": "USD", "rates": fiat})
	case config.ProviderCoinGecko:
		if path == "ping" {
			writeJSON(w, map[string]string{"gecko_says": "(V3) To the Moon!"})
			return
		}
		prices := make(map[string]map[string]float64, len(crypto))
		for _, id := range strings.Split(r.URL.Query().Get("ids"), ",") {
			if price, ok := crypto[id]; ok {
				prices[id] = map[string]float64{"usd": price}
			}
		}
		writeJSON(w, prices)
	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, value interface{}) {
	_ = json.NewEncoder(w).Encode(value)
}
