package provider

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// CoinGeckoClient talks to the CoinGecko simple price API
type CoinGeckoClient struct {
	name    string
	baseURL string
	apiKey  string
	http    *httpClient
}

// NewCoinGeckoClient creates a CoinGecko client. The API key is optional.
func NewCoinGeckoClient(name, baseURL, apiKey string, timeout time.Duration, logger *logrus.Logger) *CoinGeckoClient {
	return &CoinGeckoClient{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    newHTTPClient(name, timeout, logger),
	}
}

// Name returns the provider name
func (c *CoinGeckoClient) Name() string {
	return c.name
}

// FetchFiatRates is not served by this provider
func (c *CoinGeckoClient) FetchFiatRates(ctx context.Context, base string, symbols []string) (map[string]float64, error) {
	return nil, fmt.Errorf("%s: fiat rates: %w", c.name, ErrUnsupported)
}

// FetchCryptoPrices returns prices keyed by asset id
func (c *CoinGeckoClient) FetchCryptoPrices(ctx context.Context, ids []string, vsCurrency string) (map[string]float64, error) {
	vs := strings.ToLower(vsCurrency)
	query := url.Values{}
	query.Set("ids", strings.Join(ids, ","))
	query.Set("vs_currencies", vs)
	requestURL := c.baseURL + "/simple/price?" + query.Encode()

	var response map[string]map[string]float64
	if err := c.http.getJSON(ctx, requestURL, "/simple/price", c.headers(), &response); err != nil {
		return nil, err
	}

	prices := make(map[string]float64, len(ids))
	for _, id := range ids {
		quote, ok := response[id]
		if !ok {
			continue
		}
		if price, ok := quote[vs]; ok && price > 0 {
			prices[id] = price
		}
	}
	if len(prices) == 0 && len(ids) > 0 {
		return nil, fmt.Errorf("%w: %s: no prices for %v", ErrInvalidResponse, c.name, ids)
	}
	return prices, nil
}

// Validate pings the API
func (c *CoinGeckoClient) Validate(ctx context.Context) error {
	var response struct {
		GeckoSays string `json:"gecko_says"`
	}
	return c.http.getJSON(ctx, c.baseURL+"/ping", "/ping", c.headers(), &response)
}

func (c *CoinGeckoClient) headers() map[string]string {
	if c.apiKey == "" {
		return nil
	}
	return map[string]string{"x-cg-demo-api-key": c.apiKey}
}
