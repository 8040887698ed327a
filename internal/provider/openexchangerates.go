package provider

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// OpenExchangeRatesClient talks to openexchangerates.org
type OpenExchangeRatesClient struct {
	name    string
	baseURL string
	appID   string
	http    *httpClient
}

type openExchangeRatesResponse struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}

type openExchangeRatesUsage struct {
	Status int `json:"status"`
}

// NewOpenExchangeRatesClient creates a client for openexchangerates.org
func NewOpenExchangeRatesClient(name, baseURL, appID string, timeout time.Duration, logger *logrus.Logger) *OpenExchangeRatesClient {
	return &OpenExchangeRatesClient{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		appID:   appID,
		http:    newHTTPClient(name, timeout, logger),
	}
}

// Name returns the provider name
func (c *OpenExchangeRatesClient) Name() string {
	return c.name
}

// FetchFiatRates fetches the latest rates restricted to symbols
func (c *OpenExchangeRatesClient) FetchFiatRates(ctx context.Context, base string, symbols []string) (map[string]float64, error) {
	query := url.Values{}
	query.Set("app_id", c.appID)
	query.Set("base", base)
	if len(symbols) > 0 {
		query.Set("symbols", strings.Join(symbols, ","))
	}
	requestURL := c.baseURL + "/latest.json?" + query.Encode()

	var response openExchangeRatesResponse
	if err := c.http.getJSON(ctx, requestURL, "/latest.json", nil, &response); err != nil {
		return nil, err
	}
	if response.Rates == nil {
		return nil, fmt.Errorf("%w: %s: missing rates", ErrInvalidResponse, c.name)
	}

	rates := pick(response.Rates, symbols)
	if containsSymbol(symbols, base) {
		rates[base] = 1
	}
	return rates, nil
}

// FetchCryptoPrices is not served by this provider
func (c *OpenExchangeRatesClient) FetchCryptoPrices(ctx context.Context, ids []string, vsCurrency string) (map[string]float64, error) {
	return nil, fmt.Errorf("%s: crypto prices: %w", c.name, ErrUnsupported)
}

// Validate checks the app id against the usage endpoint
func (c *OpenExchangeRatesClient) Validate(ctx context.Context) error {
	requestURL := c.baseURL + "/usage.json?app_id=" + url.QueryEscape(c.appID)

	var response openExchangeRatesUsage
	if err := c.http.getJSON(ctx, requestURL, "/usage.json", nil, &response); err != nil {
		return err
	}
	if response.Status != 0 && response.Status != 200 {
		return &TransportError{Provider: c.name, Endpoint: "/usage.json", StatusCode: response.Status}
	}
	return nil
}
