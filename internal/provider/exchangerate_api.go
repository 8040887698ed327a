package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// ExchangeRateAPIClient talks to exchangerate-api.com (v6). The key is part of the path.
type ExchangeRateAPIClient struct {
	name    string
	baseURL string
	apiKey  string
	http    *httpClient
}

type exchangeRateAPIResponse struct {
	Result          string             `json:"result"`
	ErrorType       string             `json:"error-type"`
	BaseCode        string             `json:"base_code"`
	ConversionRates map[string]float64 `json:"conversion_rates"`
}

// NewExchangeRateAPIClient creates a client for exchangerate-api.com
func NewExchangeRateAPIClient(name, baseURL, apiKey string, timeout time.Duration, logger *logrus.Logger) *ExchangeRateAPIClient {
	return &ExchangeRateAPIClient{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    newHTTPClient(name, timeout, logger),
	}
}

// Name returns the provider name
func (c *ExchangeRateAPIClient) Name() string {
	return c.name
}

// FetchFiatRates fetches the latest rates for base and keeps the requested symbols
func (c *ExchangeRateAPIClient) FetchFiatRates(ctx context.Context, base string, symbols []string) (map[string]float64, error) {
	endpoint := "/latest/" + base
	requestURL := fmt.Sprintf("%s/%s/latest/%s", c.baseURL, url.PathEscape(c.apiKey), url.PathEscape(base))

	var response exchangeRateAPIResponse
	if err := c.http.getJSON(ctx, requestURL, endpoint, nil, &response); err != nil {
		return nil, err
	}
	if err := c.checkResult(response, endpoint); err != nil {
		return nil, err
	}
	if len(response.ConversionRates) == 0 {
		return nil, fmt.Errorf("%w: %s: empty conversion_rates", ErrInvalidResponse, c.name)
	}

	rates := pick(response.ConversionRates, symbols)
	if containsSymbol(symbols, base) {
		rates[base] = 1
	}
	return rates, nil
}

// FetchCryptoPrices is not served by this provider
func (c *ExchangeRateAPIClient) FetchCryptoPrices(ctx context.Context, ids []string, vsCurrency string) (map[string]float64, error) {
	return nil, fmt.Errorf("%s: crypto prices: %w", c.name, ErrUnsupported)
}

// Validate queries the quota endpoint, which checks the key without fetching rates
func (c *ExchangeRateAPIClient) Validate(ctx context.Context) error {
	endpoint := "/quota"
	requestURL := fmt.Sprintf("%s/%s/quota", c.baseURL, url.PathEscape(c.apiKey))

	var response exchangeRateAPIResponse
	if err := c.http.getJSON(ctx, requestURL, endpoint, nil, &response); err != nil {
		return err
	}
	return c.checkResult(response, endpoint)
}

// checkResult maps in-body error types onto the HTTP statuses they stand for
func (c *ExchangeRateAPIClient) checkResult(response exchangeRateAPIResponse, endpoint string) error {
	if response.Result == "success" {
		return nil
	}
	switch response.ErrorType {
	case "invalid-key", "inactive-account":
		return &TransportError{Provider: c.name, Endpoint: endpoint, StatusCode: http.StatusForbidden}
	case "quota-reached":
		return &TransportError{Provider: c.name, Endpoint: endpoint, StatusCode: http.StatusTooManyRequests}
	default:
		return fmt.Errorf("%w: %s: result=%q error-type=%q", ErrInvalidResponse, c.name, response.Result, response.ErrorType)
	}
}

func containsSymbol(symbols []string, symbol string) bool {
	for _, s := range symbols {
		if s == symbol {
			return true
		}
	}
	return false
}
