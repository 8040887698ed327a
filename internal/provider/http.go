package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxBodyBytes = 4 << 20

// httpClient performs GET requests against one provider and decodes JSON bodies
type httpClient struct {
	name   string
	client *http.Client
	logger *logrus.Logger
}

func newHTTPClient(name string, timeout time.Duration, logger *logrus.Logger) *httpClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &httpClient{
		name:   name,
		logger: logger,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// getJSON fetches url and decodes the body into target.
// endpoint is the credential-free description used in errors and logs.
func (h *httpClient) getJSON(ctx context.Context, url, endpoint string, headers map[string]string, target interface{}) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	request.Header.Set("Accept", "application/json")
	for key, value := range headers {
		request.Header.Set(key, value)
	}

	start := time.Now()
	response, err := h.client.Do(request)
	if err != nil {
		// url.Error carries the full URL, which may embed credentials
		var urlErr *neturl.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return &TransportError{Provider: h.name, Endpoint: endpoint, Err: err}
	}
	defer response.Body.Close()

	h.logger.WithFields(logrus.Fields{
		"provider": h.name,
		"endpoint": endpoint,
		"status":   response.StatusCode,
		"latency":  time.Since(start),
	}).Debug("Provider responded")

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		// Drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(response.Body, maxBodyBytes))
		return &TransportError{Provider: h.name, Endpoint: endpoint, StatusCode: response.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(response.Body, maxBodyBytes))
	if err != nil {
		return &TransportError{Provider: h.name, Endpoint: endpoint, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidResponse, h.name, err)
	}
	return nil
}

// pick keeps only the requested symbols with a positive value
func pick(rates map[string]float64, symbols []string) map[string]float64 {
	result := make(map[string]float64, len(symbols))
	for _, symbol := range symbols {
		if value, ok := rates[symbol]; ok && value > 0 {
			result[symbol] = value
		}
	}
	return result
}
