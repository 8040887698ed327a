package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// ErrInvalidResponse marks a payload that could not be decoded into rates
	ErrInvalidResponse = errors.New("invalid provider response")
	// ErrUnsupported is returned when a provider does not serve a category
	ErrUnsupported = errors.New("operation not supported by provider")
)

// Client fetches rates from one external data source
type Client interface {
	Name() string
	// FetchFiatRates returns units of each symbol per one unit of base
	FetchFiatRates(ctx context.Context, base string, symbols []string) (map[string]float64, error)
	// FetchCryptoPrices returns the price of one unit of each asset id in vsCurrency
	FetchCryptoPrices(ctx context.Context, ids []string, vsCurrency string) (map[string]float64, error)
	// Validate performs a lightweight reachability/credential check
	Validate(ctx context.Context) error
}

// TransportError is a failed exchange with a provider.
// StatusCode is zero when no HTTP response was received.
type TransportError struct {
	Provider   string
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s returned status %d", e.Provider, e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("%s: request to %s failed: %v", e.Provider, e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Temporary reports whether the failure is worth retrying
func (e *TransportError) Temporary() bool {
	if e.StatusCode == 0 {
		// No response at all: network failure or timeout
		return !errors.Is(e.Err, context.Canceled)
	}
	return RetryableStatus(e.StatusCode)
}

// RetryableStatus reports whether an HTTP status is transient
func RetryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// IsRetryable classifies any error returned by a Client
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return transportErr.Temporary()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}

// StatusCode extracts the HTTP status carried by err, or zero
func StatusCode(err error) int {
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return transportErr.StatusCode
	}
	return 0
}

// Endpoint extracts the endpoint carried by err, or an empty string
func Endpoint(err error) string {
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return transportErr.Endpoint
	}
	return ""
}
