package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"
)

func TestRetryableStatus(t *testing.T) {
	tests := []struct {
		code     int
		expected bool
	}{
		{http.StatusRequestTimeout, true},
		{http.StatusTooManyRequests, true},
		{http.StatusBadGateway, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusGatewayTimeout, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
		{http.StatusForbidden, false},
		{http.StatusNotFound, false},
		{http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			if got := RetryableStatus(tt.code); got != tt.expected {
				t.Errorf("RetryableStatus(%d) = %v, want %v", tt.code, got, tt.expected)
			}
		})
	}
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

var _ net.Error = timeoutError{}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"network failure", &TransportError{Provider: "p", Err: errors.New("connection refused")}, true},
		{"service unavailable", &TransportError{Provider: "p", StatusCode: 503}, true},
		{"rate limited", &TransportError{Provider: "p", StatusCode: 429}, true},
		{"forbidden", &TransportError{Provider: "p", StatusCode: 403}, false},
		{"wrapped transport", fmt.Errorf("fetch: %w", &TransportError{StatusCode: 504}), true},
		{"cancelled", &TransportError{Provider: "p", Err: context.Canceled}, false},
		{"deadline", context.DeadlineExceeded, true},
		{"net timeout", timeoutError{}, true},
		{"invalid response", fmt.Errorf("%w: bad json", ErrInvalidResponse), false},
		{"unsupported", ErrUnsupported, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.expected {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestTransportError_Error(t *testing.T) {
	withStatus := &TransportError{Provider: "coingecko", Endpoint: "/simple/price", StatusCode: 503}
	if withStatus.Error() != "coingecko: /simple/price returned status 503" {
		t.Errorf("Error() = %q", withStatus.Error())
	}

	cause := errors.New("dial tcp: refused")
	withoutStatus := &TransportError{Provider: "coingecko", Endpoint: "/ping", Err: cause}
	if !errors.Is(withoutStatus, cause) {
		t.Errorf("TransportError does not unwrap to its cause")
	}
	if StatusCode(withoutStatus) != 0 || StatusCode(withStatus) != 503 {
		t.Errorf("StatusCode() mismatch")
	}
	if Endpoint(withStatus) != "/simple/price" {
		t.Errorf("Endpoint() = %q", Endpoint(withStatus))
	}
}
