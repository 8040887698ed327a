package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/dalfonso89/rate-ingestion-service/internal/breaker"
	"github.com/dalfonso89/rate-ingestion-service/internal/provider"
	"github.com/dalfonso89/rate-ingestion-service/internal/store"
)

func TestTypeOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorType
	}{
		{"nil", nil, ErrorTypeUnknown},
		{"service error", newError(ErrorTypeStorage, "boom", nil), ErrorTypeStorage},
		{"wrapped service error", fmt.Errorf("wrap: %w", ErrCycleInProgress), ErrorTypeCycleInProgress},
		{"cancelled", context.Canceled, ErrorTypeContextCancelled},
		{"store not found", store.ErrNotFound, ErrorTypeNotFound},
		{"unknown provider", breaker.ErrUnknownProvider, ErrorTypeNotFound},
		{"invalid response", fmt.Errorf("%w: bad json", provider.ErrInvalidResponse), ErrorTypeInvalidResponse},
		{"forbidden", &provider.TransportError{Provider: "p", StatusCode: http.StatusForbidden}, ErrorTypeCredentials},
		{"unauthorized", &provider.TransportError{Provider: "p", StatusCode: http.StatusUnauthorized}, ErrorTypeCredentials},
		{"server error", &provider.TransportError{Provider: "p", StatusCode: http.StatusInternalServerError}, ErrorTypeProviderFailed},
		{"timeout", context.DeadlineExceeded, ErrorTypeNetworkError},
		{"plain", errors.New("plain"), ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TypeOf(tt.err); got != tt.expected {
				t.Errorf("TypeOf() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestServiceError_Error(t *testing.T) {
	cause := errors.New("connection refused")
	err := newError(ErrorTypeStorage, "failed to read rate", cause)

	if err.Error() != "failed to read rate: connection refused" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Errorf("errors.Is(cause) = false")
	}
	if ErrCycleInProgress.Error() != "refresh cycle already in progress" {
		t.Errorf("ErrCycleInProgress.Error() = %q", ErrCycleInProgress.Error())
	}
}

func TestErrorType_String(t *testing.T) {
	if ErrorTypeCredentials.String() != "credentials" || ErrorType(99).String() != "unknown" {
		t.Errorf("unexpected ErrorType strings")
	}
}
