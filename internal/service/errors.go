package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dalfonso89/rate-ingestion-service/internal/breaker"
	"github.com/dalfonso89/rate-ingestion-service/internal/provider"
	"github.com/dalfonso89/rate-ingestion-service/internal/store"
)

// ErrorType classifies service errors for callers and logs
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeNotFound
	ErrorTypeCycleInProgress
	ErrorTypeNoProviders
	ErrorTypeContextCancelled
	ErrorTypeProviderFailed
	ErrorTypeNetworkError
	ErrorTypeInvalidResponse
	ErrorTypeCredentials
	ErrorTypeStorage
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeNotFound:
		return "not_found"
	case ErrorTypeCycleInProgress:
		return "cycle_in_progress"
	case ErrorTypeNoProviders:
		return "no_providers"
	case ErrorTypeContextCancelled:
		return "context_cancelled"
	case ErrorTypeProviderFailed:
		return "provider_failed"
	case ErrorTypeNetworkError:
		return "network_error"
	case ErrorTypeInvalidResponse:
		return "invalid_response"
	case ErrorTypeCredentials:
		return "credentials"
	case ErrorTypeStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// ServiceError represents a service-specific error with type information
type ServiceError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Cause
}

func newError(errorType ErrorType, message string, cause error) *ServiceError {
	return &ServiceError{Type: errorType, Message: message, Cause: cause}
}

// ErrCycleInProgress is returned when a refresh cycle is requested while another runs
var ErrCycleInProgress = newError(ErrorTypeCycleInProgress, "refresh cycle already in progress", nil)

// IsNotFound reports whether err is a not-found service error
func IsNotFound(err error) bool {
	return TypeOf(err) == ErrorTypeNotFound
}

// TypeOf returns the ErrorType of err, classifying foreign errors
func TypeOf(err error) ErrorType {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Type
	}
	return classifyError(err)
}

// classifyError maps package errors onto service error types
func classifyError(err error) ErrorType {
	switch {
	case err == nil:
		return ErrorTypeUnknown
	case errors.Is(err, context.Canceled):
		return ErrorTypeContextCancelled
	case errors.Is(err, store.ErrNotFound), errors.Is(err, breaker.ErrUnknownProvider):
		return ErrorTypeNotFound
	case errors.Is(err, provider.ErrInvalidResponse):
		return ErrorTypeInvalidResponse
	}

	switch status := provider.StatusCode(err); {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrorTypeCredentials
	case status != 0:
		return ErrorTypeProviderFailed
	}

	if provider.IsRetryable(err) {
		return ErrorTypeNetworkError
	}
	return ErrorTypeUnknown
}
