package testutils

import (
	"context"
	"net/http"
	"sync"

	"github.com/dalfonso89/rate-ingestion-service/internal/provider"
)

// StubClient is a scripted provider.Client. Queued errors are returned first,
// one per call, then Err if set, then the configured rates.
type StubClient struct {
	mu sync.Mutex

	ProviderName string
	FiatRates    map[string]float64
	CryptoPrices map[string]float64
	Err          error
	ValidateErr  error

	queue []error
	calls int
}

// NewStubClient creates a stub for the named provider
func NewStubClient(name string) *StubClient {
	return &StubClient{ProviderName: name}
}

// Unavailable returns a retryable 503 error for the stub's provider
func (s *StubClient) Unavailable() error {
	return &provider.TransportError{Provider: s.ProviderName, Endpoint: "/latest", StatusCode: http.StatusServiceUnavailable}
}

// Forbidden returns a permanent 403 error for the stub's provider
func (s *StubClient) Forbidden() error {
	return &provider.TransportError{Provider: s.ProviderName, Endpoint: "/latest", StatusCode: http.StatusForbidden}
}

// FailNext queues errors for the next calls
func (s *StubClient) FailNext(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, errs...)
}

// SetErr sets the persistent error
func (s *StubClient) SetErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Err = err
}

// Calls returns how many fetches were made
func (s *StubClient) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *StubClient) Name() string {
	return s.ProviderName
}

func (s *StubClient) FetchFiatRates(ctx context.Context, base string, symbols []string) (map[string]float64, error) {
	if err := s.next(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyRates(s.FiatRates), nil
}

func (s *StubClient) FetchCryptoPrices(ctx context.Context, ids []string, vsCurrency string) (map[string]float64, error) {
	if err := s.next(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyRates(s.CryptoPrices), nil
}

func (s *StubClient) Validate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ValidateErr
}

func (s *StubClient) next(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(s.queue) > 0 {
		err := s.queue[0]
		s.queue = s.queue[1:]
		return err
	}
	return s.Err
}

func copyRates(rates map[string]float64) map[string]float64 {
	result := make(map[string]float64, len(rates))
	for code, rate := range rates {
		result[code] = rate
	}
	return result
}
