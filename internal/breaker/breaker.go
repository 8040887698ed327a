package breaker

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dalfonso89/rate-ingestion-service/internal/models"
)

// ErrUnknownProvider is returned for a provider that was not registered at construction
var ErrUnknownProvider = errors.New("unknown provider")

// Default breaker settings
const (
	DefaultThreshold = 5
	DefaultTimeout   = 30 * time.Second
)

// State is the derived state of a breaker
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

type entry struct {
	name        string
	open        bool
	failures    int
	lastAttempt time.Time
}

// Set holds one breaker per provider. The provider list is fixed at construction.
// Half-open is not stored: an open breaker whose timeout has elapsed lets calls through,
// and a failed trial reopens it because the failure count is already at the threshold.
type Set struct {
	mu        sync.Mutex
	entries   []*entry
	index     map[string]*entry
	threshold int
	timeout   time.Duration
	now       func() time.Time
}

// Option configures a Set
type Option func(*Set)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Set) {
		s.now = now
	}
}

// New creates closed breakers for the given providers
func New(providers []string, threshold int, timeout time.Duration, opts ...Option) *Set {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	s := &Set{
		entries:   make([]*entry, 0, len(providers)),
		index:     make(map[string]*entry, len(providers)),
		threshold: threshold,
		timeout:   timeout,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, name := range providers {
		if _, exists := s.index[name]; exists {
			continue
		}
		e := &entry{name: name}
		s.entries = append(s.entries, e)
		s.index[name] = e
	}
	return s
}

// Allow reports whether a call to provider may be attempted.
// Unknown providers are never allowed.
func (s *Set) Allow(provider string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.index[provider]
	if !ok {
		return false
	}
	return s.state(e) != StateOpen
}

// RecordResult updates the breaker after an attempt. Unknown providers are ignored.
func (s *Set) RecordResult(provider string, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.index[provider]
	if !ok {
		return
	}
	if success {
		e.failures = 0
		e.open = false
		return
	}
	e.failures++
	e.lastAttempt = s.now()
	if e.failures >= s.threshold {
		e.open = true
	}
}

// Reset closes the breaker and clears its failure count
func (s *Set) Reset(provider string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.index[provider]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	e.failures = 0
	e.open = false
	return nil
}

// State returns the derived state of one breaker
func (s *Set) State(provider string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.index[provider]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	return s.state(e), nil
}

// Status returns a snapshot of every breaker in registration order
func (s *Set) Status() []models.CircuitBreakerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]models.CircuitBreakerStatus, 0, len(s.entries))
	for _, e := range s.entries {
		status := models.CircuitBreakerStatus{
			Provider: e.name,
			IsOpen:   e.open,
			Failures: e.failures,
		}
		if !e.lastAttempt.IsZero() {
			lastAttempt := e.lastAttempt
			status.LastAttempt = &lastAttempt
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// AnyOpen reports whether at least one breaker is open
func (s *Set) AnyOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.open {
			return true
		}
	}
	return false
}

func (s *Set) state(e *entry) State {
	if !e.open {
		return StateClosed
	}
	if s.now().Sub(e.lastAttempt) > s.timeout {
		return StateHalfOpen
	}
	return StateOpen
}
