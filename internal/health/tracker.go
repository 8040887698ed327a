package health

import (
	"sync"
	"time"

	"github.com/dalfonso89/rate-ingestion-service/internal/models"
)

// DefaultMaxConsecutiveFailures is the failure streak at which a provider turns unhealthy
const DefaultMaxConsecutiveFailures = 3

type record struct {
	provider            string
	configured          bool
	lastCheck           time.Time
	lastSuccess         time.Time
	errorCount          int
	consecutiveFailures int
}

// Tracker keeps per-provider bookkeeping for health reporting.
// It never gates calls.
type Tracker struct {
	mu          sync.RWMutex
	records     []*record
	index       map[string]*record
	maxFailures int
	now         func() time.Time
}

// NewTracker creates a tracker for a fixed provider list
func NewTracker(providers []string, maxConsecutiveFailures int, now func() time.Time) *Tracker {
	if maxConsecutiveFailures <= 0 {
		maxConsecutiveFailures = DefaultMaxConsecutiveFailures
	}
	if now == nil {
		now = time.Now
	}

	t := &Tracker{
		records:     make([]*record, 0, len(providers)),
		index:       make(map[string]*record, len(providers)),
		maxFailures: maxConsecutiveFailures,
		now:         now,
	}
	for _, name := range providers {
		if _, exists := t.index[name]; exists {
			continue
		}
		r := &record{provider: name, configured: true}
		t.records = append(t.records, r)
		t.index[name] = r
	}
	return t
}

// RecordAttempt records the outcome of one attempt against provider
func (t *Tracker) RecordAttempt(provider string, success bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.index[provider]
	if !ok {
		return
	}
	now := t.now()
	r.lastCheck = now
	if success {
		r.lastSuccess = now
		r.errorCount = 0
		r.consecutiveFailures = 0
		return
	}
	r.errorCount++
	r.consecutiveFailures++
}

// MarkUnconfigured flags a provider as permanently unhealthy until restart
func (t *Tracker) MarkUnconfigured(provider string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if r, ok := t.index[provider]; ok {
		r.configured = false
	}
}

// Status returns a snapshot of every provider in registration order
func (t *Tracker) Status() []models.ProviderHealth {
	t.mu.RLock()
	defer t.mu.RUnlock()

	statuses := make([]models.ProviderHealth, 0, len(t.records))
	for _, r := range t.records {
		statuses = append(statuses, models.ProviderHealth{
			Provider:            r.provider,
			IsHealthy:           t.healthy(r),
			LastCheck:           timePtr(r.lastCheck),
			LastSuccess:         timePtr(r.lastSuccess),
			ErrorCount:          r.errorCount,
			ConsecutiveFailures: r.consecutiveFailures,
			Configured:          r.configured,
		})
	}
	return statuses
}

// AnyUnhealthy reports whether at least one provider is unhealthy
func (t *Tracker) AnyUnhealthy() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, r := range t.records {
		if !t.healthy(r) {
			return true
		}
	}
	return false
}

func (t *Tracker) healthy(r *record) bool {
	return r.configured && r.consecutiveFailures < t.maxFailures
}

func timePtr(ts time.Time) *time.Time {
	if ts.IsZero() {
		return nil
	}
	return &ts
}
