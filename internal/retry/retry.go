package retry

import (
	"context"
	"time"

	"github.com/dalfonso89/rate-ingestion-service/internal/provider"
)

// Default policy values
const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
	DefaultMaxDelay   = 30 * time.Second
)

// Policy retries transient failures with capped exponential backoff
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration

	// Retryable classifies errors; provider.IsRetryable when nil
	Retryable func(error) bool
	// OnRetry is called before each wait with the failed attempt number (starting at 0)
	OnRetry func(attempt int, err error, delay time.Duration)
}

// NewPolicy creates a policy, substituting defaults for non-positive delays
func NewPolicy(maxRetries int, baseDelay, maxDelay time.Duration) Policy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}
	return Policy{MaxRetries: maxRetries, BaseDelay: baseDelay, MaxDelay: maxDelay}
}

// Delay returns the wait after the given failed attempt: min(base * 2^attempt, max)
func (p Policy) Delay(attempt int) time.Duration {
	delay := p.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= p.MaxDelay || delay <= 0 {
			return p.MaxDelay
		}
	}
	if delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

func (p Policy) retryable(err error) bool {
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return provider.IsRetryable(err)
}

// Execute runs op until it succeeds, fails permanently, or retries are exhausted.
// The last error is returned unchanged. Waits end early when ctx is done.
func Execute[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		if attempt >= p.MaxRetries || !p.retryable(err) {
			return zero, err
		}

		delay := p.Delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, delay)
		}
		if waitErr := wait(ctx, delay); waitErr != nil {
			return zero, err
		}
	}
}

func wait(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
