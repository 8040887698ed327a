package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/dalfonso89/rate-ingestion-service/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const flightKey = "refresh"

// Runner executes one refresh cycle
type Runner interface {
	RunCycle(ctx context.Context) (models.CycleResult, error)
}

// Scheduler runs refresh cycles on a fixed interval and on demand.
// Scheduled and manual runs share one in-flight cycle.
type Scheduler struct {
	runner     Runner
	interval   time.Duration
	runOnStart bool
	logger     *logrus.Logger

	flight singleflight.Group

	mu      sync.Mutex
	baseCtx context.Context
}

// New creates a scheduler for runner
func New(runner Runner, interval time.Duration, runOnStart bool, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		runner:     runner,
		interval:   interval,
		runOnStart: runOnStart,
		logger:     logger,
		baseCtx:    context.Background(),
	}
}

// Start runs cycles every interval until ctx is cancelled. Cycle errors are logged, never returned.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.WithFields(logrus.Fields{
		"interval":     s.interval.String(),
		"run_on_start": s.runOnStart,
	}).Info("Refresh scheduler started")

	if s.runOnStart {
		s.tick(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Refresh scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// TriggerNow runs a cycle immediately, or joins the one already running.
// The cycle itself is bound to the scheduler's lifetime, so a caller giving
// up early does not abort it.
func (s *Scheduler) TriggerNow(ctx context.Context) (models.CycleResult, error) {
	select {
	case result := <-s.run():
		return result.Val.(models.CycleResult), result.Err
	case <-ctx.Done():
		return models.CycleResult{}, ctx.Err()
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	select {
	case result := <-s.run():
		if result.Err == nil {
			return
		}
		cycle := result.Val.(models.CycleResult)
		s.logger.WithFields(logrus.Fields{
			"cycle_id": cycle.ID,
			"status":   cycle.Status,
			"error":    result.Err,
		}).Warn("Scheduled refresh cycle returned an error")
	case <-ctx.Done():
	}
}

func (s *Scheduler) run() <-chan singleflight.Result {
	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()

	return s.flight.DoChan(flightKey, func() (interface{}, error) {
		return s.runner.RunCycle(ctx)
	})
}
