package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dalfonso89/rate-ingestion-service/internal/models"
	"github.com/dalfonso89/rate-ingestion-service/internal/testutils"
)

type countingRunner struct {
	calls   atomic.Int32
	release chan struct{}
	err     error
}

func (r *countingRunner) RunCycle(ctx context.Context) (models.CycleResult, error) {
	n := r.calls.Add(1)
	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
			return models.CycleResult{Status: models.CycleFailed}, ctx.Err()
		}
	}
	return models.CycleResult{ID: string(rune('a' + n - 1)), Status: models.CycleSuccess}, r.err
}

func waitFor(t *testing.T, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestScheduler_RunsOnInterval(t *testing.T) {
	runner := &countingRunner{}
	scheduler := New(runner, 10*time.Millisecond, false, testutils.MockLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		scheduler.Start(ctx)
		close(done)
	}()

	waitFor(t, func() bool { return runner.calls.Load() >= 2 })
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start() did not return after cancellation")
	}
}

func TestScheduler_RunOnStart(t *testing.T) {
	tests := []struct {
		name       string
		runOnStart bool
		expected   int32
	}{
		{"runs immediately", true, 1},
		{"waits for first tick", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &countingRunner{}
			scheduler := New(runner, time.Hour, tt.runOnStart, testutils.MockLogger())

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			go func() {
				scheduler.Start(ctx)
				close(done)
			}()

			if tt.runOnStart {
				waitFor(t, func() bool { return runner.calls.Load() == 1 })
			} else {
				time.Sleep(20 * time.Millisecond)
			}
			cancel()
			<-done

			if got := runner.calls.Load(); got != tt.expected {
				t.Errorf("RunCycle calls = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestScheduler_ErrorsDoNotStopLoop(t *testing.T) {
	runner := &countingRunner{err: errors.New("all providers failed")}
	scheduler := New(runner, 5*time.Millisecond, true, testutils.MockLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go scheduler.Start(ctx)

	waitFor(t, func() bool { return runner.calls.Load() >= 3 })
}

func TestScheduler_TriggerNow(t *testing.T) {
	runner := &countingRunner{}
	scheduler := New(runner, time.Hour, false, testutils.MockLogger())

	result, err := scheduler.TriggerNow(context.Background())
	if err != nil {
		t.Fatalf("TriggerNow() error = %v", err)
	}
	if result.Status != models.CycleSuccess || runner.calls.Load() != 1 {
		t.Errorf("TriggerNow() = %+v after %d calls", result, runner.calls.Load())
	}
}

func TestScheduler_TriggerNowCoalesces(t *testing.T) {
	runner := &countingRunner{release: make(chan struct{})}
	scheduler := New(runner, time.Hour, false, testutils.MockLogger())

	var wg sync.WaitGroup
	results := make([]models.CycleResult, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = scheduler.TriggerNow(context.Background())
		}(i)
	}

	waitFor(t, func() bool { return runner.calls.Load() == 1 })
	time.Sleep(20 * time.Millisecond)
	close(runner.release)
	wg.Wait()

	if runner.calls.Load() != 1 {
		t.Errorf("RunCycle calls = %d, want 1", runner.calls.Load())
	}
	for i, result := range results {
		if result.ID != results[0].ID {
			t.Errorf("result %d has cycle %q, want shared cycle %q", i, result.ID, results[0].ID)
		}
	}
}

func TestScheduler_TriggerNowCallerGivesUp(t *testing.T) {
	runner := &countingRunner{release: make(chan struct{})}
	scheduler := New(runner, time.Hour, false, testutils.MockLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := scheduler.TriggerNow(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("TriggerNow() error = %v, want deadline exceeded", err)
	}

	// The abandoned cycle keeps running and is joined by the next trigger
	close(runner.release)
	if _, err := scheduler.TriggerNow(context.Background()); err != nil {
		t.Errorf("TriggerNow() error = %v", err)
	}
	if runner.calls.Load() > 2 {
		t.Errorf("RunCycle calls = %d, want at most 2", runner.calls.Load())
	}
}
