package breaker

import (
	"errors"
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestSet(clock *fakeClock) *Set {
	return New([]string{"primary", "secondary"}, 5, 30*time.Second, WithClock(clock.Now))
}

func TestSet_OpensAfterThreshold(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	set := newTestSet(clock)

	for i := 0; i < 4; i++ {
		set.RecordResult("primary", false)
		if !set.Allow("primary") {
			t.Fatalf("Allow() = false after %d failures, want true", i+1)
		}
	}

	set.RecordResult("primary", false)
	if set.Allow("primary") {
		t.Errorf("Allow() = true after 5 failures, want false")
	}

	status := set.Status()
	if !status[0].IsOpen || status[0].Failures != 5 {
		t.Errorf("Status()[0] = %+v, want open with 5 failures", status[0])
	}
	if status[0].LastAttempt == nil || !status[0].LastAttempt.Equal(clock.now) {
		t.Errorf("Status()[0].LastAttempt = %v, want %v", status[0].LastAttempt, clock.now)
	}
	if status[1].IsOpen || status[1].Failures != 0 {
		t.Errorf("secondary breaker affected: %+v", status[1])
	}
}

func TestSet_HalfOpenAfterTimeout(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	set := newTestSet(clock)

	for i := 0; i < 5; i++ {
		set.RecordResult("primary", false)
	}

	clock.Advance(30 * time.Second)
	if set.Allow("primary") {
		t.Errorf("Allow() = true exactly at timeout, want false")
	}

	clock.Advance(time.Millisecond)
	if !set.Allow("primary") {
		t.Fatalf("Allow() = false after timeout, want true")
	}
	if state, _ := set.State("primary"); state != StateHalfOpen {
		t.Errorf("State() = %v, want %v", state, StateHalfOpen)
	}

	// A failed trial reopens immediately
	set.RecordResult("primary", false)
	if set.Allow("primary") {
		t.Errorf("Allow() = true after failed trial, want false")
	}
	if state, _ := set.State("primary"); state != StateOpen {
		t.Errorf("State() = %v, want %v", state, StateOpen)
	}
}

func TestSet_SuccessResets(t *testing.T) {
	tests := []struct {
		name     string
		failures int
	}{
		{"below threshold", 3},
		{"at threshold", 5},
		{"far above threshold", 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := &fakeClock{now: time.Now()}
			set := newTestSet(clock)

			for i := 0; i < tt.failures; i++ {
				set.RecordResult("primary", false)
			}
			set.RecordResult("primary", true)

			if !set.Allow("primary") {
				t.Errorf("Allow() = false after success, want true")
			}
			status := set.Status()[0]
			if status.IsOpen || status.Failures != 0 {
				t.Errorf("Status() = %+v, want closed with 0 failures", status)
			}
		})
	}
}

func TestSet_Reset(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	set := newTestSet(clock)

	for i := 0; i < 5; i++ {
		set.RecordResult("secondary", false)
	}
	if err := set.Reset("secondary"); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}

	status := set.Status()[1]
	if status.IsOpen || status.Failures != 0 {
		t.Errorf("Status() after Reset = %+v, want closed with 0 failures", status)
	}
	if !set.Allow("secondary") {
		t.Errorf("Allow() = false after Reset, want true")
	}

	if err := set.Reset("missing"); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("Reset(missing) error = %v, want ErrUnknownProvider", err)
	}
}

func TestSet_UnknownProvider(t *testing.T) {
	set := New([]string{"primary"}, 0, 0)

	if set.Allow("missing") {
		t.Errorf("Allow(missing) = true, want false")
	}
	set.RecordResult("missing", false)
	if len(set.Status()) != 1 {
		t.Errorf("Status() grew after recording an unknown provider")
	}
	if _, err := set.State("missing"); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("State(missing) error = %v, want ErrUnknownProvider", err)
	}
	if set.threshold != DefaultThreshold || set.timeout != DefaultTimeout {
		t.Errorf("New() defaults = %v/%v", set.threshold, set.timeout)
	}
}

func TestSet_AnyOpen(t *testing.T) {
	set := New([]string{"a", "b"}, 1, time.Minute)
	if set.AnyOpen() {
		t.Errorf("AnyOpen() = true for fresh set")
	}
	set.RecordResult("b", false)
	if !set.AnyOpen() {
		t.Errorf("AnyOpen() = false with an open breaker")
	}
}
