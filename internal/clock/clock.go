// Package clock abstracts wall time and blocking waits so timed game flows
// can be driven deterministically in tests.
package clock

import (
	"context"
	"sync"
	"time"

	k8sclock "k8s.io/utils/clock"
	clocktesting "k8s.io/utils/clock/testing"
)

// Clock reports the current time and performs blocking waits.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// System is the wall-clock implementation.
type System struct{}

var wall k8sclock.Clock = k8sclock.RealClock{}

// Now returns the wall time.
func (System) Now() time.Time {
	return wall.Now()
}

// Sleep blocks for d or until ctx is canceled.
func (System) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := wall.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C():
		return nil
	}
}

// Fake is a manual clock. Sleep steps the clock instantly and records the
// requested duration.
type Fake struct {
	*clocktesting.FakeClock

	mu     sync.Mutex
	sleeps []time.Duration
}

// NewFake returns a fake clock starting at start.
func NewFake(start time.Time) *Fake {
	return &Fake{FakeClock: clocktesting.NewFakeClock(start)}
}

// Advance moves the fake time forward.
func (f *Fake) Advance(d time.Duration) {
	f.Step(d)
}

// Sleep records d and steps the fake time by it.
func (f *Fake) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	f.sleeps = append(f.sleeps, d)
	f.mu.Unlock()
	if d > 0 {
		f.Step(d)
	}
	return nil
}

// Slept returns the total of all recorded sleeps.
func (f *Fake) Slept() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total time.Duration
	for _, d := range f.sleeps {
		total += d
	}
	return total
}

// Sleeps returns a copy of every recorded sleep.
func (f *Fake) Sleeps() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Duration, len(f.sleeps))
	copy(out, f.sleeps)
	return out
}
