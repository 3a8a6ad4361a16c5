package playback

import (
	"context"
	"time"
)

// Clock is the time source playback paces against.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d and cannot be interrupted.
	Sleep(d time.Duration)
	// SleepUntil blocks until t. It returns false if ctx ends first, and
	// returns immediately when t has already passed.
	SleepUntil(ctx context.Context, t time.Time) bool
}

// SystemClock returns the wall clock. time.Now carries a monotonic reading,
// so pacing is unaffected by wall-clock adjustments.
func SystemClock() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}

func (systemClock) SleepUntil(ctx context.Context, t time.Time) bool {
	d := time.Until(t)
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
