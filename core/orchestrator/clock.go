package orchestrator

import "time"

// Clock schedules the polling loop's ticks. The production clock is
// time.After; tests substitute a fake to drive the loop deterministically.
type Clock interface {
	After(d time.Duration) <-chan time.Time
	Now() time.Time
}

type systemClock struct{}

func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
func (systemClock) Now() time.Time                         { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }
