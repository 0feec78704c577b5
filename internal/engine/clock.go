package engine

import "time"

// Clock abstracts wall-clock reads and timer scheduling so the cooldown
// cycle is testable without sleeping.
//
// Implemented by SystemClock (production) and testutil.ManualClock (tests).
type Clock interface {
	// Now returns the current instant. Decision timestamps are taken here,
	// at decision time - never at sync time.
	Now() time.Time

	// AfterFunc schedules f to run after d. The returned Timer can cancel
	// the callback if it has not fired yet.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable scheduled callback.
type Timer interface {
	// Stop prevents the callback from firing. Returns false if it already
	// fired or was already stopped.
	Stop() bool
}

// SystemClock is the production Clock backed by package time.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// AfterFunc implements Clock.
func (SystemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
