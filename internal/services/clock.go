// Package services holds the built-in infrastructure services registered
// during bootstrap: clock, event bus, settings, and snapshot persistence,
// plus the manager adapters that expose them to the bring-up pipeline.
package services

import "time"

// Clock abstracts wall time so simulation code can be tested against a
// controlled clock.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

type systemClock struct{}

func (systemClock) Now() time.Time                  { return time.Now() }
func (systemClock) Since(t time.Time) time.Duration { return time.Since(t) }

// NewClock returns the wall clock.
func NewClock() Clock { return systemClock{} }

// FixedClock always reports the same instant. Intended for tests.
type FixedClock struct{ Instant time.Time }

func (f FixedClock) Now() time.Time                  { return f.Instant }
func (f FixedClock) Since(t time.Time) time.Duration { return f.Instant.Sub(t) }
