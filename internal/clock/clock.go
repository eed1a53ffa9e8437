// Package clock abstracts wall-clock time so time-sensitive services can be
// exercised deterministically in tests.
package clock

import "time"

// Clock supplies the current local civil time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// System returns the real wall clock.
func System() Clock { return systemClock{} }

// Fixed returns a clock pinned at the given instant.
func Fixed(at time.Time) Clock { return fixedClock{at} }

type fixedClock struct{ at time.Time }

func (f fixedClock) Now() time.Time { return f.at }
