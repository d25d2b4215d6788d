package clock

import "time"

// Clock allows injecting time into services and workers.
type Clock interface {
	Now() time.Time
}

// SystemClock is backed by time.Now in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// FixedClock always returns the same instant. Tests move it with Advance.
type FixedClock struct {
	now time.Time
}

func NewFixed(t time.Time) *FixedClock {
	return &FixedClock{now: t.UTC()}
}

func (f *FixedClock) Now() time.Time {
	return f.now
}

// Advance moves the clock forward by d.
func (f *FixedClock) Advance(d time.Duration) {
	f.now = f.now.Add(d)
}
