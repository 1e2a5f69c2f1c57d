// Package clock abstracts the system clock so time-sensitive logic (poll
// expiry windows) can be tested against a fixed time.
package clock

import "time"

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// Real implements Clock using the system clock.
type Real struct{}

// New creates a Real clock.
func New() *Real {
	return &Real{}
}

// Now returns the current system time.
func (c *Real) Now() time.Time {
	return time.Now()
}

// Fake is a manually-advanced Clock for tests.
type Fake struct {
	Current time.Time
}

var _ Clock = (*Fake)(nil)

// NewFake creates a Fake clock set to the given time.
func NewFake(t time.Time) *Fake {
	return &Fake{Current: t}
}

// Now returns the fake current time.
func (c *Fake) Now() time.Time {
	return c.Current
}

// Advance moves the fake clock forward.
func (c *Fake) Advance(d time.Duration) {
	c.Current = c.Current.Add(d)
}
