package clock

import "time"

// FakeClock is a manually advanced clock for tests. Invitation expiry and
// snapshot ordering key off Now, so tests advance it explicitly instead of
// sleeping.
type FakeClock struct {
	now time.Time
}

func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start.UTC()}
}

func (c *FakeClock) Now() time.Time { return c.now }

func (c *FakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}
