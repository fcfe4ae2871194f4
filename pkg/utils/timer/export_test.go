package timer

import "time"

// NewWithClock exposes the clock injection point to tests.
func NewWithClock(now func() time.Time) Timer {
	return newWithClock(now)
}
