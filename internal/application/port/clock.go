package port

import "time"

// Clock supplies the current time. Injectable so deadline comparisons
// (reopening validity) are testable.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production clock
type SystemClock struct{}

// Now returns the current wall-clock time
func (SystemClock) Now() time.Time {
	return time.Now()
}
