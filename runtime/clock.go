package runtime

import "time"

// SystemClock is the production contract.Clock backed by the real time
// package.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

func (SystemClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}
