package ws

import "time"

// Timer is a cancellable pending callback. Stop reports whether the callback
// was prevented from running; stopping an already-fired or already-stopped
// timer is a no-op.
type Timer interface {
	Stop() bool
}

// Clock abstracts time so debounce and ring-timeout behavior is testable.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

type realClock struct{}

// NewClock returns a Clock backed by the time package.
func NewClock() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}
