package chat

import "time"

// Clock abstracts timer creation so the engine's scheduling is
// deterministic under test.
type Clock interface {
	Now() time.Time

	// AfterFunc runs fn on its own goroutine after d elapses, unless
	// the returned timer is stopped first.
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a cancellable pending callback.
type Timer interface {
	// Stop reports whether it prevented the callback from running.
	Stop() bool
}

type realClock struct{}

// NewClock returns a Clock backed by the system timer.
func NewClock() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}
