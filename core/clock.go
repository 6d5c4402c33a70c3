package session

import "time"

// Clock abstracts timer scheduling so timed flag behavior is testable
// without waiting on real time.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is an armed timer; Stop reports whether it was stopped before
// firing.
type Timer interface {
	Stop() bool
}

type systemClock struct{}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
