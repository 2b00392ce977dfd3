package offer

import "time"

// Timer is a pending callback. Stop may be called any number of times.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d. Tests swap in a manual clock.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// RealScheduler is backed by time.AfterFunc.
func RealScheduler() Scheduler { return realScheduler{} }

func stopTimer(t Timer) {
	if t != nil {
		t.Stop()
	}
}
