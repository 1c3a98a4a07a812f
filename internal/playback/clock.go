package playback

import "time"

// Clock supplies high-resolution timestamps in milliseconds. Only
// differences between readings are meaningful.
type Clock interface {
	Now() float64
}

// Timer is a pending single-shot callback.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type monotonicClock struct {
	start time.Time
}

// SystemClock returns a Clock reading the monotonic clock relative to its
// creation.
func SystemClock() Clock {
	return monotonicClock{start: time.Now()}
}

func (c monotonicClock) Now() float64 {
	return float64(time.Since(c.start)) / float64(time.Millisecond)
}

type timerScheduler struct{}

// SystemScheduler schedules callbacks with time.AfterFunc.
func SystemScheduler() Scheduler {
	return timerScheduler{}
}

func (timerScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
