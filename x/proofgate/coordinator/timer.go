package coordinator

import "time"

// Timer is returned by TimerFactory.AfterFunc; Stop cancels a pending fire.
type Timer interface {
	Stop() bool
}

// TimerFactory creates a Timer that executes a function after a
// duration, adapted from the instance supervisor's timer abstraction
// so alarm scheduling is deterministically testable.
type TimerFactory interface {
	AfterFunc(duration time.Duration, fn func()) Timer
}

// SystemTimerFactory implements TimerFactory using the standard library.
type SystemTimerFactory struct{}

func (SystemTimerFactory) AfterFunc(duration time.Duration, fn func()) Timer {
	return &systemTimer{timer: time.AfterFunc(duration, fn)}
}

type systemTimer struct {
	timer *time.Timer
}

func (t *systemTimer) Stop() bool {
	return t.timer.Stop()
}
