package graph

import (
	"sync/atomic"
	"time"
)

// Timer is the handle returned by a Scheduler.
type Timer interface {
	Stop() bool
}

// Scheduler runs fn once after d.
type Scheduler func(d time.Duration, fn func()) Timer

// AfterFunc schedules on the runtime timer.
func AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// Task is a cancelable fire-once callback. A task canceled before its timer
// fires never runs fn; callers that race a firing timer must still check
// whether the work is stale.
type Task struct {
	timer     Timer
	cancelled atomic.Bool
	fired     atomic.Bool
}

func newTask(sched Scheduler, d time.Duration, fn func()) *Task {
	t := &Task{}
	t.timer = sched(d, func() {
		if t.cancelled.Load() {
			return
		}
		if t.fired.CompareAndSwap(false, true) {
			fn()
		}
	})
	return t
}

// Cancel stops the task. Safe to call more than once.
func (t *Task) Cancel() {
	t.cancelled.Store(true)
	if t.timer != nil {
		t.timer.Stop()
	}
}

// Cancelled reports whether Cancel was called.
func (t *Task) Cancelled() bool {
	return t.cancelled.Load()
}
