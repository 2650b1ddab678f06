// Package scheduler provides the single-threaded cooperative task
// executor every timer and posted continuation in this module runs on
// (spec.md §5 "Scheduling model"). Ballot state, peer sessions, and the
// loopback transport never mutate shared state except from callbacks
// this package invokes, so none of them need locks.
package scheduler

import "time"

// Cancellable is returned by Scheduler.ScheduleAfter. Cancel is
// idempotent: calling it after the callback already ran, or more than
// once, is a no-op (spec.md §5 "Cancellation").
type Cancellable interface {
	Cancel()
}

// Scheduler is the task executor every component posts work to. Post
// enqueues fn to run at the next opportunity, in FIFO order relative to
// other posted work. ScheduleAfter arms a one-shot timer.
type Scheduler interface {
	Post(fn func())
	ScheduleAfter(d time.Duration, fn func()) Cancellable
}
