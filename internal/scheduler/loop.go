package scheduler

import (
	"sync"
	"sync/atomic"
	"time"
)

// Loop is the concrete Scheduler: a single goroutine draining a task
// queue in FIFO order (spec.md §5 "Suspension points... no operation
// blocks the executor; long work is split into posted continuations").
// Timer firings are themselves posted to the same queue, so a timer
// callback never races a directly-posted task.
type Loop struct {
	tasks chan func()
	done  chan struct{}
	wg    sync.WaitGroup
}

// NewLoop starts a Loop with the given task queue depth.
func NewLoop(queueDepth int) *Loop {
	l := &Loop{
		tasks: make(chan func(), queueDepth),
		done:  make(chan struct{}),
	}
	l.wg.Add(1)
	go l.run()
	return l
}

func (l *Loop) run() {
	defer l.wg.Done()
	for {
		select {
		case fn := <-l.tasks:
			fn()
		case <-l.done:
			return
		}
	}
}

// Post enqueues fn to run on the loop goroutine.
func (l *Loop) Post(fn func()) {
	select {
	case l.tasks <- fn:
	case <-l.done:
	}
}

// ScheduleAfter arms a timer that posts fn to the loop when it fires.
func (l *Loop) ScheduleAfter(d time.Duration, fn func()) Cancellable {
	c := &cancellableTimer{}
	c.timer = time.AfterFunc(d, func() {
		if atomic.LoadInt32(&c.cancelled) != 0 {
			return
		}
		l.Post(func() {
			if atomic.LoadInt32(&c.cancelled) == 0 {
				fn()
			}
		})
	})
	return c
}

// Stop halts the loop goroutine; pending tasks are discarded.
func (l *Loop) Stop() {
	close(l.done)
	l.wg.Wait()
}

type cancellableTimer struct {
	timer     *time.Timer
	cancelled int32
}

// Cancel stops the underlying timer and suppresses the callback if it
// already fired but has not yet run on the loop (spec.md §5
// "Cancellation" is idempotent).
func (c *cancellableTimer) Cancel() {
	atomic.StoreInt32(&c.cancelled, 1)
	c.timer.Stop()
}
