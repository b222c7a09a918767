package executor

import (
	"context"
	"sync"
)

// Reactor is the caller's execution context. Callbacks posted to it run on
// the caller's side and never touch the driver.
type Reactor interface {
	// Post schedules task; it may be called from any goroutine.
	Post(task func())

	// Hold keeps the reactor alive until the returned release is called.
	// Release is idempotent.
	Hold() (release func())
}

// Loop is a minimal event loop. Tasks run on whichever goroutine calls Run
// or Poll, in the order they were posted.
type Loop struct {
	mu    sync.Mutex
	queue []func()
	refs  int
	wake  chan struct{}
}

func NewLoop() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

func (l *Loop) Post(task func()) {
	l.mu.Lock()
	l.queue = append(l.queue, task)
	l.mu.Unlock()
	l.signal()
}

func (l *Loop) Hold() func() {
	l.mu.Lock()
	l.refs++
	l.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			l.refs--
			l.mu.Unlock()
			l.signal()
		})
	}
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Poll runs the tasks queued so far without waiting and returns how many ran.
func (l *Loop) Poll() int {
	l.mu.Lock()
	tasks := l.queue
	l.queue = nil
	l.mu.Unlock()
	for _, task := range tasks {
		task()
	}
	return len(tasks)
}

// Run dispatches tasks until nothing holds the loop and the queue is empty,
// or until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	for {
		l.Poll()
		l.mu.Lock()
		idle := l.refs == 0 && len(l.queue) == 0
		l.mu.Unlock()
		if idle {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}
