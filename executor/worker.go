// Package executor provides the two execution contexts asyncdb runs on: a
// serialized Worker for blocking driver calls and a Reactor, usually a Loop,
// on which results are delivered.
package executor

import (
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrClosed is returned when posting to a closed Worker.
var ErrClosed = errors.New("executor: worker closed")

// Worker runs tasks one at a time, in submission order, on its own goroutine.
// Submission never blocks.
type Worker struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
	done   chan struct{}
	log    *zap.Logger
}

// NewWorker starts a worker goroutine. A nil logger disables logging.
func NewWorker(log *zap.Logger) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	w := &Worker{
		done: make(chan struct{}),
		log:  log,
	}
	w.cond = sync.NewCond(&w.mu)
	go w.run()
	return w
}

// Execute enqueues task behind everything submitted before it.
func (w *Worker) Execute(task func()) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	w.queue = append(w.queue, task)
	w.cond.Signal()
	return nil
}

// Post makes a Worker usable as a Reactor for callers without an event loop.
// Tasks posted after Close are dropped.
func (w *Worker) Post(task func()) {
	if err := w.Execute(task); err != nil {
		w.log.Warn("task dropped", zap.Error(err))
	}
}

// Hold is a no-op: a worker needs no keep-alive.
func (w *Worker) Hold() func() {
	return func() {}
}

// Close stops accepting tasks and blocks until every queued task has run.
func (w *Worker) Close() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		w.cond.Signal()
	}
	w.mu.Unlock()
	<-w.done
}

func (w *Worker) run() {
	defer close(w.done)
	for {
		w.mu.Lock()
		for len(w.queue) == 0 && !w.closed {
			w.cond.Wait()
		}
		if len(w.queue) == 0 {
			w.mu.Unlock()
			return
		}
		task := w.queue[0]
		w.queue[0] = nil
		w.queue = w.queue[1:]
		w.mu.Unlock()

		if err := Try(task); err != nil {
			w.log.Error("worker task panicked", zap.Error(err))
		}
	}
}
