// Package dispatch serializes work onto a single goroutine. The bridge, the
// form subsystem and the engine are single-threaded; every caller that is
// not already on the loop goes through Do or Post.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-logr/logr"
)

// ErrStopped is returned by Do once the loop has stopped.
var ErrStopped = errors.New("dispatch: loop stopped")

type task struct {
	fn   func() error
	done chan error // nil for posted tasks
}

// Loop runs tasks one at a time, in submission order.
type Loop struct {
	logger logr.Logger

	mu     sync.RWMutex
	closed bool
	tasks  chan task
	done   chan struct{}
}

// New creates a loop with the given queue size.
func New(logger logr.Logger, queue int) *Loop {
	if queue < 1 {
		queue = 64
	}
	return &Loop{
		logger: logger.WithName("dispatch"),
		tasks:  make(chan task, queue),
		done:   make(chan struct{}),
	}
}

// Start runs the loop goroutine until Stop is called or ctx is done.
// Queued tasks still run after ctx is done.
func (l *Loop) Start(ctx context.Context) {
	go func() {
		defer close(l.done)
		for {
			select {
			case t, ok := <-l.tasks:
				if !ok {
					return
				}
				l.run(t)
			case <-ctx.Done():
				for {
					select {
					case t, ok := <-l.tasks:
						if !ok {
							return
						}
						l.run(t)
					default:
						return
					}
				}
			}
		}
	}()
}

// Stop refuses new tasks, runs the queued ones and waits for the loop to
// exit.
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	close(l.tasks)
	l.mu.Unlock()
	<-l.done
}

// Do runs fn on the loop and returns its error. It gives up waiting when ctx
// is done; fn may still run later. Calling Do from a task deadlocks.
func (l *Loop) Do(ctx context.Context, fn func() error) error {
	t := task{fn: fn, done: make(chan error, 1)}
	if err := l.enqueue(ctx, t); err != nil {
		return err
	}
	select {
	case err := <-t.done:
		return err
	case <-l.done:
		select {
		case err := <-t.done:
			return err
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Post queues fn without waiting. Errors are logged.
func (l *Loop) Post(fn func() error) error {
	return l.enqueue(context.Background(), task{fn: fn})
}

func (l *Loop) enqueue(ctx context.Context, t task) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ErrStopped
	}
	select {
	case l.tasks <- t:
		return nil
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) run(t task) {
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("dispatch: task panicked: %v", r)
			}
		}()
		err = t.fn()
	}()
	if t.done != nil {
		t.done <- err
		return
	}
	if err != nil {
		l.logger.Error(err, "Posted task failed")
	}
}
