package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrInvalidConcurrency is returned for a non-positive concurrency bound
var ErrInvalidConcurrency = errors.New("concurrency must be at least 1")

// Limiter bounds the number of tasks running at once. Tasks beyond the bound
// wait in FIFO order of their Schedule calls and are admitted as running
// tasks finish. There is no priority, cancellation or timeout at this layer.
type Limiter struct {
	mu      sync.Mutex
	max     int
	active  int
	pending []func()
}

// Future carries the outcome of one scheduled task
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Wait blocks until the task settles or ctx is done. A done ctx only stops
// the wait, the task itself keeps running.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done is closed once the task has settled
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// NewLimiter creates a limiter admitting at most maxConcurrent tasks
func NewLimiter(maxConcurrent int) (*Limiter, error) {
	if maxConcurrent <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidConcurrency, maxConcurrent)
	}
	return &Limiter{max: maxConcurrent}, nil
}

// Schedule queues task and returns a future resolving to exactly its outcome.
// A panicking task is reported as an error on its own future only.
func Schedule[T any](l *Limiter, task func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}

	run := func() {
		defer l.release()
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				f.err = fmt.Errorf("task panicked: %v", r)
			}
		}()
		f.value, f.err = task()
	}

	l.mu.Lock()
	if l.active < l.max {
		l.active++
		l.mu.Unlock()
		go run()
		return f
	}
	l.pending = append(l.pending, run)
	l.mu.Unlock()

	return f
}

// Do schedules task and waits for its outcome
func Do[T any](ctx context.Context, l *Limiter, task func() (T, error)) (T, error) {
	return Schedule(l, task).Wait(ctx)
}

// release admits the next queued task, keeping the slot when one is waiting
func (l *Limiter) release() {
	l.mu.Lock()
	if len(l.pending) == 0 {
		l.active--
		l.mu.Unlock()
		return
	}
	next := l.pending[0]
	l.pending[0] = nil
	l.pending = l.pending[1:]
	l.mu.Unlock()

	go next()
}

// Active returns the number of running tasks
func (l *Limiter) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// Pending returns the number of queued tasks
func (l *Limiter) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}
