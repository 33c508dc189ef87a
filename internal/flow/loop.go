package flow

import (
	"context"
	"errors"
	"log/slog"
)

// ErrLoopStopped is returned when work is posted to a Loop that has exited.
var ErrLoopStopped = errors.New("loop stopped")

// Loop runs posted functions one at a time on the goroutine that calls Run.
// Hosts without their own event loop use it to serialize access to a Session
// between user input and timer callbacks.
type Loop struct {
	jobs chan func()
	done chan struct{}
}

// NewLoop creates a Loop whose queue holds up to buffer functions before Post blocks.
func NewLoop(buffer int) *Loop {
	if buffer < 0 {
		buffer = 0
	}
	return &Loop{
		jobs: make(chan func(), buffer),
		done: make(chan struct{}),
	}
}

// Post queues fn. It blocks while the queue is full and returns false once
// the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.jobs <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Dispatch adapts Post for SimpleTimer's WithDispatch option.
func (l *Loop) Dispatch(fn func()) {
	if !l.Post(fn) {
		slog.Debug("Loop.Dispatch: loop stopped, dropping callback")
	}
}

// Call posts fn and waits until it has run.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	if !l.Post(func() {
		defer close(ran)
		fn()
	}) {
		return ErrLoopStopped
	}
	select {
	case <-ran:
		return nil
	case <-l.done:
		select {
		case <-ran:
			return nil
		default:
			return ErrLoopStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Run executes posted functions until ctx is cancelled. It must be called once.
func (l *Loop) Run(ctx context.Context) {
	slog.Debug("Loop.Run: starting")
	defer close(l.done)

	for {
		select {
		case <-ctx.Done():
			slog.Debug("Loop.Run: stopping", "queued", len(l.jobs))
			return
		case fn := <-l.jobs:
			fn()
		}
	}
}
