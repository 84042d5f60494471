package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/vango-dev/frp/pkg/frp"
)

var (
	// ErrLoopClosed is returned when work is submitted after the loop
	// stopped.
	ErrLoopClosed = errors.New("server: loop closed")

	// ErrLoopBusy is returned by Submit when the task queue is full.
	ErrLoopBusy = errors.New("server: loop queue full")
)

// Loop owns a Runtime and runs every task touching it on one goroutine.
type Loop struct {
	rt     *frp.Runtime
	tasks  chan func()
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

// NewLoop creates a loop for rt with a task queue of the given size.
func NewLoop(rt *frp.Runtime, queue int, logger *slog.Logger) *Loop {
	if queue <= 0 {
		queue = 256
	}
	if logger == nil {
		logger = rt.Logger()
	}
	return &Loop{
		rt:     rt,
		tasks:  make(chan func(), queue),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Runtime returns the runtime. Only use it from inside a task.
func (l *Loop) Runtime() *frp.Runtime {
	return l.rt
}

// Run processes tasks until ctx is done or Close is called. Pending tasks
// are dropped. Run closes the loop on return.
func (l *Loop) Run(ctx context.Context) error {
	defer l.Close()
	for {
		select {
		case task := <-l.tasks:
			task()
		case <-ctx.Done():
			return nil
		case <-l.done:
			return nil
		}
	}
}

// Close stops the loop. It is safe to call more than once.
func (l *Loop) Close() {
	l.once.Do(func() { close(l.done) })
}

// Done is closed once the loop has stopped.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Submit queues fn without waiting for it. Aborts raised by fn are logged.
func (l *Loop) Submit(fn func(rt *frp.Runtime)) error {
	task := func() {
		_ = l.call(func(rt *frp.Runtime) error {
			fn(rt)
			return nil
		})
	}
	select {
	case <-l.done:
		return ErrLoopClosed
	default:
	}
	select {
	case l.tasks <- task:
		return nil
	case <-l.done:
		return ErrLoopClosed
	default:
		return ErrLoopBusy
	}
}

// Post queues fn like Submit but never fails for a full queue: the task is
// handed over from a new goroutine instead. Used for cleanups that must
// not be lost.
func (l *Loop) Post(fn func(rt *frp.Runtime)) {
	if err := l.Submit(fn); !errors.Is(err, ErrLoopBusy) {
		return
	}
	go func() {
		task := func() {
			_ = l.call(func(rt *frp.Runtime) error {
				fn(rt)
				return nil
			})
		}
		select {
		case l.tasks <- task:
		case <-l.done:
		}
	}()
}

// Do runs fn on the loop and waits for its result. A propagation abort
// inside fn is returned as its *frp.NodeError. Do must not be called from
// inside a task.
func (l *Loop) Do(ctx context.Context, fn func(rt *frp.Runtime) error) error {
	result := make(chan error, 1)
	task := func() { result <- l.call(fn) }

	select {
	case l.tasks <- task:
	case <-l.done:
		return ErrLoopClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-result:
		return err
	case <-l.done:
		select {
		case err := <-result:
			return err
		default:
			return ErrLoopClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// call runs fn, turning panics into errors so one bad task cannot stop
// the loop.
func (l *Loop) call(fn func(rt *frp.Runtime) error) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if ne, ok := frp.AsNodeError(r); ok {
			l.logger.Warn("propagation aborted", "code", ne.Code, "node", ne.Label, "error", ne)
			err = ne
			return
		}
		l.logger.Error("loop task panic",
			"panic", r,
			"stack", string(debug.Stack()))
		err = fmt.Errorf("server: panic in loop task: %v", r)
	}()
	return fn(l.rt)
}
