package portgraph

import (
	"context"
	"sync"
)

// Executor runs computations on the engine's behalf, possibly elsewhere.
// Implementations live in package executor.
type Executor interface {
	// Submit schedules fn with kw and returns a handle to its outcome.
	Submit(ctx context.Context, fn Callable, kw Kwargs) Future
}

// Future is a handle to an asynchronous outcome.
type Future interface {
	// Result blocks until the outcome is available or ctx is done.
	Result(ctx context.Context) (any, error)

	// Done is closed once the outcome is available.
	Done() <-chan struct{}
}

// Promise is a Future resolved by its creator.
type Promise struct {
	done  chan struct{}
	once  sync.Once
	value any
	err   error
}

// NewPromise returns an unresolved Promise.
func NewPromise() *Promise {
	return &Promise{done: make(chan struct{})}
}

// Resolve sets the outcome. Only the first call has an effect.
func (p *Promise) Resolve(v any, err error) {
	p.once.Do(func() {
		p.value = v
		p.err = err
		close(p.done)
	})
}

// Result implements Future.
func (p *Promise) Result(ctx context.Context) (any, error) {
	select {
	case <-p.done:
		return p.value, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done implements Future.
func (p *Promise) Done() <-chan struct{} {
	return p.done
}
