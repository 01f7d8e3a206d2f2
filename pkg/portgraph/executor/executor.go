// Package executor provides collaborators that run node computations off the
// caller's goroutine.
//
// Both types satisfy portgraph.Executor:
//
//	pool := executor.NewPool(4)
//	defer pool.Shutdown(context.Background())
//
//	n, err := heavy.New(portgraph.WithExecutor(pool))
package executor

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/randalmurphal/portgraph/pkg/portgraph"
	"github.com/randalmurphal/portgraph/pkg/portgraph/observability"
	"golang.org/x/sync/errgroup"
)

// ErrClosed is returned by futures submitted after Shutdown.
var ErrClosed = errors.New("executor is shut down")

// Pool runs computations on a bounded number of goroutines.
type Pool struct {
	mu      sync.RWMutex
	closed  bool
	group   errgroup.Group
	timeout time.Duration
	logger  *slog.Logger
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithTaskTimeout bounds each computation. Zero means no bound.
func WithTaskTimeout(d time.Duration) PoolOption {
	return func(p *Pool) {
		p.timeout = d
	}
}

// WithLogger sets the pool logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) PoolOption {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPool returns a pool running at most workers computations at once.
// workers <= 0 means unbounded.
func NewPool(workers int, opts ...PoolOption) *Pool {
	p := &Pool{logger: slog.Default()}
	if workers > 0 {
		p.group.SetLimit(workers)
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit schedules fn and returns its future. When every worker is busy,
// Submit blocks until one frees up.
func (p *Pool) Submit(ctx context.Context, fn portgraph.Callable, kw portgraph.Kwargs) portgraph.Future {
	promise := portgraph.NewPromise()

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		promise.Resolve(nil, ErrClosed)
		return promise
	}

	p.group.Go(func() error {
		taskCtx := ctx
		if p.timeout > 0 {
			var cancel context.CancelFunc
			taskCtx, cancel = context.WithTimeout(ctx, p.timeout)
			defer cancel()
		}
		done := observability.TimedOperation()
		raw, err := call(taskCtx, fn, kw)
		p.logger.Debug("task complete",
			slog.Float64("duration_ms", done()),
			slog.Bool("failed", err != nil),
		)
		promise.Resolve(raw, err)
		return nil
	})
	return promise
}

// Shutdown rejects new submissions and waits for running computations or
// for ctx to end, whichever comes first.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = p.group.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Inline runs computations synchronously inside Submit. It is useful for
// exercising the executor path without concurrency.
type Inline struct{}

// Submit runs fn and returns an already resolved future.
func (Inline) Submit(ctx context.Context, fn portgraph.Callable, kw portgraph.Kwargs) portgraph.Future {
	promise := portgraph.NewPromise()
	promise.Resolve(call(ctx, fn, kw))
	return promise
}

func call(ctx context.Context, fn portgraph.Callable, kw portgraph.Kwargs) (raw any, err error) {
	defer func() {
		if r := recover(); r != nil {
			raw = nil
			err = &portgraph.PanicError{Value: r, Stack: string(debug.Stack())}
		}
	}()
	if fn == nil {
		return nil, portgraph.ErrNotCallable
	}
	return fn(ctx, kw)
}

var (
	_ portgraph.Executor = (*Pool)(nil)
	_ portgraph.Executor = Inline{}
)
