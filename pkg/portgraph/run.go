package portgraph

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/randalmurphal/portgraph/pkg/portgraph/observability"
	"go.opentelemetry.io/otel/trace"
)

// Run modes recorded in logs, metrics and spans.
const (
	modeRun     = "run"
	modeExecute = "execute"
	modePull    = "pull"
	modeAsync   = "async"
)

// Run applies args to the inputs, executes the node and fires its ran
// signal. A node bound to an executor blocks until the submitted computation
// resolves.
//
// Run fails fast with *NotReadyError when the node is running, failed or has
// an unready input. Errors from the computation are wrapped in
// *ExecutionError (or *PanicError) and leave the node failed with its
// outputs unchanged.
func (n *Node) Run(ctx context.Context, args ...Arg) error {
	if ctx == nil {
		return ErrNilContext
	}
	if err := n.SetInputValues(args...); err != nil {
		return err
	}
	return n.runOnce(ctx, modeRun, true)
}

// Execute applies args and runs the node without firing signals. It returns
// the node result as for Result.
func (n *Node) Execute(ctx context.Context, args ...Arg) (any, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if err := n.SetInputValues(args...); err != nil {
		return nil, err
	}
	if err := n.runOnce(ctx, modeExecute, false); err != nil {
		return nil, err
	}
	return n.Result(), nil
}

// Pull applies args, then resolves every upstream sibling that feeds the
// node through a data connection, depth first, each at most once, and
// finally executes the node itself. No signals fire.
//
// Pull follows data connections only and stays inside the node's parent:
// a child reads what its composite last delivered. A cycle among the
// connections is not detected; each node in it runs once, in discovery
// order.
func (n *Node) Pull(ctx context.Context, args ...Arg) (any, error) {
	return n.pull(ctx, false, args)
}

// PullWithParents is Pull that first resolves the upstream siblings of every
// enclosing composite, outermost first, and pushes the values arriving on
// each composite's connected inputs down into its children.
func (n *Node) PullWithParents(ctx context.Context, args ...Arg) (any, error) {
	return n.pull(ctx, true, args)
}

func (n *Node) pull(ctx context.Context, parents bool, args []Arg) (any, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	path := n.SemanticPath()
	ctx, span := n.cfg.spans.StartPullSpan(ctx, path)
	resolved := 0
	var err error
	if parents {
		err = n.pullParents(ctx, &resolved)
	}
	if err == nil {
		err = n.SetInputValues(args...)
	}
	if err == nil {
		visited := map[*Node]bool{n: true}
		err = n.pullUpstream(ctx, visited, &resolved)
	}
	if err == nil {
		err = n.runOnce(ctx, modePull, false)
	}
	n.cfg.metrics.RecordPull(ctx, path, resolved)
	n.cfg.spans.EndSpanWithError(span, err)
	if err != nil {
		return nil, err
	}
	return n.Result(), nil
}

// pullParents resolves the data dependencies of n's ancestors and delivers
// their connected inputs.
func (n *Node) pullParents(ctx context.Context, resolved *int) error {
	p := n.parent
	if p == nil {
		return nil
	}
	if err := p.Node.pullParents(ctx, resolved); err != nil {
		return err
	}
	if err := p.Node.pullUpstream(ctx, map[*Node]bool{p.Node: true}, resolved); err != nil {
		return err
	}
	return p.pushInputs()
}

// Call is Pull.
func (n *Node) Call(ctx context.Context, args ...Arg) (any, error) {
	return n.Pull(ctx, args...)
}

func (n *Node) pullUpstream(ctx context.Context, visited map[*Node]bool, resolved *int) error {
	for _, in := range n.Inputs().All() {
		src := in.Source()
		if src == nil {
			continue
		}
		up := src.Owner()
		if up == nil || visited[up] || up.parent != n.parent {
			continue
		}
		visited[up] = true
		if err := up.pullUpstream(ctx, visited, resolved); err != nil {
			return err
		}
		if err := up.runOnce(ctx, modePull, false); err != nil {
			return err
		}
		*resolved++
	}
	return nil
}

// RunAsync submits the node to its executor and returns immediately. The
// node stays running until the returned future resolves; the ran signal
// fires from the goroutine that observes the result.
func (n *Node) RunAsync(ctx context.Context, args ...Arg) (Future, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	ex := n.cfg.executor
	if ex == nil {
		return nil, fmt.Errorf("node %s: %w", n.SemanticPath(), ErrNoExecutor)
	}
	if err := n.SetInputValues(args...); err != nil {
		return nil, err
	}
	if err := n.start(); err != nil {
		return nil, err
	}

	kw := n.Inputs().kwargs()
	observability.LogNodeStart(n.logger(), n.SemanticPath(), modeAsync)
	spanCtx, span := n.cfg.spans.StartNodeSpan(ctx, n.SemanticPath(), modeAsync)
	started := time.Now()
	handle := ex.Submit(spanCtx, n.fn, kw)

	p := NewPromise()
	go func() {
		raw, err := handle.Result(ctx)
		if err = n.finish(ctx, modeAsync, true, raw, err, span, started); err != nil {
			p.Resolve(nil, err)
			return
		}
		p.Resolve(n.Result(), nil)
	}()
	return p, nil
}

// Result returns the current output values: nil with no outputs, the bare
// value with one output, otherwise a Tuple in output order.
func (n *Node) Result() any {
	outs := n.Outputs().All()
	switch len(outs) {
	case 0:
		return nil
	case 1:
		return outs[0].Value().Value()
	}
	t := make(Tuple, len(outs))
	for i, c := range outs {
		t[i] = c.Value().Value()
	}
	return t
}

// ProcessRunResult writes a raw computation result onto the outputs by
// position. A node with one output stores raw whole; with more outputs raw
// must be a Tuple of the same length. Every value is checked against its
// hint before any output is written, and a mismatch marks the node failed.
func (n *Node) ProcessRunResult(raw any) error {
	err := n.processRunResult(raw)
	if err != nil {
		n.mu.Lock()
		n.failed = true
		n.mu.Unlock()
	}
	return err
}

func (n *Node) processRunResult(raw any) error {
	outs := n.Outputs().All()
	var values []any
	switch len(outs) {
	case 0:
		return nil
	case 1:
		values = []any{raw}
	default:
		t, ok := raw.(Tuple)
		if !ok {
			return &ArityError{Node: n.SemanticPath(), Op: "outputs", Want: len(outs), Got: 1}
		}
		if len(t) != len(outs) {
			return &ArityError{Node: n.SemanticPath(), Op: "outputs", Want: len(outs), Got: len(t)}
		}
		values = t
	}
	for i, c := range outs {
		if err := c.check(values[i]); err != nil {
			return err
		}
	}
	for i, c := range outs {
		c.value = Some(values[i])
	}
	return nil
}

// start moves an idle, ready node to running.
func (n *Node) start() error {
	n.mu.Lock()
	if n.bindsSelf && n.cfg.executor != nil {
		n.mu.Unlock()
		return fmt.Errorf("node %s: %w", n.SemanticPath(), ErrSelfWithExecutor)
	}
	report := n.readinessLocked()
	if report.Ready {
		n.running = true
	}
	n.mu.Unlock()

	if !report.Ready {
		observability.LogNotReady(n.logger(), n.SemanticPath(), report.String())
		return &NotReadyError{Node: n.SemanticPath(), Report: report}
	}
	return nil
}

func (n *Node) runOnce(ctx context.Context, mode string, fire bool) error {
	if err := n.start(); err != nil {
		return err
	}
	kw := n.Inputs().kwargs()
	path := n.SemanticPath()
	observability.LogNodeStart(n.logger(), path, mode)
	spanCtx, span := n.cfg.spans.StartNodeSpan(ctx, path, mode)
	started := time.Now()

	var raw any
	var err error
	if ex := n.cfg.executor; ex != nil {
		raw, err = ex.Submit(spanCtx, n.fn, kw).Result(spanCtx)
	} else {
		raw, err = n.call(spanCtx, kw)
	}
	return n.finish(ctx, mode, fire, raw, err, span, started)
}

func (n *Node) call(ctx context.Context, kw Kwargs) (raw any, err error) {
	defer func() {
		if r := recover(); r != nil {
			raw = nil
			err = &PanicError{
				Node:  n.SemanticPath(),
				Value: r,
				Stack: string(debug.Stack()),
			}
		}
	}()
	if n.bindsSelf {
		return n.selfFn(ctx, n, kw)
	}
	return n.fn(ctx, kw)
}

// finish records the outcome of a computation and, on success, saves the
// snapshot. When fire is set it then runs the after-run hook and fires ran.
func (n *Node) finish(ctx context.Context, mode string, fire bool, raw any, err error, span trace.Span, started time.Time) error {
	path := n.SemanticPath()
	if err != nil {
		var pe *PanicError
		if errors.As(err, &pe) {
			if pe.Node == "" {
				pe.Node = path
			}
		} else {
			err = &ExecutionError{Node: path, Op: mode, Err: err}
		}
	} else if !n.passthrough {
		err = n.processRunResult(raw)
	}

	n.mu.Lock()
	n.running = false
	if err != nil {
		n.failed = true
	}
	n.mu.Unlock()

	elapsed := time.Since(started)
	n.cfg.metrics.RecordNodeRun(ctx, path, mode, elapsed, err)
	n.cfg.spans.EndSpanWithError(span, err)
	logger := n.logger()
	if err != nil {
		observability.LogNodeError(logger, path, err)
		return err
	}
	observability.LogNodeComplete(logger, path, mode, float64(elapsed.Milliseconds()))

	if n.cfg.store != nil {
		n.saveSnapshot(ctx, logger)
	}

	if hook := n.cfg.afterRun; hook != nil && fire {
		if herr := hook(ctx, n); herr != nil {
			n.mu.Lock()
			n.failed = true
			n.mu.Unlock()
			err = &ExecutionError{Node: path, Op: "after run", Err: herr}
			observability.LogNodeError(logger, path, err)
			return err
		}
	}

	if fire {
		return n.Signals().Output.Ran().Fire(ctx)
	}
	return nil
}
