package portgraph

import (
	"context"
	"log/slog"

	"github.com/randalmurphal/portgraph/pkg/portgraph/observability"
	"github.com/randalmurphal/portgraph/pkg/portgraph/storage"
)

// nodeConfig holds per-node construction settings.
type nodeConfig struct {
	label          string
	args           []Arg
	executor       Executor
	logger         *slog.Logger
	metrics        observability.MetricsRecorder
	spans          observability.SpanManager
	store          storage.Store
	strictHints    bool
	maxSignalDepth int
	afterRun       func(ctx context.Context, n *Node) error
	runAfterInit   bool
	parent         *Macro

	// composite-only
	inputsMap  map[string]string
	outputsMap map[string]string
}

func defaultNodeConfig() nodeConfig {
	return nodeConfig{
		metrics:        observability.NoopMetrics{},
		spans:          observability.NoopSpanManager{},
		strictHints:    true,
		maxSignalDepth: DefaultMaxSignalDepth,
	}
}

// Option configures a node at construction.
type Option func(*nodeConfig)

// WithLabel overrides the node label. Labels must be non-empty and must not
// contain "/".
func WithLabel(label string) Option {
	return func(c *nodeConfig) {
		c.label = label
	}
}

// WithInputs applies initial input values, as for Run's arguments.
//
// Example:
//
//	n, err := adder.New(portgraph.WithInputs(portgraph.Kw("x", 1), portgraph.Kw("y", 2)))
func WithInputs(args ...Arg) Option {
	return func(c *nodeConfig) {
		c.args = append(c.args, args...)
	}
}

// WithExecutor offloads the node's computation to ex.
func WithExecutor(ex Executor) Option {
	return func(c *nodeConfig) {
		c.executor = ex
	}
}

// WithLogger sets the node logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *nodeConfig) {
		c.logger = logger
	}
}

// WithMetrics enables metrics recording for the node.
//
// Example:
//
//	n, _ := d.New(portgraph.WithMetrics(observability.NewMetricsRecorder()))
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(c *nodeConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithTracing enables OpenTelemetry spans for runs and pulls.
func WithTracing(enabled bool) Option {
	return func(c *nodeConfig) {
		if enabled {
			c.spans = observability.NewSpanManager()
		} else {
			c.spans = observability.NoopSpanManager{}
		}
	}
}

// WithStore saves a snapshot of the node after every successful run.
func WithStore(s storage.Store) Option {
	return func(c *nodeConfig) {
		c.store = s
	}
}

// WithStrictHints toggles hint checking on the node's channels. Default: true.
func WithStrictHints(strict bool) Option {
	return func(c *nodeConfig) {
		c.strictHints = strict
	}
}

// WithMaxSignalDepth bounds push chains triggered through this node's run
// signal. Default: 1000.
func WithMaxSignalDepth(n int) Option {
	return func(c *nodeConfig) {
		if n > 0 {
			c.maxSignalDepth = n
		}
	}
}

// WithAfterRun registers a hook called after each successful Run or
// RunAsync, before the ran signal fires. Execute and Pull skip it. A hook
// error fails the node.
func WithAfterRun(fn func(ctx context.Context, n *Node) error) Option {
	return func(c *nodeConfig) {
		c.afterRun = fn
	}
}

// WithRunAfterInit runs the node once, without firing signals, as the last
// construction step.
func WithRunAfterInit(run bool) Option {
	return func(c *nodeConfig) {
		c.runAfterInit = run
	}
}

// WithParent adds the node to a composite at construction.
func WithParent(m *Macro) Option {
	return func(c *nodeConfig) {
		c.parent = m
	}
}

// WithInputsMap exposes composite inputs under external labels. Keys are
// external labels, values are "<child>__<port>". When set, only mapped
// inputs are exposed.
func WithInputsMap(m map[string]string) Option {
	return func(c *nodeConfig) {
		c.inputsMap = m
	}
}

// WithOutputsMap is WithInputsMap for composite outputs.
func WithOutputsMap(m map[string]string) Option {
	return func(c *nodeConfig) {
		c.outputsMap = m
	}
}
