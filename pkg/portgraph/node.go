package portgraph

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/randalmurphal/portgraph/pkg/portgraph/hint"
	"github.com/randalmurphal/portgraph/pkg/portgraph/observability"
	"go.opentelemetry.io/otel/attribute"
)

// PathDelimiter separates labels in a semantic path.
const PathDelimiter = "/"

// Port describes one data channel of a node type.
type Port struct {
	// Label names the channel.
	Label string
	// Hint constrains values. Nil is unconstrained.
	Hint hint.Hint
	// Default is the initial input value. NotData means none.
	Default Data
}

// Node is the execution unit of a graph. All node kinds share this type:
// function nodes carry a computation built from a Descriptor, composite nodes
// are driven by their Macro.
//
// The IO containers are built lazily on first access.
type Node struct {
	label       string
	kind        string
	inputPorts  []Port
	outputPorts []Port
	fn          Callable
	selfFn      SelfCallable
	bindsSelf   bool
	passthrough bool
	composite   *Macro
	parent      *Macro
	cfg         nodeConfig

	ioOnce  sync.Once
	inputs  *Inputs
	outputs *Outputs
	signals *Signals

	mu      sync.Mutex
	running bool
	failed  bool
	graphID string
}

func newNode(kind string, inputs, outputs []Port, opts []Option) (*Node, error) {
	cfg := defaultNodeConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	label := cfg.label
	if label == "" {
		label = kind
	}
	if err := validateLabel(label); err != nil {
		return nil, &DefinitionError{Name: kind, Err: err}
	}
	return &Node{
		label:       label,
		kind:        kind,
		inputPorts:  inputs,
		outputPorts: outputs,
		cfg:         cfg,
	}, nil
}

// initialize runs the construction steps that need a complete node.
func (n *Node) initialize() error {
	if n.cfg.parent != nil {
		if err := n.cfg.parent.Add(n); err != nil {
			return err
		}
	}
	if err := n.SetInputValues(n.cfg.args...); err != nil {
		return err
	}
	if n.cfg.runAfterInit {
		if _, err := n.Execute(context.Background()); err != nil {
			return err
		}
	}
	return nil
}

func validateLabel(label string) error {
	if label == "" {
		return fmt.Errorf("%w: empty", ErrInvalidLabel)
	}
	if strings.Contains(label, PathDelimiter) {
		return fmt.Errorf("%w: %q contains %q", ErrInvalidLabel, label, PathDelimiter)
	}
	return nil
}

func (n *Node) buildIO() {
	n.ioOnce.Do(func() {
		n.inputs = &Inputs{IO: newIO[*InputData](n)}
		n.outputs = &Outputs{IO: newIO[*OutputData](n)}
		n.signals = &Signals{
			Input:  &InputSignals{IO: newIO[*InputSignal](n)},
			Output: &OutputSignals{IO: newIO[*OutputSignal](n)},
		}
		for _, p := range n.inputPorts {
			c := NewInputData(p.Label, p.Hint, p.Default)
			c.strict = n.cfg.strictHints
			// Labels were validated when the type was defined.
			_ = n.inputs.Add(c)
		}
		for _, p := range n.outputPorts {
			c := NewOutputData(p.Label, p.Hint)
			c.strict = n.cfg.strictHints
			_ = n.outputs.Add(c)
		}
		_ = n.signals.Input.Add(NewInputSignal(RunSignal, func(ctx context.Context) error {
			return n.Run(ctx)
		}))
		_ = n.signals.Output.Add(NewOutputSignal(RanSignal))
	})
}

// Label returns the node label.
func (n *Node) Label() string { return n.label }

// Kind returns the name of the node type.
func (n *Node) Kind() string { return n.kind }

// Parent returns the composite containing the node, or nil for a root.
func (n *Node) Parent() *Macro { return n.parent }

// Composite returns the Macro driving this node, or nil for function nodes.
func (n *Node) Composite() *Macro { return n.composite }

// BindsSelf reports whether the computation receives the node itself.
func (n *Node) BindsSelf() bool { return n.bindsSelf }

// Inputs returns the input data channels.
func (n *Node) Inputs() *Inputs {
	n.buildIO()
	return n.inputs
}

// Outputs returns the output data channels.
func (n *Node) Outputs() *Outputs {
	n.buildIO()
	return n.outputs
}

// Signals returns the control channels.
func (n *Node) Signals() *Signals {
	n.buildIO()
	return n.signals
}

// Running reports whether the node is executing.
func (n *Node) Running() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.running
}

// Failed reports whether the last run failed.
func (n *Node) Failed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.failed
}

// ResetFailed clears the failed flag so the node may run again. On a
// composite it also resets every descendant.
func (n *Node) ResetFailed() {
	n.mu.Lock()
	n.failed = false
	n.mu.Unlock()
	if n.composite != nil {
		for _, child := range n.composite.Children() {
			child.ResetFailed()
		}
	}
}

// SemanticPath returns the node's location, e.g. "/outer/inner/leaf".
func (n *Node) SemanticPath() string {
	if n.parent == nil {
		return PathDelimiter + n.label
	}
	return n.parent.SemanticPath() + PathDelimiter + n.label
}

// GraphID identifies the graph the node belongs to. Root nodes generate one
// on first use, children report their root's.
func (n *Node) GraphID() string {
	if n.parent != nil {
		return n.parent.GraphID()
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.graphID == "" {
		n.graphID = uuid.New().String()
	}
	return n.graphID
}

// Then connects n's ran signal to other's run signal and returns other, so
// push chains read left to right:
//
//	a.Then(b).Then(c)
func (n *Node) Then(other *Node) *Node {
	n.Signals().Output.Ran().Connect(other.Signals().Input.Run())
	return other
}

// DisconnectRun removes all connections of the run and ran signals.
func (n *Node) DisconnectRun() {
	n.Signals().Input.Run().DisconnectAll()
	n.Signals().Output.Ran().DisconnectAll()
}

// DisconnectAll removes every data and signal connection of the node.
func (n *Node) DisconnectAll() {
	n.Inputs().DisconnectAll()
	n.Outputs().DisconnectAll()
	n.Signals().DisconnectAll()
}

// Connected reports whether any data or signal channel is connected.
func (n *Node) Connected() bool {
	return n.Inputs().Connected() || n.Outputs().Connected() || n.Signals().Connected()
}

// FullyConnected reports whether every data and signal channel is connected.
func (n *Node) FullyConnected() bool {
	return n.Inputs().FullyConnected() && n.Outputs().FullyConnected() && n.Signals().FullyConnected()
}

// Ready reports whether the node may run now.
func (n *Node) Ready() bool {
	return n.ReadinessReport().Ready
}

// ReadinessReport diagnoses whether the node may run.
func (n *Node) ReadinessReport() ReadinessReport {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.readinessLocked()
}

func (n *Node) readinessLocked() ReadinessReport {
	r := ReadinessReport{
		Label:   n.label,
		Running: n.running,
		Failed:  n.failed,
	}
	inputsReady := true
	for _, c := range n.Inputs().All() {
		ready := c.Ready()
		inputsReady = inputsReady && ready
		r.Inputs = append(r.Inputs, InputReadiness{Label: c.Label(), Ready: ready})
	}
	r.Ready = !r.Running && !r.Failed && inputsReady
	return r
}

// InputReadiness is the readiness of one input channel.
type InputReadiness struct {
	Label string `json:"label" yaml:"label"`
	Ready bool   `json:"ready" yaml:"ready"`
}

// ReadinessReport lists the node-level flags and per-input readiness.
type ReadinessReport struct {
	Label   string           `json:"label" yaml:"label"`
	Ready   bool             `json:"ready" yaml:"ready"`
	Running bool             `json:"running" yaml:"running"`
	Failed  bool             `json:"failed" yaml:"failed"`
	Inputs  []InputReadiness `json:"inputs" yaml:"inputs"`
}

// String renders the report:
//
//	adder readiness: false
//	STATE:
//	running: false
//	failed: false
//	INPUTS:
//	x ready: true
//	y ready: false
func (r ReadinessReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s readiness: %t\nSTATE:\nrunning: %t\nfailed: %t\nINPUTS:", r.Label, r.Ready, r.Running, r.Failed)
	for _, in := range r.Inputs {
		fmt.Fprintf(&b, "\n%s ready: %t", in.Label, in.Ready)
	}
	return b.String()
}

func (n *Node) logger() *slog.Logger {
	base := n.cfg.logger
	if base == nil {
		base = slog.Default()
	}
	return observability.EnrichLogger(base, n.GraphID(), n.SemanticPath())
}

func (n *Node) logSignal(ctx context.Context, label string, target *InputSignal) {
	to := target.Label()
	if owner := target.Owner(); owner != nil {
		to = owner.SemanticPath() + "." + to
	}
	observability.LogSignal(n.logger(), n.SemanticPath(), label, to)
	n.cfg.spans.AddSpanEvent(ctx, "signal",
		attribute.String("signal.from", n.SemanticPath()+"."+label),
		attribute.String("signal.to", to),
	)
}
