package portgraph

import (
	"context"
	"errors"
	"slices"
)

// Default signal labels present on every node.
const (
	RunSignal = "run"
	RanSignal = "ran"
)

// DefaultMaxSignalDepth bounds how deeply push chains may nest.
const DefaultMaxSignalDepth = 1000

type signalDepthKey struct{}

func signalDepth(ctx context.Context) int {
	d, _ := ctx.Value(signalDepthKey{}).(int)
	return d
}

// InputSignal is a control channel that invokes a callback when fired.
type InputSignal struct {
	channelBase
	callback func(ctx context.Context) error
	sources  []*OutputSignal
}

// NewInputSignal returns a detached input signal calling fn when triggered.
func NewInputSignal(label string, fn func(ctx context.Context) error) *InputSignal {
	return &InputSignal{channelBase: channelBase{label: label}, callback: fn}
}

// Connected reports whether any output signal feeds this channel.
func (c *InputSignal) Connected() bool { return len(c.sources) > 0 }

// Sources returns the connected output signals.
func (c *InputSignal) Sources() []*OutputSignal { return slices.Clone(c.sources) }

// Connect adds src as a trigger of this signal.
func (c *InputSignal) Connect(src *OutputSignal) {
	src.Connect(c)
}

// DisconnectAll detaches every source.
func (c *InputSignal) DisconnectAll() {
	for _, src := range slices.Clone(c.sources) {
		src.Disconnect(c)
	}
}

// Trigger invokes the callback.
func (c *InputSignal) Trigger(ctx context.Context) error {
	if c.callback == nil {
		return nil
	}
	limit := DefaultMaxSignalDepth
	if c.owner != nil {
		limit = c.owner.cfg.maxSignalDepth
	}
	depth := signalDepth(ctx)
	if depth >= limit {
		path := c.label
		if c.owner != nil {
			path = c.owner.SemanticPath()
		}
		return &MaxSignalDepthError{Max: limit, Node: path}
	}
	return c.callback(context.WithValue(ctx, signalDepthKey{}, depth+1))
}

// Snapshot implements Channel.
func (c *InputSignal) Snapshot() ChannelSnapshot {
	s := ChannelSnapshot{Label: c.label, Connected: c.Connected(), StoragePriority: c.priority}
	for _, src := range c.sources {
		s.Connections = append(s.Connections, src.FullLabel())
	}
	return s
}

// OutputSignal is a control channel that triggers connected input signals.
type OutputSignal struct {
	channelBase
	targets []*InputSignal
}

// NewOutputSignal returns a detached output signal.
func NewOutputSignal(label string) *OutputSignal {
	return &OutputSignal{channelBase: channelBase{label: label}}
}

// Connected reports whether any input signal is connected.
func (c *OutputSignal) Connected() bool { return len(c.targets) > 0 }

// Targets returns the connected input signals.
func (c *OutputSignal) Targets() []*InputSignal { return slices.Clone(c.targets) }

// Connect adds targets. Connecting the same pair twice is a no-op.
func (c *OutputSignal) Connect(targets ...*InputSignal) {
	for _, t := range targets {
		if slices.Contains(c.targets, t) {
			continue
		}
		c.targets = append(c.targets, t)
		t.sources = append(t.sources, c)
	}
}

// Disconnect removes a single target.
func (c *OutputSignal) Disconnect(t *InputSignal) {
	c.targets = slices.DeleteFunc(c.targets, func(x *InputSignal) bool { return x == t })
	t.sources = slices.DeleteFunc(t.sources, func(x *OutputSignal) bool { return x == c })
}

// DisconnectAll detaches every target.
func (c *OutputSignal) DisconnectAll() {
	for _, t := range slices.Clone(c.targets) {
		c.Disconnect(t)
	}
}

// Fire triggers every target in connection order. A failing target does not
// stop its siblings; the errors are joined.
func (c *OutputSignal) Fire(ctx context.Context) error {
	var errs []error
	for _, t := range slices.Clone(c.targets) {
		if c.owner != nil {
			c.owner.logSignal(ctx, c.label, t)
		}
		if err := t.Trigger(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Snapshot implements Channel.
func (c *OutputSignal) Snapshot() ChannelSnapshot {
	s := ChannelSnapshot{Label: c.label, Connected: c.Connected(), StoragePriority: c.priority}
	for _, t := range c.targets {
		s.Connections = append(s.Connections, t.FullLabel())
	}
	return s
}
