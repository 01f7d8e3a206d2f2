package portgraph

import (
	"fmt"
	"slices"
	"unicode/utf8"

	"github.com/randalmurphal/portgraph/pkg/portgraph/hint"
)

// port is the part of a channel an IO container relies on. It does not
// mention *Node, so IO can use it as a constraint while Node holds IOs.
type port interface {
	// Label returns the channel's label, unique within its container.
	Label() string

	// Connected reports whether the channel has at least one connection.
	Connected() bool

	// DisconnectAll removes every connection. It is idempotent.
	DisconnectAll()

	// StoragePriority returns the opaque persistence priority tag.
	StoragePriority() int

	// SetStoragePriority sets the opaque persistence priority tag.
	SetStoragePriority(p int)

	// Snapshot returns a serialisable view of the channel.
	Snapshot() ChannelSnapshot
}

// attacher binds a detached channel to its owner.
type attacher interface {
	attach(owner *Node)
}

// Channel is a labelled endpoint owned by a node. The four implementations
// are *InputData, *OutputData, *InputSignal and *OutputSignal.
type Channel interface {
	port
	attacher

	// Owner returns the node the channel belongs to, or nil if detached.
	Owner() *Node
}

type channelBase struct {
	label    string
	owner    *Node
	priority int
}

func (c *channelBase) Label() string            { return c.label }
func (c *channelBase) Owner() *Node             { return c.owner }
func (c *channelBase) StoragePriority() int     { return c.priority }
func (c *channelBase) SetStoragePriority(p int) { c.priority = p }
func (c *channelBase) attach(owner *Node)       { c.owner = owner }

// FullLabel returns "owner.label", or the bare label for a detached channel.
func (c *channelBase) FullLabel() string {
	if c.owner == nil {
		return c.label
	}
	return c.owner.Label() + "." + c.label
}

func (c *channelBase) ownerRunning() bool {
	return c.owner != nil && c.owner.Running()
}

// InputData is an input data channel. It has at most one upstream source.
type InputData struct {
	channelBase
	hint   hint.Hint
	strict bool
	def    Data
	local  Data
	source *OutputData

	// receiver is the child input a composite input forwards to.
	receiver *InputData
}

// NewInputData returns a detached input channel. The default, if present,
// becomes the initial value.
func NewInputData(label string, h hint.Hint, def Data) *InputData {
	return &InputData{
		channelBase: channelBase{label: label},
		hint:        h,
		strict:      true,
		def:         def,
		local:       def,
	}
}

// Hint returns the channel's type hint, nil when unconstrained.
func (c *InputData) Hint() hint.Hint { return c.hint }

// Default returns the declared default.
func (c *InputData) Default() Data { return c.def }

// Source returns the upstream output, or nil.
func (c *InputData) Source() *OutputData { return c.source }

// Connected reports whether an upstream source is set.
func (c *InputData) Connected() bool { return c.source != nil }

// Value returns the freshest value: the upstream value when connected and
// the upstream holds data, otherwise the locally assigned value.
func (c *InputData) Value() Data {
	if c.source != nil {
		if v := c.source.Value(); !v.IsEmpty() {
			return v
		}
	}
	if c.receiver != nil {
		return c.receiver.Value()
	}
	return c.local
}

// Ready reports whether the channel holds a hint-valid value.
func (c *InputData) Ready() bool {
	v, ok := c.Value().Get()
	if !ok {
		return false
	}
	return !c.strict || hint.Check(c.hint, v)
}

// SetValue assigns a literal. A value violating the hint is rejected with a
// *ConnectionTypeError and the channel is unchanged.
func (c *InputData) SetValue(v any) error {
	if c.strict && !hint.Check(c.hint, v) {
		return &ConnectionTypeError{
			Channel: c.FullLabel(),
			Op:      "assign",
			Hint:    hint.Name(c.hint),
			Got:     fmt.Sprintf("%T", v),
		}
	}
	if c.receiver != nil {
		if err := c.receiver.SetValue(v); err != nil {
			return err
		}
	}
	c.local = Some(v)
	return nil
}

// Clear resets the local value to NotData.
func (c *InputData) Clear() {
	c.local = NotData
}

// Connect makes src the sole upstream of c, replacing any previous source.
func (c *InputData) Connect(src *OutputData) error {
	if src == nil {
		return &ConnectionError{Channel: c.FullLabel(), Err: ErrNotOutputChannel}
	}
	if c.ownerRunning() {
		return &ConnectionError{Channel: c.FullLabel(), Err: ErrNodeRunning}
	}
	if c.strict && !hint.Within(src.hint, c.hint) {
		return &ConnectionTypeError{
			Channel: c.FullLabel(),
			Op:      "connect",
			Hint:    hint.Name(c.hint),
			Got:     src.FullLabel() + " (" + hint.Name(src.hint) + ")",
		}
	}
	c.DisconnectAll()
	c.source = src
	src.targets = append(src.targets, c)
	return nil
}

// DisconnectAll removes the upstream source.
func (c *InputData) DisconnectAll() {
	if c.source == nil {
		return
	}
	src := c.source
	src.targets = slices.DeleteFunc(src.targets, func(t *InputData) bool { return t == c })
	c.source = nil
}

// Snapshot implements Channel.
func (c *InputData) Snapshot() ChannelSnapshot {
	s := ChannelSnapshot{
		Label:           c.label,
		Value:           summarize(c.Value()),
		Hint:            hint.Name(c.hint),
		Connected:       c.Connected(),
		Ready:           c.Ready(),
		StoragePriority: c.priority,
	}
	if c.source != nil {
		s.Connections = []string{c.source.FullLabel()}
	}
	return s
}

// OutputData is an output data channel. It fans out to any number of inputs.
type OutputData struct {
	channelBase
	hint    hint.Hint
	strict  bool
	value   Data
	targets []*InputData

	// mirror is the child output a composite output reads through to.
	mirror *OutputData
}

// NewOutputData returns a detached output channel.
func NewOutputData(label string, h hint.Hint) *OutputData {
	return &OutputData{
		channelBase: channelBase{label: label},
		hint:        h,
		strict:      true,
	}
}

// Hint returns the channel's type hint.
func (c *OutputData) Hint() hint.Hint { return c.hint }

// Targets returns the connected downstream inputs.
func (c *OutputData) Targets() []*InputData { return slices.Clone(c.targets) }

// Connected reports whether any downstream input is connected.
func (c *OutputData) Connected() bool { return len(c.targets) > 0 }

// Value returns the current value.
func (c *OutputData) Value() Data {
	if c.mirror != nil {
		return c.mirror.Value()
	}
	return c.value
}

// SetValue assigns a value subject to the hint.
func (c *OutputData) SetValue(v any) error {
	if err := c.check(v); err != nil {
		return err
	}
	c.value = Some(v)
	return nil
}

func (c *OutputData) check(v any) error {
	if c.strict && !hint.Check(c.hint, v) {
		return &ConnectionTypeError{
			Channel: c.FullLabel(),
			Op:      "assign",
			Hint:    hint.Name(c.hint),
			Got:     fmt.Sprintf("%T", v),
		}
	}
	return nil
}

// Connect connects c to each target input.
func (c *OutputData) Connect(targets ...*InputData) error {
	for _, t := range targets {
		if err := t.Connect(c); err != nil {
			return err
		}
	}
	return nil
}

// DisconnectAll detaches every downstream input.
func (c *OutputData) DisconnectAll() {
	for _, t := range slices.Clone(c.targets) {
		t.DisconnectAll()
	}
}

// Snapshot implements Channel.
func (c *OutputData) Snapshot() ChannelSnapshot {
	s := ChannelSnapshot{
		Label:           c.label,
		Value:           summarize(c.Value()),
		Hint:            hint.Name(c.hint),
		Connected:       c.Connected(),
		Ready:           !c.Value().IsEmpty(),
		StoragePriority: c.priority,
	}
	for _, t := range c.targets {
		s.Connections = append(s.Connections, t.FullLabel())
	}
	return s
}

const summaryLimit = 80

func summarize(d Data) string {
	s := d.String()
	if len(s) > summaryLimit {
		cut := summaryLimit - 3
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		return s[:cut] + "..."
	}
	return s
}
