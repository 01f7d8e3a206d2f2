package portgraph

import (
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// IO is an ordered, label-keyed collection of same-kind channels owned by one
// node. Iteration order is insertion order.
type IO[C port] struct {
	owner    *Node
	channels *orderedmap.OrderedMap[string, C]
}

func newIO[C port](owner *Node) IO[C] {
	return IO[C]{owner: owner, channels: orderedmap.New[string, C]()}
}

// Get returns the channel under label.
func (io *IO[C]) Get(label string) (C, bool) {
	return io.channels.Get(label)
}

// MustGet returns the channel under label, panicking if absent.
func (io *IO[C]) MustGet(label string) C {
	c, ok := io.channels.Get(label)
	if !ok {
		panic(fmt.Sprintf("portgraph: no channel %q on %s", label, io.ownerLabel()))
	}
	return c
}

// Labels returns the channel labels in order.
func (io *IO[C]) Labels() []string {
	labels := make([]string, 0, io.channels.Len())
	for pair := io.channels.Oldest(); pair != nil; pair = pair.Next() {
		labels = append(labels, pair.Key)
	}
	return labels
}

// All returns the channels in order.
func (io *IO[C]) All() []C {
	out := make([]C, 0, io.channels.Len())
	for pair := io.channels.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Len returns the number of channels.
func (io *IO[C]) Len() int {
	return io.channels.Len()
}

// Connected reports whether any channel is connected.
func (io *IO[C]) Connected() bool {
	for pair := io.channels.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.Connected() {
			return true
		}
	}
	return false
}

// FullyConnected reports whether every channel is connected. An empty
// container is not fully connected.
func (io *IO[C]) FullyConnected() bool {
	if io.channels.Len() == 0 {
		return false
	}
	for pair := io.channels.Oldest(); pair != nil; pair = pair.Next() {
		if !pair.Value.Connected() {
			return false
		}
	}
	return true
}

// DisconnectAll disconnects every channel.
func (io *IO[C]) DisconnectAll() {
	for pair := io.channels.Oldest(); pair != nil; pair = pair.Next() {
		pair.Value.DisconnectAll()
	}
}

// SetStoragePriority tags every channel with p.
func (io *IO[C]) SetStoragePriority(p int) {
	for pair := io.channels.Oldest(); pair != nil; pair = pair.Next() {
		pair.Value.SetStoragePriority(p)
	}
}

// Add inserts a detached channel and attaches it to the owner.
func (io *IO[C]) Add(c C) error {
	label := c.Label()
	if label == "" {
		return fmt.Errorf("%w: empty channel label", ErrInvalidLabel)
	}
	if _, exists := io.channels.Get(label); exists {
		return fmt.Errorf("%w: %s", ErrDuplicateLabel, label)
	}
	if a, ok := any(c).(attacher); ok {
		a.attach(io.owner)
	}
	io.channels.Set(label, c)
	return nil
}

// insert adds value under label when value is a channel of this container's
// kind. It reports whether value was a channel at all.
func (io *IO[C]) insert(label string, value any) (bool, error) {
	c, ok := value.(C)
	if !ok {
		return false, nil
	}
	if c.Label() != label {
		return true, fmt.Errorf("%w: %q under %q", ErrLabelMismatch, c.Label(), label)
	}
	return true, io.Add(c)
}

func (io *IO[C]) snapshot() *orderedmap.OrderedMap[string, ChannelSnapshot] {
	out := orderedmap.New[string, ChannelSnapshot]()
	for pair := io.channels.Oldest(); pair != nil; pair = pair.Next() {
		out.Set(pair.Key, pair.Value.Snapshot())
	}
	return out
}

func (io *IO[C]) ownerLabel() string {
	if io.owner == nil {
		return "<detached>"
	}
	return io.owner.Label()
}

// Inputs holds a node's input data channels.
type Inputs struct {
	IO[*InputData]
}

// Set assigns value to the channel under label. If value is an output
// channel the input is connected to it, otherwise value is assigned as a
// literal. When no channel exists, an *InputData whose own label is label is
// inserted; anything else fails with ErrUnknownChannel.
func (in *Inputs) Set(label string, value any) error {
	if c, ok := in.Get(label); ok {
		if src, isChannel := value.(Channel); isChannel {
			return in.connect(c, src)
		}
		return c.SetValue(value)
	}
	if handled, err := in.insert(label, value); handled {
		return err
	}
	return fmt.Errorf("%w: %s has no input %q", ErrUnknownChannel, in.ownerLabel(), label)
}

// SetLiteral assigns a literal value to an existing input.
func (in *Inputs) SetLiteral(label string, value any) error {
	c, ok := in.Get(label)
	if !ok {
		return fmt.Errorf("%w: %s has no input %q", ErrUnknownChannel, in.ownerLabel(), label)
	}
	return c.SetValue(value)
}

// Connect connects the input under label to source, which must be an
// *OutputData.
func (in *Inputs) Connect(label string, source Channel) error {
	c, ok := in.Get(label)
	if !ok {
		return fmt.Errorf("%w: %s has no input %q", ErrUnknownChannel, in.ownerLabel(), label)
	}
	return in.connect(c, source)
}

func (in *Inputs) connect(c *InputData, source Channel) error {
	src, ok := source.(*OutputData)
	if !ok {
		return &ConnectionError{Channel: c.FullLabel(), Err: ErrNotOutputChannel}
	}
	return c.Connect(src)
}

// Value returns the current value of the input under label.
func (in *Inputs) Value(label string) Data {
	if c, ok := in.Get(label); ok {
		return c.Value()
	}
	return NotData
}

// Ready reports whether every input holds a hint-valid value.
func (in *Inputs) Ready() bool {
	for _, c := range in.All() {
		if !c.Ready() {
			return false
		}
	}
	return true
}

// ToValueDict snapshots label to current value in channel order.
func (in *Inputs) ToValueDict() *orderedmap.OrderedMap[string, Data] {
	out := orderedmap.New[string, Data]()
	for _, c := range in.All() {
		out.Set(c.Label(), c.Value())
	}
	return out
}

func (in *Inputs) kwargs() Kwargs {
	kw := make(Kwargs, in.Len())
	for _, c := range in.All() {
		kw[c.Label()] = c.Value().Value()
	}
	return kw
}

// Outputs holds a node's output data channels.
type Outputs struct {
	IO[*OutputData]
}

// Set connects the output under label to value when value is an input
// channel, otherwise assigns value to it. Missing labels behave as for
// Inputs.Set.
func (out *Outputs) Set(label string, value any) error {
	if c, ok := out.Get(label); ok {
		if target, isChannel := value.(Channel); isChannel {
			in, ok := target.(*InputData)
			if !ok {
				return &ConnectionError{Channel: c.FullLabel(), Err: fmt.Errorf("%T is not an input channel", target)}
			}
			return in.Connect(c)
		}
		return c.SetValue(value)
	}
	if handled, err := out.insert(label, value); handled {
		return err
	}
	return fmt.Errorf("%w: %s has no output %q", ErrUnknownChannel, out.ownerLabel(), label)
}

// Value returns the current value of the output under label.
func (out *Outputs) Value(label string) Data {
	if c, ok := out.Get(label); ok {
		return c.Value()
	}
	return NotData
}

// ToValueDict snapshots label to current value in channel order.
func (out *Outputs) ToValueDict() *orderedmap.OrderedMap[string, Data] {
	m := orderedmap.New[string, Data]()
	for _, c := range out.All() {
		m.Set(c.Label(), c.Value())
	}
	return m
}

// InputSignals holds a node's input control channels.
type InputSignals struct {
	IO[*InputSignal]
}

// Set connects the input signal under label to an *OutputSignal, or inserts
// a new *InputSignal under its own label.
func (s *InputSignals) Set(label string, value any) error {
	if c, ok := s.Get(label); ok {
		src, ok := value.(*OutputSignal)
		if !ok {
			return &ConnectionError{Channel: c.FullLabel(), Err: fmt.Errorf("%T is not an output signal", value)}
		}
		c.Connect(src)
		return nil
	}
	if handled, err := s.insert(label, value); handled {
		return err
	}
	return fmt.Errorf("%w: %s has no input signal %q", ErrUnknownChannel, s.ownerLabel(), label)
}

// Run returns the node's run signal.
func (s *InputSignals) Run() *InputSignal {
	return s.MustGet(RunSignal)
}

// OutputSignals holds a node's output control channels.
type OutputSignals struct {
	IO[*OutputSignal]
}

// Set connects the output signal under label to an *InputSignal, or inserts
// a new *OutputSignal under its own label.
func (s *OutputSignals) Set(label string, value any) error {
	if c, ok := s.Get(label); ok {
		target, ok := value.(*InputSignal)
		if !ok {
			return &ConnectionError{Channel: c.FullLabel(), Err: fmt.Errorf("%T is not an input signal", value)}
		}
		c.Connect(target)
		return nil
	}
	if handled, err := s.insert(label, value); handled {
		return err
	}
	return fmt.Errorf("%w: %s has no output signal %q", ErrUnknownChannel, s.ownerLabel(), label)
}

// Ran returns the node's ran signal.
func (s *OutputSignals) Ran() *OutputSignal {
	return s.MustGet(RanSignal)
}

// Signals groups a node's input and output control channels.
type Signals struct {
	Input  *InputSignals
	Output *OutputSignals
}

// Connected reports whether any signal is connected.
func (s *Signals) Connected() bool {
	return s.Input.Connected() || s.Output.Connected()
}

// FullyConnected reports whether every signal is connected.
func (s *Signals) FullyConnected() bool {
	return s.Input.FullyConnected() && s.Output.FullyConnected()
}

// DisconnectAll disconnects every signal.
func (s *Signals) DisconnectAll() {
	s.Input.DisconnectAll()
	s.Output.DisconnectAll()
}
