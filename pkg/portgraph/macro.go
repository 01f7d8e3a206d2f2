package portgraph

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/randalmurphal/portgraph/pkg/portgraph/hint"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ChannelDelimiter joins a child label and a port label in the default
// external labels of a composite, e.g. "adder__sum".
const ChannelDelimiter = "__"

// Macro is a composite node whose body is a subgraph of child nodes. It
// behaves externally as an ordinary *Node: its inputs forward writes to the
// mapped child inputs and its outputs read through to the mapped child
// outputs.
//
// Children are added, removed or replaced while the build callback runs;
// afterwards the macro is sealed and its child registry is immutable.
type Macro struct {
	*Node

	children *orderedmap.OrderedMap[string, *Node]
	starting []*Node
	sealed   bool
}

// MacroBuilder adds and wires the children of a macro.
type MacroBuilder func(m *Macro) error

// MacroDefinition is a reusable composite node type.
type MacroDefinition struct {
	name  string
	build MacroBuilder
	opts  []Option
}

// DefineMacro returns a composite type. opts apply to every instance before
// the instance's own options, which is where input and output maps usually
// go.
func DefineMacro(name string, build MacroBuilder, opts ...Option) (*MacroDefinition, error) {
	if err := validateLabel(name); err != nil {
		return nil, &DefinitionError{Name: name, Err: err}
	}
	if build == nil {
		return nil, &DefinitionError{Name: name, Err: ErrNotCallable}
	}
	return &MacroDefinition{name: name, build: build, opts: slices.Clone(opts)}, nil
}

// Name implements Factory.
func (d *MacroDefinition) Name() string { return d.name }

// New builds and seals a macro instance.
func (d *MacroDefinition) New(opts ...Option) (*Macro, error) {
	all := append(slices.Clone(d.opts), opts...)
	n, err := newNode(d.name, nil, nil, all)
	if err != nil {
		return nil, err
	}
	m := &Macro{Node: n, children: orderedmap.New[string, *Node]()}
	n.composite = m
	n.passthrough = true
	n.fn = m.body

	if err := d.build(m); err != nil {
		return nil, &DefinitionError{Name: n.label, Err: err}
	}
	if err := m.seal(); err != nil {
		return nil, &DefinitionError{Name: n.label, Err: err}
	}
	if err := n.initialize(); err != nil {
		return nil, err
	}
	return m, nil
}

// Instantiate implements Factory.
func (d *MacroDefinition) Instantiate(opts ...Option) (*Node, error) {
	m, err := d.New(opts...)
	if err != nil {
		return nil, err
	}
	return m.Node, nil
}

// NewMacro builds a one-off macro labelled label.
func NewMacro(label string, build MacroBuilder, opts ...Option) (*Macro, error) {
	d, err := DefineMacro(label, build)
	if err != nil {
		return nil, err
	}
	return d.New(opts...)
}

// Add registers n as a child. n must not already belong to a composite and
// its label must be unique among the children. Nodes built with
// WithParent(m) are added automatically.
func (m *Macro) Add(n *Node) error {
	if m.sealed {
		return fmt.Errorf("%w: cannot add %s to %s", ErrSealed, n.Label(), m.label)
	}
	if n.parent != nil {
		return fmt.Errorf("%w: %s belongs to %s", ErrAlreadyParented, n.Label(), n.parent.Label())
	}
	if n == m.Node {
		return fmt.Errorf("%w: %s cannot contain itself", ErrInvalidLabel, m.label)
	}
	if _, exists := m.children.Get(n.Label()); exists {
		return fmt.Errorf("%w: child %s of %s", ErrDuplicateLabel, n.Label(), m.label)
	}
	n.parent = m
	m.children.Set(n.Label(), n)
	return nil
}

// Connection is one link of a child: a channel of the child and the peer
// channel on the other end.
type Connection struct {
	Channel Channel
	Peer    Channel
}

// Remove detaches the child labelled label from m and from every peer and
// returns the links it severed. The child is dropped from the starting nodes
// and left without a parent. Like Add, it is only allowed while building.
func (m *Macro) Remove(label string) ([]Connection, error) {
	if m.sealed {
		return nil, fmt.Errorf("%w: cannot remove %s from %s", ErrSealed, label, m.label)
	}
	child, ok := m.children.Get(label)
	if !ok {
		return nil, fmt.Errorf("%w: %s in %s", ErrNotChild, label, m.label)
	}
	severed := m.sever(child)
	m.children.Delete(label)
	m.starting = slices.DeleteFunc(m.starting, func(n *Node) bool { return n == child })
	return severed, nil
}

// Replace swaps the child labelled label for replacement, which takes over
// the label, position, connections and starting slot of the old child. The
// old child ends disconnected and without a parent.
//
// Every channel the old child had connected must exist on replacement with a
// hint that can carry the link, otherwise nothing changes and
// ErrIncompatibleReplacement is returned. Extra channels on replacement are
// fine; unconnected ones are exposed when the macro seals.
func (m *Macro) Replace(label string, replacement *Node) error {
	if m.sealed {
		return fmt.Errorf("%w: cannot replace %s in %s", ErrSealed, label, m.label)
	}
	old, ok := m.children.Get(label)
	if !ok {
		return fmt.Errorf("%w: %s in %s", ErrNotChild, label, m.label)
	}
	switch {
	case replacement == old:
		return nil
	case replacement == m.Node:
		return fmt.Errorf("%w: %s cannot contain itself", ErrInvalidLabel, m.label)
	case replacement.parent != nil:
		return fmt.Errorf("%w: %s belongs to %s", ErrAlreadyParented, replacement.Label(), replacement.parent.Label())
	}
	links := connections(old)
	for _, link := range links {
		if err := canTakeOver(replacement, link); err != nil {
			return fmt.Errorf("%w: %s for %s: %w", ErrIncompatibleReplacement, replacement.Label(), old.SemanticPath(), err)
		}
	}

	m.sever(old)
	replacement.label = label
	replacement.parent = m
	m.children.Set(label, replacement)
	if i := slices.Index(m.starting, old); i >= 0 {
		m.starting[i] = replacement
	}
	for _, link := range links {
		if err := reconnect(old, replacement, link); err != nil {
			return err
		}
	}
	return nil
}

func (m *Macro) sever(child *Node) []Connection {
	links := connections(child)
	child.DisconnectAll()
	child.parent = nil
	return links
}

// connections lists the data links, then the signal links, of n.
func connections(n *Node) []Connection {
	var links []Connection
	for _, in := range n.Inputs().All() {
		if in.source != nil {
			links = append(links, Connection{Channel: in, Peer: in.source})
		}
	}
	for _, out := range n.Outputs().All() {
		for _, t := range out.targets {
			links = append(links, Connection{Channel: out, Peer: t})
		}
	}
	for _, in := range n.Signals().Input.All() {
		for _, src := range in.sources {
			links = append(links, Connection{Channel: in, Peer: src})
		}
	}
	for _, out := range n.Signals().Output.All() {
		for _, t := range out.targets {
			links = append(links, Connection{Channel: out, Peer: t})
		}
	}
	return links
}

func canTakeOver(n *Node, link Connection) error {
	switch c := link.Channel.(type) {
	case *InputData:
		in, ok := n.Inputs().Get(c.Label())
		if !ok {
			return fmt.Errorf("no input %q", c.Label())
		}
		if src := link.Peer.(*OutputData); in.strict && !hint.Within(src.hint, in.hint) {
			return fmt.Errorf("input %q is %s, source %s is %s", c.Label(), hint.Name(in.hint), src.FullLabel(), hint.Name(src.hint))
		}
	case *OutputData:
		out, ok := n.Outputs().Get(c.Label())
		if !ok {
			return fmt.Errorf("no output %q", c.Label())
		}
		if t := link.Peer.(*InputData); t.strict && !hint.Within(out.hint, t.hint) {
			return fmt.Errorf("output %q is %s, target %s is %s", c.Label(), hint.Name(out.hint), t.FullLabel(), hint.Name(t.hint))
		}
	case *InputSignal:
		if _, ok := n.Signals().Input.Get(c.Label()); !ok {
			return fmt.Errorf("no input signal %q", c.Label())
		}
	case *OutputSignal:
		if _, ok := n.Signals().Output.Get(c.Label()); !ok {
			return fmt.Errorf("no output signal %q", c.Label())
		}
	}
	return nil
}

// reconnect restores link with n standing in for old on both ends.
func reconnect(old, n *Node, link Connection) error {
	swap := func(c Channel) Channel {
		if c.Owner() != old {
			return c
		}
		switch c := c.(type) {
		case *InputData:
			return n.Inputs().MustGet(c.Label())
		case *OutputData:
			return n.Outputs().MustGet(c.Label())
		case *InputSignal:
			return n.Signals().Input.MustGet(c.Label())
		case *OutputSignal:
			return n.Signals().Output.MustGet(c.Label())
		}
		return c
	}
	ch, peer := swap(link.Channel), swap(link.Peer)
	switch c := ch.(type) {
	case *InputData:
		return c.Connect(peer.(*OutputData))
	case *OutputData:
		return peer.(*InputData).Connect(c)
	case *InputSignal:
		peer.(*OutputSignal).Connect(c)
	case *OutputSignal:
		c.Connect(peer.(*InputSignal))
	}
	return nil
}

// Child returns the child labelled label.
func (m *Macro) Child(label string) (*Node, bool) {
	return m.children.Get(label)
}

// Children returns the children in insertion order.
func (m *Macro) Children() []*Node {
	out := make([]*Node, 0, m.children.Len())
	for pair := m.children.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// StartingNodes returns the children run when the macro runs.
func (m *Macro) StartingNodes() []*Node {
	return slices.Clone(m.starting)
}

// SetStartingNodes fixes the children run first when the macro runs. It
// must be paired with explicit run-signal wiring among the children; with
// neither, the execution order is derived from data dependencies.
func (m *Macro) SetStartingNodes(nodes ...*Node) error {
	if m.sealed {
		return fmt.Errorf("%w: cannot set starting nodes of %s", ErrSealed, m.label)
	}
	for _, n := range nodes {
		if n.parent != m {
			return fmt.Errorf("%w: %s in %s", ErrNotChild, n.Label(), m.label)
		}
	}
	m.starting = slices.Clone(nodes)
	return nil
}

// seal configures execution and builds the external IO.
func (m *Macro) seal() error {
	if err := m.configureExecution(); err != nil {
		return err
	}
	if err := m.exposeInputs(); err != nil {
		return err
	}
	if err := m.exposeOutputs(); err != nil {
		return err
	}
	m.sealed = true
	return nil
}

func (m *Macro) configureExecution() error {
	children := m.Children()
	if len(children) == 0 {
		return nil
	}
	wired := slices.ContainsFunc(children, func(c *Node) bool {
		return c.Signals().Input.Run().Connected()
	})
	switch {
	case wired && len(m.starting) > 0:
		return nil
	case wired || len(m.starting) > 0:
		return fmt.Errorf("%w: %d starting nodes, run signals wired: %t", ErrPartialExecution, len(m.starting), wired)
	}

	order, err := topoSort(children)
	if err != nil {
		return err
	}
	for i := 1; i < len(order); i++ {
		order[i-1].Then(order[i])
	}
	m.starting = order[:1]
	return nil
}

func (m *Macro) exposeInputs() error {
	if m.cfg.inputsMap == nil {
		for _, child := range m.Children() {
			for _, in := range child.Inputs().All() {
				if in.Connected() {
					continue
				}
				if err := m.exposeInput(child.Label()+ChannelDelimiter+in.Label(), in); err != nil {
					return err
				}
			}
		}
		return nil
	}
	for _, external := range sortedKeys(m.cfg.inputsMap) {
		target := m.cfg.inputsMap[external]
		child, port, err := m.resolve(target)
		if err != nil {
			return err
		}
		in, ok := child.Inputs().Get(port)
		if !ok {
			return fmt.Errorf("%w: input map %s -> %s", ErrUnknownChannel, external, target)
		}
		if err := m.exposeInput(external, in); err != nil {
			return err
		}
	}
	return nil
}

func (m *Macro) exposeInput(label string, in *InputData) error {
	c := NewInputData(label, in.Hint(), NotData)
	c.strict = m.cfg.strictHints
	c.receiver = in
	return m.Inputs().Add(c)
}

func (m *Macro) exposeOutputs() error {
	if m.cfg.outputsMap == nil {
		for _, child := range m.Children() {
			for _, out := range child.Outputs().All() {
				if out.Connected() {
					continue
				}
				if err := m.exposeOutput(child.Label()+ChannelDelimiter+out.Label(), out); err != nil {
					return err
				}
			}
		}
		return nil
	}
	for _, external := range sortedKeys(m.cfg.outputsMap) {
		target := m.cfg.outputsMap[external]
		child, port, err := m.resolve(target)
		if err != nil {
			return err
		}
		out, ok := child.Outputs().Get(port)
		if !ok {
			return fmt.Errorf("%w: output map %s -> %s", ErrUnknownChannel, external, target)
		}
		if err := m.exposeOutput(external, out); err != nil {
			return err
		}
	}
	return nil
}

func (m *Macro) exposeOutput(label string, out *OutputData) error {
	c := NewOutputData(label, out.Hint())
	c.strict = m.cfg.strictHints
	c.mirror = out
	return m.Outputs().Add(c)
}

// resolve splits "<child>__<port>" against the registered children. When
// several child labels prefix target, the longest wins.
func (m *Macro) resolve(target string) (*Node, string, error) {
	var best *Node
	var bestPort string
	for _, child := range m.Children() {
		port, ok := strings.CutPrefix(target, child.Label()+ChannelDelimiter)
		if !ok || port == "" {
			continue
		}
		if best == nil || len(child.Label()) > len(best.Label()) {
			best, bestPort = child, port
		}
	}
	if best == nil {
		return nil, "", fmt.Errorf("%w: %q names no child channel of %s", ErrUnknownChannel, target, m.label)
	}
	return best, bestPort, nil
}

// body pushes upstream values into the children and runs the starting
// nodes. Outputs are read through, so there is no result to process.
//
// On an executor the body holds one worker while its children run. Children
// sharing that executor need a free worker of their own.
func (m *Macro) body(ctx context.Context, _ Kwargs) (any, error) {
	if err := m.pushInputs(); err != nil {
		return nil, err
	}
	for _, start := range m.starting {
		if err := start.Run(ctx); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

// pushInputs copies the values of connected external inputs onto the child
// inputs they forward to.
func (m *Macro) pushInputs() error {
	for _, in := range m.Inputs().All() {
		if in.Source() == nil || in.receiver == nil {
			continue
		}
		if v, ok := in.Value().Get(); ok {
			if err := in.receiver.SetValue(v); err != nil {
				return err
			}
		}
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
