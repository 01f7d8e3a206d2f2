package portgraph

import (
	"errors"
	"fmt"
	"slices"
)

// ReservedLabels are construction keywords that may not be used as input
// labels.
var ReservedLabels = []string{
	"label",
	"parent",
	"executor",
	"run_after_init",
	"storage_backend",
	"save_after_run",
	"strict_hints",
}

// Factory builds nodes of one type. *Descriptor and *MacroDefinition are
// factories; node packages register them by name.
type Factory interface {
	// Name returns the type name, used as the default node label.
	Name() string

	// Instantiate builds a new node.
	Instantiate(opts ...Option) (*Node, error)
}

// Descriptor is a data-only node type: its ports and computation. Build one
// with Define, DefineWithSelf or FromFunc, then call New for instances.
type Descriptor struct {
	name      string
	inputs    []Port
	outputs   []Port
	fn        Callable
	selfFn    SelfCallable
	bindsSelf bool
}

// Define builds a descriptor from explicit ports and a computation.
//
// Example:
//
//	adder, err := portgraph.Define("adder",
//	    []portgraph.Port{{Label: "x", Hint: hint.Of[int]()}, {Label: "y", Hint: hint.Of[int]()}},
//	    []portgraph.Port{{Label: "sum", Hint: hint.Of[int]()}},
//	    func(ctx context.Context, kw portgraph.Kwargs) (any, error) {
//	        return kw["x"].(int) + kw["y"].(int), nil
//	    })
func Define(name string, inputs, outputs []Port, fn Callable) (*Descriptor, error) {
	if fn == nil {
		return nil, &DefinitionError{Name: name, Err: ErrNotCallable}
	}
	d := &Descriptor{name: name, inputs: slices.Clone(inputs), outputs: slices.Clone(outputs), fn: fn}
	if err := d.validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// DefineWithSelf is Define for computations that receive their node. Such
// nodes cannot run on an executor.
func DefineWithSelf(name string, inputs, outputs []Port, fn SelfCallable) (*Descriptor, error) {
	if fn == nil {
		return nil, &DefinitionError{Name: name, Err: ErrNotCallable}
	}
	d := &Descriptor{
		name:      name,
		inputs:    slices.Clone(inputs),
		outputs:   slices.Clone(outputs),
		selfFn:    fn,
		bindsSelf: true,
	}
	if err := d.validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// MustDefine is Define that panics on error.
func MustDefine(name string, inputs, outputs []Port, fn Callable) *Descriptor {
	d, err := Define(name, inputs, outputs, fn)
	if err != nil {
		panic(err)
	}
	return d
}

func (d *Descriptor) validate() error {
	var errs []error
	if err := validateLabel(d.name); err != nil {
		errs = append(errs, fmt.Errorf("name: %w", err))
	}
	errs = append(errs, validatePorts("input", d.inputs, true)...)
	errs = append(errs, validatePorts("output", d.outputs, false)...)
	for _, p := range d.inputs {
		if v, ok := p.Default.Get(); ok && p.Hint != nil && !p.Hint.Accepts(v) {
			errs = append(errs, fmt.Errorf("%w: input %q: %T does not satisfy %s", ErrInvalidDefault, p.Label, v, p.Hint))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return &DefinitionError{Name: d.name, Err: err}
	}
	return nil
}

func validatePorts(kind string, ports []Port, checkReserved bool) []error {
	var errs []error
	seen := make(map[string]bool, len(ports))
	for _, p := range ports {
		if p.Label == "" {
			errs = append(errs, fmt.Errorf("%w: empty %s label", ErrInvalidLabel, kind))
			continue
		}
		if seen[p.Label] {
			errs = append(errs, fmt.Errorf("%w: %s %q", ErrDuplicateLabel, kind, p.Label))
		}
		seen[p.Label] = true
		if checkReserved && slices.Contains(ReservedLabels, p.Label) {
			errs = append(errs, fmt.Errorf("%w: %s %q", ErrReservedLabel, kind, p.Label))
		}
	}
	return errs
}

// Name implements Factory.
func (d *Descriptor) Name() string { return d.name }

// BindsSelf reports whether the computation receives its node.
func (d *Descriptor) BindsSelf() bool { return d.bindsSelf }

// PreviewInputs returns the input ports instances will have.
func (d *Descriptor) PreviewInputs() []Port { return slices.Clone(d.inputs) }

// PreviewOutputs returns the output ports instances will have.
func (d *Descriptor) PreviewOutputs() []Port { return slices.Clone(d.outputs) }

// New builds a node of this type.
func (d *Descriptor) New(opts ...Option) (*Node, error) {
	n, err := newNode(d.name, d.inputs, d.outputs, opts)
	if err != nil {
		return nil, err
	}
	n.fn = d.fn
	n.selfFn = d.selfFn
	n.bindsSelf = d.bindsSelf
	if err := n.initialize(); err != nil {
		return nil, err
	}
	return n, nil
}

// MustNew is New that panics on error.
func (d *Descriptor) MustNew(opts ...Option) *Node {
	n, err := d.New(opts...)
	if err != nil {
		panic(err)
	}
	return n
}

// Instantiate implements Factory.
func (d *Descriptor) Instantiate(opts ...Option) (*Node, error) {
	return d.New(opts...)
}
