package portgraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"runtime"
	"strings"
	"unicode"

	"github.com/randalmurphal/portgraph/pkg/portgraph/hint"
	"github.com/randalmurphal/portgraph/pkg/portgraph/internal/scrape"
	"gopkg.in/yaml.v3"
)

var (
	contextType = reflect.TypeFor[context.Context]()
	nodePtrType = reflect.TypeFor[*Node]()
	errorType   = reflect.TypeFor[error]()
)

type funcConfig struct {
	name         string
	inputLabels  []string
	outputLabels []string
	defaults     map[string]any
}

// FuncOption configures FromFunc.
type FuncOption func(*funcConfig)

// WithName sets the type name. Default: the function's symbol name.
func WithName(name string) FuncOption {
	return func(c *funcConfig) {
		c.name = name
	}
}

// WithInputLabels names the function's parameters, in order, excluding a
// leading context.Context and a bound *Node. Required when the source is not
// available.
func WithInputLabels(labels ...string) FuncOption {
	return func(c *funcConfig) {
		c.inputLabels = labels
	}
}

// WithOutputLabels names the output channels. Without it labels are scraped
// from the function's single return statement.
func WithOutputLabels(labels ...string) FuncOption {
	return func(c *funcConfig) {
		c.outputLabels = labels
	}
}

// WithDefaults sets input defaults by label. Numeric values are converted to
// the parameter type when possible.
func WithDefaults(defaults map[string]any) FuncOption {
	return func(c *funcConfig) {
		c.defaults = defaults
	}
}

// FromFunc builds a descriptor by introspecting fn, which must have the form
//
//	func([context.Context], [*Node], params...) (results..., [error])
//
// A leading context.Context receives the run context. A *Node directly after
// it binds the running node and is not an input; a *Node anywhere else is an
// ordinary input and a warning is logged. A trailing error result is the
// computation's error.
//
// Inputs come from the parameters. A single struct parameter contributes one
// input per exported field, labelled by its `port` tag or the snake_case
// field name, with defaults from a `default` tag decoded as YAML. Otherwise
// each parameter is an input labelled by WithInputLabels or, when the source
// is available, by its name.
//
// Outputs are labelled by WithOutputLabels or, failing that, scraped from the
// single return statement (a naked return uses the named results). With one
// label and several results, the output is a single Tuple channel. Otherwise
// the label count must match the result count.
//
//	shift := portgraph.MustFromFunc(func(x, y int) (int, int) {
//	    return x + 1, y - 1
//	})
//	// inputs x, y; outputs "x+1", "y-1"
func FromFunc(fn any, opts ...FuncOption) (*Descriptor, error) {
	cfg := funcConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return nil, &DefinitionError{Name: cfg.name, Err: ErrNotCallable}
	}
	t := v.Type()
	if cfg.name == "" {
		cfg.name = funcName(v)
	}
	if t.IsVariadic() {
		return nil, &DefinitionError{Name: cfg.name, Err: fmt.Errorf("%w: variadic", ErrInvalidSignature)}
	}

	// Source is optional; without it explicit labels are required.
	src, srcErr := scrape.Inspect(fn)

	sig := &funcSignature{fn: v}
	idx := 0
	if idx < t.NumIn() && t.In(idx) == contextType {
		sig.hasContext = true
		idx++
	}
	if idx < t.NumIn() && t.In(idx) == nodePtrType {
		sig.bindsSelf = true
		idx++
	}
	params := make([]reflect.Type, 0, t.NumIn()-idx)
	for i := idx; i < t.NumIn(); i++ {
		params = append(params, t.In(i))
	}

	var paramNames []string
	if src != nil && len(src.Params) == t.NumIn() {
		paramNames = src.Params[idx:]
	}

	inputs, err := sig.buildInputs(cfg, params, paramNames)
	if err != nil {
		return nil, &DefinitionError{Name: cfg.name, Err: err}
	}

	results := make([]reflect.Type, 0, t.NumOut())
	for i := 0; i < t.NumOut(); i++ {
		results = append(results, t.Out(i))
	}
	if n := len(results); n > 0 && results[n-1] == errorType {
		sig.hasError = true
		results = results[:n-1]
	}
	sig.results = len(results)

	outputs, err := buildOutputs(cfg, results, src, srcErr, sig.hasError)
	if err != nil {
		return nil, &DefinitionError{Name: cfg.name, Err: err}
	}

	d := &Descriptor{
		name:      cfg.name,
		inputs:    inputs,
		outputs:   outputs,
		bindsSelf: sig.bindsSelf,
	}
	if sig.bindsSelf {
		d.selfFn = sig.callSelf
	} else {
		d.fn = sig.call
	}
	if err := d.validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// MustFromFunc is FromFunc that panics on error.
func MustFromFunc(fn any, opts ...FuncOption) *Descriptor {
	d, err := FromFunc(fn, opts...)
	if err != nil {
		panic(err)
	}
	return d
}

// funcSignature adapts a reflected function to Callable.
type funcSignature struct {
	fn         reflect.Value
	hasContext bool
	bindsSelf  bool
	hasError   bool
	results    int

	// positional mode
	params []reflect.Type
	labels []string

	// struct mode
	structType reflect.Type
	fields     []structField
}

type structField struct {
	index int
	label string
}

func (s *funcSignature) buildInputs(cfg funcConfig, params []reflect.Type, names []string) ([]Port, error) {
	if len(params) == 1 && params[0].Kind() == reflect.Struct && cfg.inputLabels == nil {
		return s.buildStructInputs(params[0], cfg.defaults)
	}

	labels := cfg.inputLabels
	if labels == nil {
		labels = names
	}
	if len(labels) != len(params) {
		return nil, fmt.Errorf("%w: %d parameters but %d input labels", ErrInvalidSignature, len(params), len(labels))
	}

	s.params = params
	s.labels = labels
	ports := make([]Port, len(params))
	for i, pt := range params {
		if labels[i] == "" || labels[i] == "_" {
			return nil, fmt.Errorf("%w: parameter %d is unnamed; supply input labels", ErrInvalidSignature, i)
		}
		if pt == nodePtrType {
			slog.Warn("*Node parameter is not in the first position and is treated as an ordinary input",
				slog.String("input", labels[i]))
		}
		ports[i] = Port{Label: labels[i], Hint: hint.Type(pt)}
		if dv, ok := cfg.defaults[labels[i]]; ok {
			converted, err := coerce(dv, pt)
			if err != nil {
				return nil, fmt.Errorf("%w: input %q: %v", ErrInvalidDefault, labels[i], err)
			}
			ports[i].Default = Some(converted)
		}
	}
	return ports, nil
}

func (s *funcSignature) buildStructInputs(st reflect.Type, defaults map[string]any) ([]Port, error) {
	s.structType = st
	var ports []Port
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		if !f.IsExported() {
			continue
		}
		label := f.Tag.Get("port")
		if label == "-" {
			continue
		}
		if label == "" {
			label = snakeCase(f.Name)
		}
		p := Port{Label: label, Hint: hint.Type(f.Type)}
		if tag, ok := f.Tag.Lookup("default"); ok {
			ptr := reflect.New(f.Type)
			if err := yaml.Unmarshal([]byte(tag), ptr.Interface()); err != nil {
				return nil, fmt.Errorf("%w: field %s: %v", ErrInvalidDefault, f.Name, err)
			}
			p.Default = Some(ptr.Elem().Interface())
		}
		if dv, ok := defaults[label]; ok {
			converted, err := coerce(dv, f.Type)
			if err != nil {
				return nil, fmt.Errorf("%w: input %q: %v", ErrInvalidDefault, label, err)
			}
			p.Default = Some(converted)
		}
		s.fields = append(s.fields, structField{index: i, label: label})
		ports = append(ports, p)
	}
	return ports, nil
}

func buildOutputs(cfg funcConfig, results []reflect.Type, src *scrape.Func, srcErr error, hasError bool) ([]Port, error) {
	labels := cfg.outputLabels
	if labels == nil {
		scraped, err := scrapeOutputLabels(len(results), src, srcErr, hasError)
		if err != nil {
			return nil, err
		}
		labels = scraped
	}

	switch {
	case len(labels) == 0 && len(results) == 0:
		return nil, nil
	case len(labels) == 1 && len(results) > 1:
		return []Port{{Label: labels[0], Hint: hint.Of[Tuple]()}}, nil
	case len(labels) != len(results):
		return nil, fmt.Errorf("%w: %d labels for %d results", ErrLabelHintMismatch, len(labels), len(results))
	}
	ports := make([]Port, len(labels))
	for i, label := range labels {
		ports[i] = Port{Label: label, Hint: hint.Type(results[i])}
	}
	return ports, nil
}

func scrapeOutputLabels(results int, src *scrape.Func, srcErr error, hasError bool) ([]string, error) {
	if results == 0 {
		return nil, nil
	}
	if src == nil {
		return nil, fmt.Errorf("cannot scrape output labels: %w", srcErr)
	}
	if len(src.Returns) != 1 {
		return nil, ErrMultipleReturns
	}
	exprs := src.Returns[0]
	if len(exprs) == 0 {
		// Naked return.
		exprs = src.Results
	}
	if hasError && len(exprs) > 0 {
		exprs = exprs[:len(exprs)-1]
	}
	for _, e := range exprs {
		if e == "" || e == "_" {
			return nil, fmt.Errorf("%w: unnamed result", ErrLabelHintMismatch)
		}
	}
	return exprs, nil
}

func (s *funcSignature) call(ctx context.Context, kw Kwargs) (any, error) {
	return s.invoke(ctx, nil, kw)
}

func (s *funcSignature) callSelf(ctx context.Context, n *Node, kw Kwargs) (any, error) {
	return s.invoke(ctx, n, kw)
}

func (s *funcSignature) invoke(ctx context.Context, n *Node, kw Kwargs) (any, error) {
	args := make([]reflect.Value, 0, len(s.params)+2)
	if s.hasContext {
		args = append(args, reflect.ValueOf(&ctx).Elem())
	}
	if s.bindsSelf {
		args = append(args, reflect.ValueOf(n))
	}

	if s.structType != nil {
		sv := reflect.New(s.structType).Elem()
		for _, f := range s.fields {
			field := sv.Field(f.index)
			val, err := argValue(kw[f.label], field.Type())
			if err != nil {
				return nil, fmt.Errorf("input %s: %w", f.label, err)
			}
			field.Set(val)
		}
		args = append(args, sv)
	} else {
		for i, pt := range s.params {
			val, err := argValue(kw[s.labels[i]], pt)
			if err != nil {
				return nil, fmt.Errorf("input %s: %w", s.labels[i], err)
			}
			args = append(args, val)
		}
	}

	out := s.fn.Call(args)
	if s.hasError {
		last := out[len(out)-1]
		out = out[:len(out)-1]
		if !last.IsNil() {
			return nil, last.Interface().(error)
		}
	}
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return out[0].Interface(), nil
	}
	t := make(Tuple, len(out))
	for i, o := range out {
		t[i] = o.Interface()
	}
	return t, nil
}

func argValue(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}
	c, err := coerce(v, t)
	if err != nil {
		return reflect.Value{}, err
	}
	return reflect.ValueOf(c).Convert(t), nil
}

// coerce returns v as a value assignable to t, converting between numeric
// kinds.
func coerce(v any, t reflect.Type) (any, error) {
	if v == nil {
		switch t.Kind() {
		case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Chan, reflect.Func:
			return reflect.Zero(t).Interface(), nil
		}
		return nil, fmt.Errorf("nil is not a valid %s", t)
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return v, nil
	}
	if numeric(rv.Kind()) && numeric(t.Kind()) && rv.Type().ConvertibleTo(t) {
		return rv.Convert(t).Interface(), nil
	}
	return nil, errors.New(rv.Type().String() + " is not assignable to " + t.String())
}

func numeric(k reflect.Kind) bool {
	return (k >= reflect.Int && k <= reflect.Uint64) || k == reflect.Float32 || k == reflect.Float64
}

func funcName(v reflect.Value) string {
	name := "func"
	if rf := runtime.FuncForPC(v.Pointer()); rf != nil {
		name = rf.Name()
	}
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSuffix(name, "-fm")
	if name == "" || strings.HasPrefix(name, "func") {
		return "function"
	}
	return name
}

func snakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			prevLower := i > 0 && !unicode.IsUpper(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if i > 0 && (prevLower || (nextLower && unicode.IsUpper(runes[i-1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
