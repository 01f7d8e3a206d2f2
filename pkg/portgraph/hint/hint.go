// Package hint describes the type constraints carried by portgraph channels.
//
// A nil Hint means "unconstrained": it accepts every value and is compatible
// with every other hint. Concrete hints are built with Of, Type, Union,
// SliceOf and Literal.
package hint

import (
	"fmt"
	"reflect"
	"strings"
)

// Hint is a type constraint on channel values.
type Hint interface {
	// Accepts reports whether v satisfies the hint.
	Accepts(v any) bool

	// String returns a human readable form used in snapshots and errors.
	String() string
}

var anyType = reflect.TypeFor[any]()

// nominal constrains values to those assignable to a Go type.
type nominal struct {
	t reflect.Type
}

// Of returns the nominal hint for T. Of[any] is unconstrained and returns nil.
func Of[T any]() Hint {
	return Type(reflect.TypeFor[T]())
}

// Type returns the nominal hint for t. A nil type or the empty interface
// returns nil.
func Type(t reflect.Type) Hint {
	if t == nil || t == anyType {
		return nil
	}
	return nominal{t: t}
}

func (h nominal) Accepts(v any) bool {
	if v == nil {
		return nilable(h.t.Kind())
	}
	return reflect.TypeOf(v).AssignableTo(h.t)
}

func (h nominal) String() string {
	return h.t.String()
}

// union accepts values accepted by any member.
type union struct {
	members []Hint
}

// Union returns a hint accepting anything one of hs accepts. If any member is
// unconstrained the union is unconstrained. Nested unions are flattened.
func Union(hs ...Hint) Hint {
	members := make([]Hint, 0, len(hs))
	for _, h := range hs {
		if h == nil {
			return nil
		}
		if u, ok := h.(union); ok {
			members = append(members, u.members...)
			continue
		}
		members = append(members, h)
	}
	if len(members) == 1 {
		return members[0]
	}
	return union{members: members}
}

func (h union) Accepts(v any) bool {
	for _, m := range h.members {
		if m.Accepts(v) {
			return true
		}
	}
	return false
}

func (h union) String() string {
	parts := make([]string, len(h.members))
	for i, m := range h.members {
		parts[i] = m.String()
	}
	return strings.Join(parts, " | ")
}

// sliceOf accepts slices and arrays whose every element satisfies elem.
type sliceOf struct {
	elem Hint
}

// SliceOf returns a container hint. A nil elem accepts any slice or array.
func SliceOf(elem Hint) Hint {
	return sliceOf{elem: elem}
}

func (h sliceOf) Accepts(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return false
	}
	if h.elem == nil {
		return true
	}
	for i := 0; i < rv.Len(); i++ {
		if !h.elem.Accepts(rv.Index(i).Interface()) {
			return false
		}
	}
	return true
}

func (h sliceOf) String() string {
	if h.elem == nil {
		return "[]any"
	}
	return "[]" + h.elem.String()
}

// literal accepts only the listed values.
type literal struct {
	values []any
}

// Literal returns a hint accepting only values deeply equal to one of values.
func Literal(values ...any) Hint {
	return literal{values: values}
}

func (h literal) Accepts(v any) bool {
	for _, allowed := range h.values {
		if reflect.DeepEqual(allowed, v) {
			return true
		}
	}
	return false
}

func (h literal) String() string {
	parts := make([]string, len(h.values))
	for i, v := range h.values {
		parts[i] = fmt.Sprintf("%#v", v)
	}
	return "Literal[" + strings.Join(parts, ", ") + "]"
}

// Name returns h.String(), or "any" for an unconstrained hint.
func Name(h Hint) string {
	if h == nil {
		return "any"
	}
	return h.String()
}

// Check reports whether v satisfies h, treating a nil hint as unconstrained.
func Check(h Hint, v any) bool {
	return h == nil || h.Accepts(v)
}

// Within reports whether every value admitted by src is also admitted by dst,
// which is the condition for connecting a src-hinted output to a dst-hinted
// input. An unconstrained hint on either side is always compatible.
func Within(src, dst Hint) bool {
	if src == nil || dst == nil {
		return true
	}
	if u, ok := src.(union); ok {
		for _, m := range u.members {
			if !Within(m, dst) {
				return false
			}
		}
		return true
	}
	if u, ok := dst.(union); ok {
		for _, m := range u.members {
			if Within(src, m) {
				return true
			}
		}
		return false
	}

	switch s := src.(type) {
	case literal:
		for _, v := range s.values {
			if !dst.Accepts(v) {
				return false
			}
		}
		return true
	case nominal:
		switch d := dst.(type) {
		case nominal:
			return s.t.AssignableTo(d.t)
		case sliceOf:
			k := s.t.Kind()
			if k != reflect.Slice && k != reflect.Array {
				return false
			}
			return Within(Type(s.t.Elem()), d.elem)
		}
	case sliceOf:
		switch d := dst.(type) {
		case sliceOf:
			return Within(s.elem, d.elem)
		case nominal:
			// Only an unconstrained element type can be guaranteed to fit.
			return s.elem == nil && d.t.Kind() == reflect.Slice && d.t.Elem() == anyType
		}
	}
	return false
}

func nilable(k reflect.Kind) bool {
	switch k {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Chan, reflect.Func:
		return true
	}
	return false
}
