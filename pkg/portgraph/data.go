package portgraph

import (
	"context"
	"encoding/json"
	"fmt"
)

// Data is an optional channel value. The zero value is NotData, which means
// "no value yet" and is distinct from Some(nil).
type Data struct {
	v  any
	ok bool
}

// NotData is the empty Data.
var NotData = Data{}

// Some wraps v as present data. Some(nil) is a legitimate nil value.
func Some(v any) Data {
	return Data{v: v, ok: true}
}

// Get returns the wrapped value and whether one is present.
func (d Data) Get() (any, bool) {
	return d.v, d.ok
}

// Value returns the wrapped value, or nil when empty.
func (d Data) Value() any {
	return d.v
}

// IsEmpty reports whether d is NotData.
func (d Data) IsEmpty() bool {
	return !d.ok
}

func (d Data) String() string {
	if !d.ok {
		return "NOT_DATA"
	}
	return fmt.Sprintf("%v", d.v)
}

// MarshalJSON encodes present data as its value and NotData as the string
// "NOT_DATA".
func (d Data) MarshalJSON() ([]byte, error) {
	if !d.ok {
		return json.Marshal("NOT_DATA")
	}
	return json.Marshal(d.v)
}

// Tuple is an ordered multi-value result. A node with more than one output
// channel expects its computation to return a Tuple of matching length.
type Tuple []any

// Kwargs maps input labels to values handed to a computation.
type Kwargs map[string]any

// Callable is a node computation.
type Callable func(ctx context.Context, kw Kwargs) (any, error)

// SelfCallable is a node computation that also receives the node running it.
type SelfCallable func(ctx context.Context, n *Node, kw Kwargs) (any, error)
