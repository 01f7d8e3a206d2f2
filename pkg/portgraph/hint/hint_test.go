package hint_test

import (
	"errors"
	"testing"

	"github.com/randalmurphal/portgraph/pkg/portgraph/hint"
	"github.com/stretchr/testify/assert"
)

func TestAccepts(t *testing.T) {
	tests := []struct {
		name string
		h    hint.Hint
		v    any
		want bool
	}{
		{"int accepts int", hint.Of[int](), 3, true},
		{"int rejects string", hint.Of[int](), "3", false},
		{"int rejects float", hint.Of[int](), 3.0, false},
		{"int rejects nil", hint.Of[int](), nil, false},
		{"pointer accepts nil", hint.Of[*int](), nil, true},
		{"error interface accepts error", hint.Of[error](), errors.New("x"), true},
		{"union accepts member", hint.Union(hint.Of[int](), hint.Of[string]()), "a", true},
		{"union rejects non member", hint.Union(hint.Of[int](), hint.Of[string]()), 1.5, false},
		{"slice of int", hint.SliceOf(hint.Of[int]()), []int{1, 2}, true},
		{"slice of any values", hint.SliceOf(hint.Of[int]()), []any{1, 2}, true},
		{"slice with bad element", hint.SliceOf(hint.Of[int]()), []any{1, "2"}, false},
		{"slice of union", hint.SliceOf(hint.Union(hint.Of[int](), hint.Of[string]())), []any{1, "2"}, true},
		{"slice rejects scalar", hint.SliceOf(nil), 1, false},
		{"literal hit", hint.Literal("a", "b"), "b", true},
		{"literal miss", hint.Literal("a", "b"), "c", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.h.Accepts(tt.v))
		})
	}
}

func TestUnconstrained(t *testing.T) {
	assert.Nil(t, hint.Of[any]())
	assert.Nil(t, hint.Union(hint.Of[int](), nil))
	assert.True(t, hint.Check(nil, struct{}{}))
	assert.Equal(t, "any", hint.Name(nil))
}

func TestUnionFlattens(t *testing.T) {
	u := hint.Union(hint.Of[int](), hint.Union(hint.Of[string](), hint.Of[bool]()))
	assert.Equal(t, "int | string | bool", u.String())
	assert.Equal(t, "int", hint.Union(hint.Of[int]()).String())
}

func TestWithin(t *testing.T) {
	intH := hint.Of[int]()
	strH := hint.Of[string]()
	tests := []struct {
		name     string
		src, dst hint.Hint
		want     bool
	}{
		{"nil src", nil, intH, true},
		{"nil dst", intH, nil, true},
		{"same type", intH, intH, true},
		{"different type", intH, strH, false},
		{"concrete into interface", hint.Of[*errString](), hint.Of[error](), true},
		{"member into union", intH, hint.Union(intH, strH), true},
		{"union into member", hint.Union(intH, strH), intH, false},
		{"union into wider union", hint.Union(intH, strH), hint.Union(strH, intH, hint.Of[bool]()), true},
		{"slice type into container of union", hint.Of[[]int](), hint.SliceOf(hint.Union(intH, strH)), true},
		{"slice type into wrong container", hint.Of[[]float64](), hint.SliceOf(intH), false},
		{"container into container", hint.SliceOf(intH), hint.SliceOf(hint.Union(intH, strH)), true},
		{"literal into type", hint.Literal(1, 2), intH, true},
		{"literal into wrong type", hint.Literal(1, "2"), intH, false},
		{"type into literal", intH, hint.Literal(1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hint.Within(tt.src, tt.dst))
		})
	}
}

type errString struct{ s string }

func (e *errString) Error() string { return e.s }
