package portgraph

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/randalmurphal/portgraph/pkg/portgraph/hint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// addThree builds a macro computing x + 1 + 2 through two chained adders.
func addThree(t *testing.T, opts ...Option) *Macro {
	t.Helper()
	adder := adderType(t)
	m, err := NewMacro("add_three", func(m *Macro) error {
		first, err := adder.New(WithLabel("first"), WithParent(m), WithInputs(Kw("y", 1)))
		if err != nil {
			return err
		}
		second, err := adder.New(WithLabel("second"), WithParent(m), WithInputs(Kw("y", 2)))
		if err != nil {
			return err
		}
		return second.Inputs().Connect("x", first.Outputs().MustGet("sum"))
	}, opts...)
	require.NoError(t, err)
	return m
}

func TestMacro_DefaultExposure(t *testing.T) {
	m := addThree(t)

	assert.Equal(t, []string{"first__x", "first__y", "second__y"}, m.Inputs().Labels())
	assert.Equal(t, []string{"second__sum"}, m.Outputs().Labels())
	assert.Equal(t, []string{"first", "second"}, childLabels(m))
	assert.Equal(t, "/add_three/first", m.Children()[0].SemanticPath())
	assert.Equal(t, m.GraphID(), m.Children()[1].GraphID())

	got, err := m.Execute(context.Background(), Kw("first__x", 4))
	require.NoError(t, err)
	assert.Equal(t, 7, got)
}

func TestMacro_Remapping(t *testing.T) {
	m := addThree(t,
		WithInputsMap(map[string]string{"x": "first__x"}),
		WithOutputsMap(map[string]string{"total": "second__sum"}),
	)
	assert.Equal(t, []string{"x"}, m.Inputs().Labels())
	assert.Equal(t, []string{"total"}, m.Outputs().Labels())

	require.NoError(t, m.Inputs().Set("x", 10))
	first, ok := m.Child("first")
	require.True(t, ok)
	assert.Equal(t, 10, first.Inputs().Value("x").Value(), "external writes reach the child immediately")

	require.NoError(t, m.Run(context.Background()))
	second, _ := m.Child("second")
	assert.Equal(t, 13, second.Outputs().Value("sum").Value())
	assert.Equal(t, 13, m.Outputs().Value("total").Value(), "external reads see the child's value")
}

func TestMacro_UnknownMapTarget(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{name: "unknown child", opt: WithInputsMap(map[string]string{"x": "third__x"})},
		{name: "unknown port", opt: WithOutputsMap(map[string]string{"out": "second__nope"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adder := adderType(t)
			_, err := NewMacro("broken", func(m *Macro) error {
				_, err := adder.New(WithLabel("second"), WithParent(m))
				return err
			}, tt.opt)
			assert.ErrorIs(t, err, ErrUnknownChannel)
			var defErr *DefinitionError
			assert.ErrorAs(t, err, &defErr)
		})
	}
}

func TestMacro_PullAcrossBoundary(t *testing.T) {
	ctx := context.Background()
	source := mustNew(t, constantType(t, 5), WithLabel("source"))
	m := addThree(t, WithInputsMap(map[string]string{"x": "first__x"}), WithOutputsMap(map[string]string{"total": "second__sum"}))
	require.NoError(t, m.Inputs().Connect("x", source.Outputs().MustGet("value")))

	calls := 0
	sink := mustNew(t, countingType(t, &calls), WithLabel("sink"))
	require.NoError(t, sink.Inputs().Connect("x", m.Outputs().MustGet("total")))

	got, err := sink.Pull(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, got)
	assert.Equal(t, 1, calls)
}

func TestMacro_TopologicalWiring(t *testing.T) {
	var order []string
	tracked := func(label string) *Descriptor {
		d, err := Define(label, intPorts("in"), intPorts("out"),
			func(_ context.Context, kw Kwargs) (any, error) {
				order = append(order, label)
				return kw["in"].(int) + 1, nil
			})
		require.NoError(t, err)
		return d
	}

	m, err := NewMacro("chain", func(m *Macro) error {
		// Added out of execution order.
		c := tracked("c").MustNew(WithParent(m))
		a := tracked("a").MustNew(WithParent(m), WithInputs(Kw("in", 0)))
		b := tracked("b").MustNew(WithParent(m))
		if err := b.Inputs().Connect("in", a.Outputs().MustGet("out")); err != nil {
			return err
		}
		return c.Inputs().Connect("in", b.Outputs().MustGet("out"))
	})
	require.NoError(t, err)
	require.Len(t, m.StartingNodes(), 1)
	assert.Equal(t, "a", m.StartingNodes()[0].Label())

	got, err := m.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, got)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestMacro_Cycle(t *testing.T) {
	adder := adderType(t)
	_, err := NewMacro("loop", func(m *Macro) error {
		a := adder.MustNew(WithLabel("a"), WithParent(m))
		b := adder.MustNew(WithLabel("b"), WithParent(m))
		if err := b.Inputs().Connect("x", a.Outputs().MustGet("sum")); err != nil {
			return err
		}
		return a.Inputs().Connect("x", b.Outputs().MustGet("sum"))
	})
	assert.ErrorIs(t, err, ErrCycle)
}

func TestMacro_ExplicitExecution(t *testing.T) {
	calls := 0
	counting := countingType(t, &calls)

	build := func(setStart, wire bool) MacroBuilder {
		return func(m *Macro) error {
			a := counting.MustNew(WithLabel("a"), WithParent(m), WithInputs(Kw("x", 1)))
			b := counting.MustNew(WithLabel("b"), WithParent(m), WithInputs(Kw("x", 2)))
			if wire {
				a.Then(b)
			}
			if setStart {
				return m.SetStartingNodes(a)
			}
			return nil
		}
	}

	t.Run("complete", func(t *testing.T) {
		m, err := NewMacro("explicit", build(true, true))
		require.NoError(t, err)
		require.NoError(t, m.Run(context.Background()))
		assert.Equal(t, 2, calls)
	})

	t.Run("starting nodes only", func(t *testing.T) {
		_, err := NewMacro("partial", build(true, false))
		assert.ErrorIs(t, err, ErrPartialExecution)
	})

	t.Run("wiring only", func(t *testing.T) {
		_, err := NewMacro("partial", build(false, true))
		assert.ErrorIs(t, err, ErrPartialExecution)
	})
}

func TestMacro_Registry(t *testing.T) {
	adder := adderType(t)
	m := addThree(t)

	err := m.Add(adder.MustNew(WithLabel("late")))
	assert.ErrorIs(t, err, ErrSealed)

	_, err = NewMacro("dupes", func(m *Macro) error {
		adder.MustNew(WithLabel("same"), WithParent(m))
		_, err := adder.New(WithLabel("same"), WithParent(m))
		return err
	})
	assert.ErrorIs(t, err, ErrDuplicateLabel)

	first, _ := m.Child("first")
	_, err = NewMacro("thief", func(other *Macro) error {
		return other.Add(first)
	})
	assert.ErrorIs(t, err, ErrAlreadyParented)

	stranger := adder.MustNew()
	_, err = NewMacro("picky", func(m *Macro) error {
		adder.MustNew(WithParent(m), WithInputs(Kw("x", 1), Kw("y", 1)))
		return m.SetStartingNodes(stranger)
	})
	assert.ErrorIs(t, err, ErrNotChild)
}

func TestMacro_OnExecutor(t *testing.T) {
	ctx := context.Background()
	m := addThree(t, WithExecutor(inlineExecutor{}))
	require.NoError(t, m.Run(ctx, Kw("first__x", 1)))
	assert.Equal(t, 4, m.Outputs().Value("second__sum").Value())
	assert.False(t, m.Running())

	calls := 0
	sink := mustNew(t, countingType(t, &calls), WithLabel("sink"))
	require.NoError(t, sink.Inputs().Connect("x", m.Outputs().MustGet("second__sum")))
	m.Then(sink)

	f, err := m.RunAsync(ctx, Kw("first__x", 10))
	require.NoError(t, err)
	got, err := f.Result(ctx)
	require.NoError(t, err)
	assert.Equal(t, 13, got)
	assert.Eventually(t, func() bool { return !m.Running() }, time.Second, time.Millisecond)
	assert.Equal(t, 1, calls, "ran fires once the body completes")
	assert.Equal(t, 13, sink.Outputs().Value("y").Value())
}

func TestMacro_Nested(t *testing.T) {
	inner := func(t *testing.T) *MacroDefinition {
		d, err := DefineMacro("inner", func(m *Macro) error {
			_, err := adderType(t).New(WithLabel("leaf"), WithParent(m), WithInputs(Kw("y", 100)))
			return err
		}, WithInputsMap(map[string]string{"x": "leaf__x"}), WithOutputsMap(map[string]string{"sum": "leaf__sum"}))
		require.NoError(t, err)
		return d
	}(t)
	assert.Equal(t, "inner", inner.Name())

	outer, err := NewMacro("outer", func(m *Macro) error {
		_, err := inner.New(WithParent(m))
		return err
	})
	require.NoError(t, err)

	child, ok := outer.Child("inner")
	require.True(t, ok)
	leaf, ok := child.Composite().Child("leaf")
	require.True(t, ok)
	assert.Equal(t, "/outer/inner/leaf", leaf.SemanticPath())
	assert.Equal(t, []string{"inner__x"}, outer.Inputs().Labels())

	got, err := outer.Execute(context.Background(), Kw("inner__x", 1))
	require.NoError(t, err)
	assert.Equal(t, 101, got)

	snap := outer.ToDict()
	assert.Equal(t, []string{"inner"}, snap.Children)
}

func TestMacro_Factory(t *testing.T) {
	d, err := DefineMacro("pair", func(m *Macro) error {
		_, err := constantType(t, 1).New(WithParent(m))
		return err
	})
	require.NoError(t, err)

	var f Factory = d
	n, err := f.Instantiate(WithLabel("p1"))
	require.NoError(t, err)
	assert.Equal(t, "p1", n.Label())
	assert.Equal(t, "pair", n.Kind())
	require.NotNil(t, n.Composite())
	assert.False(t, n.BindsSelf())

	_, err = DefineMacro("bad/name", func(*Macro) error { return nil })
	assert.ErrorIs(t, err, ErrInvalidLabel)
	_, err = DefineMacro("nil_build", nil)
	assert.ErrorIs(t, err, ErrNotCallable)
}

func childLabels(m *Macro) []string {
	var labels []string
	for _, c := range m.Children() {
		labels = append(labels, c.Label())
	}
	return labels
}

// inlineExecutor runs computations synchronously.
type inlineExecutor struct{}

func (inlineExecutor) Submit(ctx context.Context, fn Callable, kw Kwargs) Future {
	p := NewPromise()
	p.Resolve(fn(ctx, kw))
	return p
}

func TestMacro_ResolvePrefersLongestChild(t *testing.T) {
	adder := adderType(t)
	m, err := NewMacro("shadowed", func(m *Macro) error {
		if _, err := adder.New(WithLabel("a"), WithParent(m), WithInputs(Kw("x", 1), Kw("y", 1))); err != nil {
			return err
		}
		_, err := adder.New(WithLabel("a__b"), WithParent(m), WithInputs(Kw("y", 10)))
		return err
	},
		WithInputsMap(map[string]string{"x": "a__b__x"}),
		WithOutputsMap(map[string]string{"sum": "a__b__sum"}),
	)
	require.NoError(t, err)

	require.NoError(t, m.Inputs().Set("x", 5))
	ab, _ := m.Child("a__b")
	a, _ := m.Child("a")
	assert.Equal(t, 5, ab.Inputs().Value("x").Value())
	assert.Equal(t, 1, a.Inputs().Value("x").Value())

	got, err := m.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 15, got)
}

func TestMacro_ResetFailedRecurses(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("negative")
	checked, err := Define("checked", intPorts("x"), intPorts("y"),
		func(_ context.Context, kw Kwargs) (any, error) {
			if x := kw["x"].(int); x < 0 {
				return nil, boom
			}
			return kw["x"], nil
		})
	require.NoError(t, err)

	m, err := NewMacro("guarded", func(m *Macro) error {
		_, err := checked.New(WithLabel("check"), WithParent(m))
		return err
	}, WithInputsMap(map[string]string{"x": "check__x"}), WithOutputsMap(map[string]string{"y": "check__y"}))
	require.NoError(t, err)
	child, _ := m.Child("check")

	err = m.Run(ctx, Kw("x", -1))
	assert.ErrorIs(t, err, boom)
	assert.True(t, m.Failed())
	assert.True(t, child.Failed())

	m.ResetFailed()
	assert.False(t, m.Failed())
	assert.False(t, child.Failed())

	require.NoError(t, m.Run(ctx, Kw("x", 3)))
	assert.Equal(t, 3, m.Outputs().Value("y").Value())
}

// plusOneType adds one to x.
func plusOneType(t *testing.T) *Descriptor {
	t.Helper()
	d, err := Define("plus_one", intPorts("x"), intPorts("y"),
		func(_ context.Context, kw Kwargs) (any, error) {
			return kw["x"].(int) + 1, nil
		})
	require.NoError(t, err)
	return d
}

// plusOneChain builds n1 -> n2 -> n3, each adding one. extra runs before the
// macro seals.
func plusOneChain(t *testing.T, extra func(m *Macro, n1, n2, n3 *Node) error) (*Macro, error) {
	t.Helper()
	plusOne := plusOneType(t)
	return NewMacro("chain", func(m *Macro) error {
		n1 := plusOne.MustNew(WithLabel("n1"), WithParent(m), WithInputs(Kw("x", 0)))
		n2 := plusOne.MustNew(WithLabel("n2"), WithParent(m))
		n3 := plusOne.MustNew(WithLabel("n3"), WithParent(m))
		if err := n2.Inputs().Connect("x", n1.Outputs().MustGet("y")); err != nil {
			return err
		}
		if err := n3.Inputs().Connect("x", n2.Outputs().MustGet("y")); err != nil {
			return err
		}
		if extra == nil {
			return nil
		}
		return extra(m, n1, n2, n3)
	})
}

func TestMacro_PullWithParents(t *testing.T) {
	ctx := context.Background()
	upstream := mustNew(t, plusOneType(t), WithLabel("upstream"), WithInputs(Kw("x", 2)))
	m, err := plusOneChain(t, nil)
	require.NoError(t, err)
	require.NoError(t, m.Inputs().Connect("n1__x", upstream.Outputs().MustGet("y")))
	require.NoError(t, m.Inputs().Set("n1__x", 0))
	n2, _ := m.Child("n2")

	got, err := n2.Pull(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0+1+1, got, "pull stays inside the macro")
	assert.True(t, upstream.Outputs().Value("y").IsEmpty())

	got, err = n2.PullWithParents(ctx)
	require.NoError(t, err)
	assert.Equal(t, (2+1)+1+1, got)
	assert.Equal(t, 3, upstream.Outputs().Value("y").Value())

	t.Run("nested", func(t *testing.T) {
		source := mustNew(t, constantType(t, 10), WithLabel("source"))
		inner, err := DefineMacro("inner", func(m *Macro) error {
			_, err := plusOneType(t).New(WithLabel("leaf"), WithParent(m), WithInputs(Kw("x", 0)))
			return err
		}, WithInputsMap(map[string]string{"x": "leaf__x"}))
		require.NoError(t, err)
		outer, err := NewMacro("outer", func(m *Macro) error {
			_, err := inner.New(WithParent(m))
			return err
		}, WithInputsMap(map[string]string{"x": "inner__x"}))
		require.NoError(t, err)
		require.NoError(t, outer.Inputs().Connect("x", source.Outputs().MustGet("value")))

		mid, _ := outer.Child("inner")
		leaf, _ := mid.Composite().Child("leaf")
		got, err := leaf.Pull(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, got)

		got, err = leaf.PullWithParents(ctx)
		require.NoError(t, err)
		assert.Equal(t, 11, got)
	})
}

func TestMacro_Remove(t *testing.T) {
	var severed []Connection
	var removed, first, last *Node
	m, err := plusOneChain(t, func(m *Macro, n1, n2, n3 *Node) error {
		first, removed, last = n1, n2, n3
		if err := m.SetStartingNodes(n1, n2); err != nil {
			return err
		}
		var err error
		severed, err = m.Remove("n2")
		if err != nil {
			return err
		}
		assert.Equal(t, []*Node{n1}, m.StartingNodes())

		_, err = m.Remove("n2")
		assert.ErrorIs(t, err, ErrNotChild)
		return m.SetStartingNodes()
	})
	require.NoError(t, err)

	require.Len(t, severed, 2)
	assert.Same(t, removed.Inputs().MustGet("x"), severed[0].Channel)
	assert.Same(t, first.Outputs().MustGet("y"), severed[0].Peer)
	assert.Same(t, removed.Outputs().MustGet("y"), severed[1].Channel)
	assert.Same(t, last.Inputs().MustGet("x"), severed[1].Peer)

	assert.Nil(t, removed.Parent())
	assert.False(t, removed.Connected())
	assert.Equal(t, "/n2", removed.SemanticPath())
	assert.Equal(t, []string{"n1", "n3"}, childLabels(m))
	assert.False(t, last.Inputs().MustGet("x").Connected())

	_, err = m.Remove("n1")
	assert.ErrorIs(t, err, ErrSealed)
}

func TestMacro_Replace(t *testing.T) {
	ctx := context.Background()
	plusMinus, err := Define("x_plus_minus_z",
		[]Port{
			{Label: "x", Hint: hint.Of[int](), Default: Some(0)},
			{Label: "z", Hint: hint.Of[int](), Default: Some(2)},
		},
		intPorts("y", "minus"),
		func(_ context.Context, kw Kwargs) (any, error) {
			x, z := kw["x"].(int), kw["z"].(int)
			return Tuple{x + z, x - z}, nil
		})
	require.NoError(t, err)

	t.Run("data links", func(t *testing.T) {
		var old, replacement *Node
		m, err := plusOneChain(t, func(m *Macro, n1, _, _ *Node) error {
			old = n1
			replacement = plusMinus.MustNew()
			return m.Replace("n1", replacement)
		})
		require.NoError(t, err)

		assert.Equal(t, "n1", replacement.Label())
		assert.Same(t, m, replacement.Parent())
		assert.Equal(t, []string{"n1", "n2", "n3"}, childLabels(m), "position is kept")
		assert.Nil(t, old.Parent())
		assert.False(t, old.Connected())
		assert.Equal(t, []string{"n1__x", "n1__z"}, m.Inputs().Labels())
		assert.Equal(t, []string{"n1__minus", "n3__y"}, m.Outputs().Labels())

		require.NoError(t, m.Run(ctx, Kw("n1__x", 0)))
		assert.Equal(t, (0+2)+1+1, m.Outputs().Value("n3__y").Value())
		assert.Equal(t, 0-2, m.Outputs().Value("n1__minus").Value())
	})

	t.Run("signal links and starting slot", func(t *testing.T) {
		var replacement *Node
		m, err := plusOneChain(t, func(m *Macro, n1, n2, n3 *Node) error {
			n1.Then(n2).Then(n3)
			if err := m.SetStartingNodes(n1); err != nil {
				return err
			}
			replacement = plusMinus.MustNew()
			return m.Replace("n1", replacement)
		})
		require.NoError(t, err)
		assert.Equal(t, []*Node{replacement}, m.StartingNodes())
		n2, _ := m.Child("n2")
		assert.Equal(t, []*InputSignal{n2.Signals().Input.Run()}, replacement.Signals().Output.Ran().Targets())

		require.NoError(t, m.Run(ctx, Kw("n1__x", 1)))
		assert.Equal(t, (1+2)+1+1, m.Outputs().Value("n3__y").Value())
	})

	t.Run("incompatible", func(t *testing.T) {
		differentInput, err := Define("different_input", intPorts("z"), intPorts("y"),
			func(_ context.Context, kw Kwargs) (any, error) { return kw["z"].(int) + 10, nil })
		require.NoError(t, err)
		differentOutput, err := Define("different_output", intPorts("x"), intPorts("z"),
			func(_ context.Context, kw Kwargs) (any, error) { return kw["x"].(int) + 100, nil })
		require.NoError(t, err)
		wrongHint, err := Define("wrong_hint", intPorts("x"), []Port{{Label: "y", Hint: hint.Of[string]()}},
			func(context.Context, Kwargs) (any, error) { return "y", nil })
		require.NoError(t, err)

		tests := []struct {
			name string
			d    *Descriptor
		}{
			{name: "missing input", d: differentInput},
			{name: "missing output", d: differentOutput},
			{name: "hint mismatch", d: wrongHint},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				var candidate *Node
				_, err := plusOneChain(t, func(m *Macro, n1, n2, n3 *Node) error {
					candidate = tt.d.MustNew()
					err := m.Replace("n2", candidate)
					assert.ErrorIs(t, err, ErrIncompatibleReplacement)
					assert.Same(t, n2, n1.Outputs().MustGet("y").Targets()[0].Owner(), "nothing changes")
					assert.Nil(t, candidate.Parent())
					return err
				})
				var defErr *DefinitionError
				assert.ErrorAs(t, err, &defErr)
			})
		}
	})

	t.Run("registry errors", func(t *testing.T) {
		_, err := plusOneChain(t, func(m *Macro, n1, n2, _ *Node) error {
			assert.ErrorIs(t, m.Replace("n4", plusMinus.MustNew()), ErrNotChild)
			assert.ErrorIs(t, m.Replace("n1", n2), ErrAlreadyParented)
			assert.ErrorIs(t, m.Replace("n1", m.Node), ErrInvalidLabel)
			assert.NoError(t, m.Replace("n1", n1))
			return nil
		})
		require.NoError(t, err)

		m, err := plusOneChain(t, nil)
		require.NoError(t, err)
		assert.ErrorIs(t, m.Replace("n1", plusMinus.MustNew()), ErrSealed)
	})
}
