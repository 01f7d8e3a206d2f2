package portgraph

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/randalmurphal/portgraph/pkg/portgraph/hint"
	"github.com/stretchr/testify/require"
)

// intPorts declares int-hinted ports with the given labels.
func intPorts(labels ...string) []Port {
	ports := make([]Port, len(labels))
	for i, l := range labels {
		ports[i] = Port{Label: l, Hint: hint.Of[int]()}
	}
	return ports
}

// adderType sums inputs x and y into output sum.
func adderType(t *testing.T) *Descriptor {
	t.Helper()
	d, err := Define("adder", intPorts("x", "y"), intPorts("sum"),
		func(_ context.Context, kw Kwargs) (any, error) {
			return kw["x"].(int) + kw["y"].(int), nil
		})
	require.NoError(t, err)
	return d
}

// constantType emits v on output "value".
func constantType(t *testing.T, v int) *Descriptor {
	t.Helper()
	d, err := Define("constant", nil, intPorts("value"),
		func(context.Context, Kwargs) (any, error) { return v, nil })
	require.NoError(t, err)
	return d
}

// countingType increments *calls on every run and passes x through to y.
func countingType(t *testing.T, calls *int) *Descriptor {
	t.Helper()
	d, err := Define("counting", intPorts("x"), intPorts("y"),
		func(_ context.Context, kw Kwargs) (any, error) {
			*calls++
			return kw["x"].(int), nil
		})
	require.NoError(t, err)
	return d
}

// failingType always returns err.
func failingType(t *testing.T, err error) *Descriptor {
	t.Helper()
	d, derr := Define("failing", intPorts("x"), intPorts("y"),
		func(context.Context, Kwargs) (any, error) { return nil, err })
	require.NoError(t, derr)
	return d
}

func mustNew(t *testing.T, d *Descriptor, opts ...Option) *Node {
	t.Helper()
	n, err := d.New(opts...)
	require.NoError(t, err)
	return n
}

// captureLogger returns a JSON logger writing into the returned buffer.
func captureLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}
