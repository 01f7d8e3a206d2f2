package portgraph

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/randalmurphal/portgraph/pkg/portgraph/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"gopkg.in/yaml.v3"
)

func TestToDict(t *testing.T) {
	source := mustNew(t, constantType(t, 2), WithLabel("source"))
	n := mustNew(t, adderType(t), WithInputs(Kw("x", 1)))
	require.NoError(t, n.Inputs().Connect("y", source.Outputs().MustGet("value")))
	n.Inputs().MustGet("x").SetStoragePriority(3)

	snap := n.ToDict()
	assert.Equal(t, "adder", snap.Label)
	assert.Equal(t, "/adder", snap.Path)
	assert.False(t, snap.Ready)
	assert.True(t, snap.Connected)
	assert.False(t, snap.FullyConnected)
	assert.Equal(t, []string{"x", "y"}, channelKeys(snap.Inputs))

	x, _ := snap.Inputs.Get("x")
	assert.Equal(t, ChannelSnapshot{Label: "x", Value: "1", Hint: "int", Ready: true, StoragePriority: 3}, x)
	y, _ := snap.Inputs.Get("y")
	assert.Equal(t, []string{"source.value"}, y.Connections)
	assert.Equal(t, "NOT_DATA", y.Value)

	data, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.Regexp(t, `"inputs":\{"x":\{[^}]*\},"y":\{`, string(data), "channel order survives serialisation")

	out, err := yaml.Marshal(snap)
	require.NoError(t, err)
	assert.Contains(t, string(out), "path: /adder")
}

func TestValueDicts(t *testing.T) {
	n := mustNew(t, adderType(t), WithInputs(Kw("x", 1)))
	in := n.Inputs().ToValueDict()
	x, _ := in.Get("x")
	y, _ := in.Get("y")
	assert.Equal(t, Some(1), x)
	assert.Equal(t, NotData, y)

	_, err := n.Execute(context.Background(), Kw("y", 2))
	require.NoError(t, err)
	sum, _ := n.Outputs().ToValueDict().Get("sum")
	assert.Equal(t, Some(3), sum)
}

func TestSnapshotStore(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	n := mustNew(t, adderType(t), WithStore(store))

	_, err := n.Execute(ctx, Kw("x", 1), Kw("y", 2))
	require.NoError(t, err)

	snap, err := LoadSnapshot(store, n.GraphID(), n.SemanticPath())
	require.NoError(t, err)
	assert.Equal(t, "/adder", snap.Path)
	sum, ok := snap.Outputs.Get("sum")
	require.True(t, ok)
	assert.Equal(t, "3", sum.Value)

	_, err = LoadSnapshot(store, n.GraphID(), "/missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Save failures are logged, not returned.
	require.NoError(t, store.Close())
	logger, buf := captureLogger()
	failing := mustNew(t, adderType(t), WithStore(store), WithLogger(logger))
	_, err = failing.Execute(ctx, Kw("x", 1), Kw("y", 1))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "snapshot failed")
}

func TestSnapshotStore_MacroChildrenShareGraph(t *testing.T) {
	store := storage.NewMemoryStore()
	adder := adderType(t)
	m, err := NewMacro("pair", func(m *Macro) error {
		_, err := adder.New(WithLabel("a"), WithParent(m), WithStore(store), WithInputs(Kw("x", 1), Kw("y", 1)))
		return err
	}, WithStore(store))
	require.NoError(t, err)

	require.NoError(t, m.Run(context.Background()))
	infos, err := store.List(m.GraphID())
	require.NoError(t, err)
	var paths []string
	for _, info := range infos {
		paths = append(paths, info.Path)
	}
	assert.ElementsMatch(t, []string{"/pair", "/pair/a"}, paths)
}

// recordingMetrics captures metric calls.
type recordingMetrics struct {
	mu        sync.Mutex
	runs      []string
	failures  int
	pulls     map[string]int
	snapshots int
}

func (r *recordingMetrics) RecordNodeRun(_ context.Context, path, mode string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, mode+":"+path)
	if err != nil {
		r.failures++
	}
}

func (r *recordingMetrics) RecordPull(_ context.Context, path string, resolved int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pulls == nil {
		r.pulls = make(map[string]int)
	}
	r.pulls[path] = resolved
}

func (r *recordingMetrics) RecordSnapshot(context.Context, string, int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots++
}

func TestMetrics(t *testing.T) {
	ctx := context.Background()
	rec := &recordingMetrics{}
	source := mustNew(t, constantType(t, 2), WithLabel("source"), WithMetrics(rec))
	sink := mustNew(t, failingType(t, errors.New("no")), WithLabel("sink"), WithMetrics(rec), WithStore(storage.NewMemoryStore()))
	require.NoError(t, sink.Inputs().Connect("x", source.Outputs().MustGet("value")))

	_, err := sink.Pull(ctx)
	require.Error(t, err)

	assert.Equal(t, []string{"pull:/source", "pull:/sink"}, rec.runs)
	assert.Equal(t, 1, rec.failures)
	assert.Equal(t, map[string]int{"/sink": 1}, rec.pulls)
	assert.Equal(t, 0, rec.snapshots, "failed runs are not snapshotted")
}

func TestTracing(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	source := mustNew(t, constantType(t, 2), WithLabel("source"), WithTracing(true))
	sink := mustNew(t, adderType(t), WithLabel("sink"), WithTracing(true), WithInputs(Kw("y", 1)))
	require.NoError(t, sink.Inputs().Connect("x", source.Outputs().MustGet("value")))

	_, err := sink.Pull(context.Background())
	require.NoError(t, err)

	var names []string
	for _, s := range exporter.GetSpans() {
		names = append(names, s.Name)
	}
	assert.ElementsMatch(t, []string{
		"portgraph.node./source",
		"portgraph.node./sink",
		"portgraph.pull./sink",
	}, names)
}

func channelKeys(m *orderedmap.OrderedMap[string, ChannelSnapshot]) []string {
	var keys []string
	for pair := m.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}
