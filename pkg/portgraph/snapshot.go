package portgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/randalmurphal/portgraph/pkg/portgraph/observability"
	"github.com/randalmurphal/portgraph/pkg/portgraph/storage"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ChannelSnapshot is the serialised view of one channel.
type ChannelSnapshot struct {
	Label           string   `json:"label" yaml:"label"`
	Value           string   `json:"value,omitempty" yaml:"value,omitempty"`
	Hint            string   `json:"hint,omitempty" yaml:"hint,omitempty"`
	Connected       bool     `json:"connected" yaml:"connected"`
	Connections     []string `json:"connections,omitempty" yaml:"connections,omitempty"`
	Ready           bool     `json:"ready" yaml:"ready"`
	StoragePriority int      `json:"storage_priority" yaml:"storage_priority"`
}

// SignalsSnapshot holds the input and output signal views.
type SignalsSnapshot struct {
	Input  *orderedmap.OrderedMap[string, ChannelSnapshot] `json:"input" yaml:"input"`
	Output *orderedmap.OrderedMap[string, ChannelSnapshot] `json:"output" yaml:"output"`
}

// Snapshot is the serialised view of a node, consumed by persistence and
// visualisation tools. Channel maps preserve declaration order.
type Snapshot struct {
	Label          string                                          `json:"label" yaml:"label"`
	Path           string                                          `json:"path" yaml:"path"`
	Kind           string                                          `json:"kind" yaml:"kind"`
	Ready          bool                                            `json:"ready" yaml:"ready"`
	Running        bool                                            `json:"running" yaml:"running"`
	Failed         bool                                            `json:"failed" yaml:"failed"`
	Connected      bool                                            `json:"connected" yaml:"connected"`
	FullyConnected bool                                            `json:"fully_connected" yaml:"fully_connected"`
	Inputs         *orderedmap.OrderedMap[string, ChannelSnapshot] `json:"inputs" yaml:"inputs"`
	Outputs        *orderedmap.OrderedMap[string, ChannelSnapshot] `json:"outputs" yaml:"outputs"`
	Signals        SignalsSnapshot                                 `json:"signals" yaml:"signals"`
	Children       []string                                        `json:"children,omitempty" yaml:"children,omitempty"`
}

// ToDict returns the node snapshot.
func (n *Node) ToDict() Snapshot {
	report := n.ReadinessReport()
	s := Snapshot{
		Label:          n.label,
		Path:           n.SemanticPath(),
		Kind:           n.kind,
		Ready:          report.Ready,
		Running:        report.Running,
		Failed:         report.Failed,
		Connected:      n.Connected(),
		FullyConnected: n.FullyConnected(),
		Inputs:         n.Inputs().snapshot(),
		Outputs:        n.Outputs().snapshot(),
		Signals: SignalsSnapshot{
			Input:  n.Signals().Input.snapshot(),
			Output: n.Signals().Output.snapshot(),
		},
	}
	if n.composite != nil {
		for _, child := range n.composite.Children() {
			s.Children = append(s.Children, child.Label())
		}
	}
	return s
}

func (n *Node) saveSnapshot(ctx context.Context, logger *slog.Logger) {
	path := n.SemanticPath()
	data, err := json.Marshal(n.ToDict())
	if err != nil {
		observability.LogSnapshotError(logger, path, "serialize", err)
		return
	}
	if err := n.cfg.store.Save(n.GraphID(), path, data); err != nil {
		observability.LogSnapshotError(logger, path, "save", err)
		return
	}
	n.cfg.metrics.RecordSnapshot(ctx, path, int64(len(data)))
	observability.LogSnapshot(logger, path, len(data))
}

// LoadSnapshot reads the snapshot saved for the node at path in graph graphID.
func LoadSnapshot(s storage.Store, graphID, path string) (*Snapshot, error) {
	data, err := s.Load(graphID, path)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	return &snap, nil
}
