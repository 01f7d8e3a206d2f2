package storage

import (
	"slices"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps snapshots in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	graphs map[string]map[string]entry // graphID -> path -> snapshot
	seq    int
	closed bool
}

type entry struct {
	data      []byte
	sequence  int
	timestamp time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{graphs: make(map[string]map[string]entry)}
}

// Save implements Store.
func (m *MemoryStore) Save(graphID, path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}

	g := m.graphs[graphID]
	if g == nil {
		g = make(map[string]entry)
		m.graphs[graphID] = g
	}
	m.seq++
	g[path] = entry{
		data:      slices.Clone(data),
		sequence:  m.seq,
		timestamp: time.Now().UTC(),
	}
	return nil
}

// Load implements Store.
func (m *MemoryStore) Load(graphID, path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}

	e, ok := m.graphs[graphID][path]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(e.data), nil
}

// List implements Store.
func (m *MemoryStore) List(graphID string) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}

	g := m.graphs[graphID]
	infos := make([]Info, 0, len(g))
	for path, e := range g {
		infos = append(infos, Info{
			GraphID:   graphID,
			Path:      path,
			Sequence:  e.sequence,
			Timestamp: e.timestamp,
			Size:      int64(len(e.data)),
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Sequence < infos[j].Sequence
	})
	return infos, nil
}

// Graphs implements Store.
func (m *MemoryStore) Graphs() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStoreClosed
	}

	ids := make([]string, 0, len(m.graphs))
	for id, g := range m.graphs {
		if len(g) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(graphID, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	delete(m.graphs[graphID], path)
	return nil
}

// DeleteGraph implements Store.
func (m *MemoryStore) DeleteGraph(graphID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	delete(m.graphs, graphID)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.graphs = nil
	return nil
}

// Len returns the number of stored snapshots across all graphs.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, g := range m.graphs {
		count += len(g)
	}
	return count
}
