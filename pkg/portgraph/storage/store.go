// Package storage persists node snapshots.
//
// Snapshots are opaque byte blobs keyed by a graph identifier and the node's
// semantic path. The engine writes one after every successful run of a node
// configured with a store; the latest write for a key wins.
package storage

import (
	"errors"
	"time"
)

// Store persists node snapshots.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save stores the snapshot of the node at path within graph graphID,
	// replacing any previous snapshot for that key.
	Save(graphID, path string, data []byte) error

	// Load retrieves a snapshot.
	// Returns ErrNotFound if none exists.
	Load(graphID, path string) ([]byte, error)

	// List returns metadata for every snapshot of a graph, oldest write first.
	// Returns an empty slice (not an error) for an unknown graph.
	List(graphID string) ([]Info, error)

	// Graphs returns the identifiers of every graph with snapshots, sorted.
	Graphs() ([]string, error)

	// Delete removes one snapshot. Missing snapshots are not an error.
	Delete(graphID, path string) error

	// DeleteGraph removes every snapshot of a graph.
	DeleteGraph(graphID string) error

	// Close releases resources. Further calls fail with ErrStoreClosed.
	Close() error
}

// Info describes a stored snapshot without its payload.
type Info struct {
	GraphID   string    `json:"graph_id" yaml:"graph_id"`
	Path      string    `json:"path" yaml:"path"`
	Sequence  int       `json:"sequence" yaml:"sequence"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Size      int64     `json:"size_bytes" yaml:"size_bytes"`
}

// Sentinel errors for snapshot storage.
var (
	// ErrNotFound indicates a snapshot doesn't exist.
	ErrNotFound = errors.New("snapshot not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("snapshot store closed")
)
