// Package queryindex tracks which queries are currently cached, so
// invalidations can be matched against them. Byte providers cannot
// enumerate their keys; the index is the store layer's view of the query
// keyspace.
package queryindex

import "context"

// Meta describes one cached query: its name and the arguments it was
// executed with.
type Meta struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// Index abstracts where the registry lives. Use Local (default) for
// in-process state, or Redis to share the registry across replicas that
// share a Redis-backed provider.
type Index interface {
	// Put registers (or refreshes) the query stored under storageKey.
	Put(ctx context.Context, storageKey string, m Meta) error
	// Entries returns a snapshot of every registered query by storage key.
	Entries(ctx context.Context) (map[string]Meta, error)
	// Remove drops a registration. Removing a missing key is not an error.
	Remove(ctx context.Context, storageKey string) error
	// Close releases resources (no-op ok).
	Close(ctx context.Context) error
}
