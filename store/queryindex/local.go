package queryindex

import (
	"context"
	"sync"
)

// Local keeps the registry in-process (default).
type Local struct {
	mu      sync.RWMutex
	entries map[string]Meta
}

var _ Index = (*Local)(nil)

func NewLocal() *Local {
	return &Local{entries: make(map[string]Meta)}
}

func (l *Local) Put(_ context.Context, storageKey string, m Meta) error {
	l.mu.Lock()
	l.entries[storageKey] = m
	l.mu.Unlock()
	return nil
}

// Entries copies under a single read lock; callers may range freely.
func (l *Local) Entries(_ context.Context) (map[string]Meta, error) {
	l.mu.RLock()
	out := make(map[string]Meta, len(l.entries))
	for k, m := range l.entries {
		out[k] = m
	}
	l.mu.RUnlock()
	return out, nil
}

func (l *Local) Remove(_ context.Context, storageKey string) error {
	l.mu.Lock()
	delete(l.entries, storageKey)
	l.mu.Unlock()
	return nil
}

func (l *Local) Close(context.Context) error { return nil }
