package catalog

import (
	"context"
	"sync"
)

// InMemoryLookup is a map-backed Lookup for tests and seeded deployments.
type InMemoryLookup struct {
	mu      sync.RWMutex
	entries map[string]map[string]Fields // catalog -> code -> fields
}

// NewInMemory creates an empty lookup.
func NewInMemory() *InMemoryLookup {
	return &InMemoryLookup{entries: make(map[string]map[string]Fields)}
}

// Add registers a catalog entry.
func (l *InMemoryLookup) Add(catalogName, code string, fields Fields) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.entries[catalogName] == nil {
		l.entries[catalogName] = make(map[string]Fields)
	}
	if fields == nil {
		fields = Fields{}
	}
	l.entries[catalogName][code] = fields
}

// Exists reports catalog membership.
func (l *InMemoryLookup) Exists(_ context.Context, catalogName, code string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.entries[catalogName][code]
	return ok, nil
}

// Metadata returns the entry's fields, or nil when absent.
func (l *InMemoryLookup) Metadata(_ context.Context, catalogName, code string) (Fields, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	f, ok := l.entries[catalogName][code]
	if !ok {
		return nil, nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out, nil
}
