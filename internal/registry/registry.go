// Package registry tracks the identifiers of client connections served by
// the recognizer. The supervisor, the worker, and connection handlers all
// append to and iterate over the same registry.
package registry

import (
	"context"
	"sync"
)

// Registry is a concurrency-safe set of connection identifiers that keeps
// insertion order.
type Registry interface {
	// Add records id. Adding an existing id is a no-op.
	Add(ctx context.Context, id string) error
	// Remove forgets id. Removing an unknown id is a no-op.
	Remove(ctx context.Context, id string) error
	// List returns a snapshot of ids in insertion order.
	List(ctx context.Context) ([]string, error)
	// Location is what a worker process needs to open the same registry,
	// or "" when the registry cannot be shared across processes.
	Location() string
	Close() error
}

// Memory is an in-process Registry.
type Memory struct {
	mu    sync.RWMutex
	ids   []string
	index map[string]int
}

func NewMemory() *Memory {
	return &Memory{index: make(map[string]int)}
}

func (m *Memory) Add(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.index[id]; ok {
		return nil
	}
	m.index[id] = len(m.ids)
	m.ids = append(m.ids, id)
	return nil
}

func (m *Memory) Remove(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.index[id]
	if !ok {
		return nil
	}
	m.ids = append(m.ids[:i], m.ids[i+1:]...)
	delete(m.index, id)
	for j := i; j < len(m.ids); j++ {
		m.index[m.ids[j]] = j
	}
	return nil
}

func (m *Memory) List(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.ids...), nil
}

func (m *Memory) Location() string { return "" }

func (m *Memory) Close() error { return nil }

// Personal.AI order the ending
