package store

import (
	"sort"
	"sync"
)

// Memory is an in-memory blueprint store.
type Memory struct {
	mu       sync.RWMutex
	data     map[string]*Blueprint
	metadata map[string]string
}

// NewMemory creates a new in-memory store.
func NewMemory() *Memory {
	return &Memory{
		data:     make(map[string]*Blueprint),
		metadata: make(map[string]string),
	}
}

// Get retrieves a blueprint by name.
func (m *Memory) Get(name string) (*Blueprint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if bp, ok := m.data[name]; ok {
		return bp.Clone(), nil
	}
	return nil, nil
}

// Put stores a blueprint.
func (m *Memory) Put(bp *Blueprint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[bp.Name] = bp.Clone()
	return nil
}

// Delete removes a blueprint by name.
func (m *Memory) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, name)
	return nil
}

// List returns every blueprint ordered by name.
func (m *Memory) List() ([]*Blueprint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Blueprint, 0, len(m.data))
	for _, bp := range m.data {
		out = append(out, bp.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Close is a no-op for memory store.
func (m *Memory) Close() error {
	return nil
}

// GetMetadata retrieves a metadata value by key.
func (m *Memory) GetMetadata(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metadata[key], nil
}

// SetMetadata stores a metadata value by key.
func (m *Memory) SetMetadata(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metadata[key] = value
	return nil
}
