package tokenstore

import (
	"context"
	"sync"
)

var _ Store = (*Memory)(nil)

// Memory keeps the credentials in process memory
type Memory struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]string)}
}

func (m *Memory) Save(_ context.Context, access string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	setEntry(m.entries, AccessKey, access)
	return nil
}

func (m *Memory) SaveAll(_ context.Context, access, refresh string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	setEntry(m.entries, AccessKey, access)
	setEntry(m.entries, RefreshKey, refresh)
	return nil
}

func (m *Memory) GetAccess(_ context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entries[AccessKey], nil
}

func (m *Memory) GetRefresh(_ context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entries[RefreshKey], nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, AccessKey)
	delete(m.entries, RefreshKey)
	return nil
}

// setEntry stores value under key, removing the key for an empty value
func setEntry(entries map[string]string, key, value string) {
	if value == "" {
		delete(entries, key)
		return
	}
	entries[key] = value
}
