// Package kv holds the durable key-value adapters the cart persists into.
//
// Every adapter satisfies the same three-call contract: Get reports whether
// the key exists, Set overwrites, Remove is a no-op for absent keys.
package kv

import (
	"context"
	"sync"
)

// Memory is a process-local store. It is what the cart uses when no durable
// backend is configured, and what tests use.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
