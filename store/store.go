// Package store persists small control-plane facts that must survive a
// process restart, most importantly the emergency breaker's once-per-day
// latch.
package store

import "sync"

// FiredStore records the last day (YYYY-MM-DD) a keyed breaker fired.
// An empty day means the key has never fired.
type FiredStore interface {
	LoadDay(key string) (string, error)
	SaveDay(key, day string) error
	Close() error
}

// Memory is a map-backed FiredStore for tests and sim runs.
type Memory struct {
	mu   sync.Mutex
	days map[string]string
}

func NewMemory() *Memory {
	return &Memory{days: make(map[string]string)}
}

func (m *Memory) LoadDay(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.days[key], nil
}

func (m *Memory) SaveDay(key, day string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.days[key] = day
	return nil
}

func (m *Memory) Close() error { return nil }
