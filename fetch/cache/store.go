package cache

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned by Store.Get for an absent key.
var ErrNotFound = errors.New("cache: not found")

// Store keeps fetched windows keyed by Key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// Memory is a map-backed Store.
type Memory struct {
	mux    sync.RWMutex
	values map[string][]byte
}

// NewMemory creates an empty memory store.
func NewMemory() *Memory {
	return &Memory{values: map[string][]byte{}}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mux.RLock()
	defer m.mux.RUnlock()
	value, ok := m.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return value, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.values[key] = append([]byte(nil), value...)
	return nil
}

func (m *Memory) Close() error { return nil }
