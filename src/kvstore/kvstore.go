// Package kvstore persists flat string key-value pairs.
package kvstore

import (
	"context"
	"errors"
	"sync"
)

var ErrClosed = errors.New("kvstore: store is closed")

// Store is the persistence contract the settings layer depends on.
// Missing keys are simply absent from Get results.
type Store interface {
	Get(ctx context.Context, keys ...string) (map[string]string, error)
	Set(ctx context.Context, values map[string]string) error
	Remove(ctx context.Context, keys ...string) error
	Close() error
}

// Memory is an in-process Store. The Fail* hooks let callers simulate backend
// failures.
type Memory struct {
	mu      sync.Mutex
	values  map[string]string
	closed  bool
	FailGet error
	FailSet error
	FailDel error
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(ctx context.Context, keys ...string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if m.FailGet != nil {
		return nil, m.FailGet
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := m.values[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (m *Memory) Set(ctx context.Context, values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.FailSet != nil {
		return m.FailSet
	}
	for k, v := range values {
		m.values[k] = v
	}
	return nil
}

func (m *Memory) Remove(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.FailDel != nil {
		return m.FailDel
	}
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Snapshot returns a copy of everything stored.
func (m *Memory) Snapshot() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}
