package kv

import (
	"context"
	"sync"
	"time"
)

type Memory struct {
	mu      sync.RWMutex
	data    map[string]string
	expires map[string]time.Time
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]string), expires: make(map[string]time.Time), now: time.Now}
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	v, ok := m.data[key]
	exp, expiring := m.expires[key]
	m.mu.RUnlock()
	if !ok {
		return "", ErrNotFound
	}
	if expiring && !m.now().Before(exp) {
		m.mu.Lock()
		if e, still := m.expires[key]; still && e.Equal(exp) {
			delete(m.data, key)
			delete(m.expires, key)
		}
		m.mu.Unlock()
		return "", ErrNotFound
	}
	return v, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	delete(m.expires, key)
	return nil
}

func (m *Memory) SetWithTTL(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.expires[key] = m.now().Add(ttl)
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	delete(m.expires, key)
	return nil
}
