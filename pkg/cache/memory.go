package cache

import (
	"context"
	"sync"
	"time"

	"github.com/curio-ai/curio/pkg/types"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// Memory 无 redis 配置时的进程内降级实现，单机部署够用
type Memory struct {
	mu    sync.RWMutex
	items map[string]memoryEntry
}

var _ types.Cache = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{items: make(map[string]memoryEntry)}
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	entry, ok := m.items[key]
	m.mu.RUnlock()
	if !ok || (!entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt)) {
		return "", ErrNotFound
	}
	return entry.value, nil
}

func (m *Memory) SetEx(_ context.Context, key, value string, expiresAt time.Duration) error {
	m.mu.Lock()
	m.items[key] = memoryEntry{value: value, expiresAt: time.Now().Add(expiresAt)}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Del(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Expire(_ context.Context, key string, expiration time.Duration) error {
	m.mu.Lock()
	if entry, ok := m.items[key]; ok {
		entry.expiresAt = time.Now().Add(expiration)
		m.items[key] = entry
	}
	m.mu.Unlock()
	return nil
}
