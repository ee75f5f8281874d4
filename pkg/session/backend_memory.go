package session

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	blob      []byte
	expiresAt time.Time
}

// MemoryBackend keeps blobs in process memory. Suitable for development
// and tests; contents are lost on restart.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get returns a copy of the blob stored under key. Expired blobs are
// removed and reported as ErrNotFound.
func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	if !m.expired(e) {
		return append([]byte(nil), e.blob...), nil
	}

	// A Put may have replaced the entry since the read lock was released.
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok = m.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	if m.expired(e) {
		delete(m.entries, key)
		return nil, ErrNotFound
	}
	return append([]byte(nil), e.blob...), nil
}

func (m *MemoryBackend) expired(e memoryEntry) bool {
	return !e.expiresAt.IsZero() && m.now().After(e.expiresAt)
}

// Put stores a copy of blob. A non-positive ttl never expires.
func (m *MemoryBackend) Put(_ context.Context, key string, blob []byte, ttl time.Duration) error {
	e := memoryEntry{blob: append([]byte(nil), blob...)}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

// Delete removes key. Missing keys are not an error.
func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored blobs, expired ones included.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
