// Package idemcache stores responses for idempotent replay. A repeated
// request with the same key, method, and path short-circuits before any
// guardrail or admission work and returns the cached status and body.
package idemcache

import (
	"context"
	"sync"
	"time"
)

// CachedResponse is the replayable result of a completed mutation.
type CachedResponse struct {
	Status int
	Body   []byte
}

// Store is the injectable cache contract. Set is an unconditional
// overwrite; two requests racing on one unresolved key resolve to
// whichever completes first.
type Store interface {
	Get(ctx context.Context, key string) (*CachedResponse, bool, error)
	Set(ctx context.Context, key string, resp CachedResponse, ttl time.Duration) error
}

// Key builds the composite cache key.
func Key(idempotencyKey, method, path string) string {
	return idempotencyKey + ":" + method + ":" + path
}

type memoryStore struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]memoryEntry
}

type memoryEntry struct {
	resp      CachedResponse
	expiresAt time.Time
}

func NewMemoryStore(now func() time.Time) Store {
	if now == nil {
		now = time.Now
	}
	return &memoryStore{now: now, entries: make(map[string]memoryEntry)}
}

func (m *memoryStore) Get(_ context.Context, key string) (*CachedResponse, bool, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep(now)

	entry, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	resp := entry.resp
	return &resp, true, nil
}

func (m *memoryStore) Set(_ context.Context, key string, resp CachedResponse, ttl time.Duration) error {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep(now)

	m.entries[key] = memoryEntry{resp: resp, expiresAt: now.Add(ttl)}
	return nil
}

func (m *memoryStore) sweep(now time.Time) {
	for key, entry := range m.entries {
		if now.After(entry.expiresAt) {
			delete(m.entries, key)
		}
	}
}
