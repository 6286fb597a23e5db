package session

import (
	"context"
	"sync"
	"time"
)

// MemStore is an in-process Store for single-instance deployments and tests.
// Expired entries are dropped lazily on lookup.
type MemStore struct {
	mu      sync.Mutex
	entries map[string]memEntry
	now     func() time.Time
}

type memEntry struct {
	rec       Record
	expiresAt time.Time
}

func NewMemStore() *MemStore {
	return &MemStore{
		entries: make(map[string]memEntry),
		now:     time.Now,
	}
}

func (s *MemStore) Save(_ context.Context, tokenHash string, rec Record, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[tokenHash] = memEntry{rec: rec, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemStore) Lookup(_ context.Context, tokenHash string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[tokenHash]
	if !ok {
		return Record{}, ErrNotFound
	}
	if s.now().After(entry.expiresAt) {
		delete(s.entries, tokenHash)
		return Record{}, ErrNotFound
	}
	return entry.rec, nil
}

func (s *MemStore) Revoke(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, tokenHash)
	return nil
}
