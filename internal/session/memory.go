package session

import (
	"context"
	"sync"
	"time"

	"github.com/filevault/filevault/internal/entity"
)

type memoryEntry struct {
	ownerID   string
	expiresAt time.Time
}

// MemoryStore is an in-process Store for development and tests. Expired
// entries are dropped lazily on read.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Get(ctx context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[keyPrefix+token]
	if !ok {
		return "", entity.ErrNotFound
	}
	if time.Now().After(entry.expiresAt) {
		delete(s.entries, keyPrefix+token)
		return "", entity.ErrNotFound
	}
	return entry.ownerID, nil
}

func (s *MemoryStore) Set(ctx context.Context, token, ownerID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[keyPrefix+token] = memoryEntry{
		ownerID:   ownerID,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

func (s *MemoryStore) Del(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, keyPrefix+token)
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}
