package secrets

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/alertdesk/alertdesk/internal/config"
)

func init() {
	Register("memory", func(_ *config.Config, _ *sql.DB) (Store, error) {
		return NewMemoryStore(), nil
	})
}

// MemoryStore is an in-process secret store for tests and local development.
// It counts writes so tests can assert that an operation performed no
// redundant persistence.
type MemoryStore struct {
	mu      sync.RWMutex
	data    map[string][]byte
	writes  int
	deletes int
}

// NewMemoryStore creates an empty in-memory secret store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Write stores value under key, overwriting any existing secret.
func (s *MemoryStore) Write(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	s.data[key] = cp
	s.writes++
	return nil
}

// Read returns the secret stored under key, or ErrSecretNotFound.
func (s *MemoryStore) Read(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.data[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSecretNotFound, key)
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	return cp, nil
}

// Delete removes the secret under key. Deleting an absent key is not an error.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	s.deletes++
	return nil
}

// WriteCount returns the number of Write calls observed.
func (s *MemoryStore) WriteCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

// Len returns the number of stored secrets.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
