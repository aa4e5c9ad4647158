package results

import (
	"context"
	"sync"

	"github.com/BaSui01/taskflow/types"
)

// MemoryStore is a process-local Store. Suitable for tests and for runs
// whose results never need to outlive the process.
type MemoryStore struct {
	mu       sync.RWMutex
	payloads map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{payloads: make(map[string][]byte)}
}

// Name implements Store.
func (s *MemoryStore) Name() string { return "memory" }

// Write implements Store.
func (s *MemoryStore) Write(_ context.Context, key string, payload []byte) (*types.ResultRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads[key] = append([]byte(nil), payload...)
	return &types.ResultRef{Backend: s.Name(), StorageKey: key}, nil
}

// Read implements Store.
func (s *MemoryStore) Read(_ context.Context, ref *types.ResultRef) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	payload, ok := s.payloads[ref.StorageKey]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), payload...), nil
}

// Delete removes a payload. Used by tests to simulate external data loss.
func (s *MemoryStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.payloads, key)
}
