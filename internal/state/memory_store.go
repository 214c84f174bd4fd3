package state

import (
	"context"
	"sync"

	"waterwatch/internal/domain"
)

// MemoryStore keeps notification records in process memory.
// Params: in-memory map keyed by device id.
// Returns: store implementation without external dependencies.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]domain.NotificationRecord
}

// NewMemoryStore creates in-memory state store.
// Params: none.
// Returns: initialized in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]domain.NotificationRecord)}
}

// Load returns stored record.
// Params: device key.
// Returns: record or ErrNotFound.
func (s *MemoryStore) Load(_ context.Context, key string) (domain.NotificationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[key]
	if !ok {
		return domain.NotificationRecord{}, ErrNotFound
	}
	return record, nil
}

// Save writes record unconditionally.
// Params: device key and record.
// Returns: nil (in-memory update).
func (s *MemoryStore) Save(_ context.Context, key string, record domain.NotificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = record
	return nil
}

// Clear removes stored record; clearing a missing key is a no-op.
// Params: device key.
// Returns: nil (in-memory delete).
func (s *MemoryStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

// Close releases memory store resources.
// Params: none.
// Returns: nil.
func (s *MemoryStore) Close() error {
	return nil
}
