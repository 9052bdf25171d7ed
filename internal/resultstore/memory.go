package resultstore

import (
	"context"
	"sync"

	"github.com/neurodetect-server/internal/domain"
)

// MemoryStore is an in-memory ResultStore used by tests and the "memory"
// storage backend.
type MemoryStore struct {
	mu     sync.RWMutex
	record *domain.AnalysisRecord
}

// NewMemoryStore creates an empty in-memory result store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Persist unconditionally replaces the current value.
func (s *MemoryStore) Persist(ctx context.Context, record *domain.AnalysisRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = record
	return nil
}

// Latest returns the current value or ErrNoAnalysis.
func (s *MemoryStore) Latest(ctx context.Context) (*domain.AnalysisRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.record == nil {
		return nil, domain.ErrNoAnalysis
	}
	return s.record, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }
