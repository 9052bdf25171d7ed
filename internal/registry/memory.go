package registry

import (
	"context"
	"sync"
	"time"

	"github.com/neurodetect-server/internal/domain"
)

// MemoryRegistry is an in-memory PatientRegistry used by tests and by the
// "memory" storage backend. It preserves insertion order.
type MemoryRegistry struct {
	mu      sync.RWMutex
	records []*domain.PatientRecord
}

// NewMemoryRegistry creates an in-memory registry, seeded with the
// demonstration records when seed is true.
func NewMemoryRegistry(seed bool) *MemoryRegistry {
	r := &MemoryRegistry{}
	if seed {
		r.records = SeedRecords()
	}
	return r
}

// Create appends a new patient record derived from one analysis.
func (r *MemoryRegistry) Create(ctx context.Context, info domain.PatientInfo, status domain.ClassificationKind, risk domain.RiskLevel, testDate time.Time) (*domain.PatientRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := generateID(testDate.Year(), len(r.records), func(candidate string) bool {
		for _, rec := range r.records {
			if rec.ID == candidate {
				return true
			}
		}
		return false
	})

	rec := newRecord(id, info, status, risk, testDate)
	r.records = append(r.records, rec)
	return rec, nil
}

// Delete removes the matching record; absent ids are a no-op.
func (r *MemoryRegistry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, rec := range r.records {
		if rec.ID == id {
			r.records = append(r.records[:i], r.records[i+1:]...)
			return nil
		}
	}
	return nil
}

// Query returns records matching the search term and status filter in
// insertion order.
func (r *MemoryRegistry) Query(ctx context.Context, searchTerm, statusFilter string) ([]*domain.PatientRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return filterRecords(r.records, searchTerm, statusFilter), nil
}

// Count returns the number of records in the registry.
func (r *MemoryRegistry) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records), nil
}

// Close is a no-op for the in-memory registry.
func (r *MemoryRegistry) Close() error { return nil }
