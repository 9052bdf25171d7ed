// Package registry implements the durable, ordered patient record
// collection behind the dashboard and patient-list views. Three backends
// share the same semantics: sqlite for process-local deployments, postgres
// for production, and an in-memory store for tests.
package registry

import (
	"fmt"
	"strings"
	"time"

	"github.com/neurodetect-server/internal/domain"
)

// generateID derives the next patient id. The sequence starts at count+1,
// matching the historical numbering, and advances past ids that are still
// taken so that a delete followed by a create can never mint a duplicate.
func generateID(year int, count int, taken func(string) bool) string {
	seq := count + 1
	for {
		id := fmt.Sprintf("MED-%d-%03d", year, seq)
		if !taken(id) {
			return id
		}
		seq++
	}
}

// newRecord builds the derived patient record for one successful analysis.
func newRecord(id string, info domain.PatientInfo, status domain.ClassificationKind, risk domain.RiskLevel, testDate time.Time) *domain.PatientRecord {
	return &domain.PatientRecord{
		ID:           id,
		Name:         info.Name,
		Age:          info.Age,
		MedicalID:    info.MedicalID,
		LastTestDate: testDate,
		Status:       status,
		RiskLevel:    risk,
		Timestamp:    time.Now().UTC(),
	}
}

// filterRecords applies the query semantics shared by every backend: a
// case-insensitive substring match on name or id, AND-composed with the
// status filter. Order is preserved; an empty input yields an empty slice.
func filterRecords(records []*domain.PatientRecord, searchTerm, statusFilter string) []*domain.PatientRecord {
	needle := strings.ToLower(strings.TrimSpace(searchTerm))

	filtered := make([]*domain.PatientRecord, 0, len(records))
	for _, rec := range records {
		if needle != "" &&
			!strings.Contains(strings.ToLower(rec.Name), needle) &&
			!strings.Contains(strings.ToLower(rec.ID), needle) {
			continue
		}
		if !rec.Status.Matches(statusFilter) {
			continue
		}
		filtered = append(filtered, rec)
	}
	return filtered
}
