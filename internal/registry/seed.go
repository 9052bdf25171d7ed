package registry

import (
	"time"

	"github.com/neurodetect-server/internal/domain"
)

// SeedRecords returns the fixed demonstration set an empty registry is
// populated with. The set is deterministic: same records, same ids, same
// timestamps on every call.
func SeedRecords() []*domain.PatientRecord {
	return []*domain.PatientRecord{
		{
			ID:           "MED-2024-001",
			Name:         "John Smith",
			Age:          45,
			MedicalID:    "NHS-4471920",
			LastTestDate: time.Date(2024, 3, 12, 9, 30, 0, 0, time.UTC),
			Status:       domain.KindNormal,
			RiskLevel:    domain.RiskLow,
			Timestamp:    time.Date(2024, 3, 12, 9, 45, 0, 0, time.UTC),
		},
		{
			ID:           "MED-2024-002",
			Name:         "Sarah Johnson",
			Age:          32,
			MedicalID:    "NHS-5583011",
			LastTestDate: time.Date(2024, 3, 18, 14, 15, 0, 0, time.UTC),
			Status:       domain.KindSeizure,
			RiskLevel:    domain.RiskHigh,
			Timestamp:    time.Date(2024, 3, 18, 14, 32, 0, 0, time.UTC),
		},
		{
			ID:           "MED-2024-003",
			Name:         "Michael Brown",
			Age:          58,
			MedicalID:    "NHS-6612404",
			LastTestDate: time.Date(2024, 3, 25, 11, 0, 0, 0, time.UTC),
			Status:       domain.KindNeurodegeneration,
			RiskLevel:    domain.RiskMedium,
			Timestamp:    time.Date(2024, 3, 25, 11, 20, 0, 0, time.UTC),
		},
	}
}
