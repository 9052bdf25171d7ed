package service

import (
	"time"

	"github.com/neurodetect-server/internal/domain"
)

// patientExportVersion identifies the patient-list export document format.
const patientExportVersion = "1.0"

// BuildAnalysisExport shapes the current analysis into its download document.
func BuildAnalysisExport(record *domain.AnalysisRecord) *domain.AnalysisExport {
	return &domain.AnalysisExport{
		Patient:   record.Patient,
		Analysis:  record.Results,
		Timestamp: record.Timestamp,
		FileName:  record.FileName,
	}
}

// BuildPatientListExport wraps a filtered patient list in the versioned
// export envelope. An empty list exports with a zero count, not an error.
func BuildPatientListExport(records []*domain.PatientRecord, now time.Time) *domain.PatientListExport {
	return &domain.PatientListExport{
		Version:    patientExportVersion,
		ExportedAt: now.UTC(),
		Count:      len(records),
		Patients:   records,
	}
}
