package domain

import (
	"time"
)

// ClassificationResult is one model's verdict for a submitted recording.
// Confidence is a percentage in [0,100]. Probabilities, when present, is the
// (normal, seizure, neurodegeneration) triple reported by the model; the
// values are advisory and are not re-normalized or validated here.
type ClassificationResult struct {
	PredictedClass ClassificationKind `json:"predicted_class"`
	Confidence     float64            `json:"confidence"`
	Probabilities  []float64          `json:"probabilities,omitempty"`
}

// PatientInfo is the caller-supplied patient context attached to a
// submission. Name is required; the remaining fields are free-form.
type PatientInfo struct {
	Name      string `json:"name"`
	Age       int    `json:"age"`
	MedicalID string `json:"medical_id"`
	Notes     string `json:"notes,omitempty"`
}

// AnalysisRecord is the multi-model classification outcome plus submission
// metadata for one uploaded file. Records are immutable once created; the
// result store holds at most the single most recent one.
type AnalysisRecord struct {
	Results   map[ModelID]ClassificationResult `json:"results"`
	Patient   PatientInfo                      `json:"patient_info"`
	FileName  string                           `json:"file_name"`
	Timestamp time.Time                        `json:"timestamp"`
}

// PrimaryResult selects the model that determines the derived patient
// status: QDA when present, otherwise TabNet. It returns ErrNotFound when
// neither recognized model appears in the record.
func (r *AnalysisRecord) PrimaryResult() (ModelID, ClassificationResult, error) {
	for _, id := range primaryModelOrder {
		if res, ok := r.Results[id]; ok {
			return id, res, nil
		}
	}
	return "", ClassificationResult{}, ErrNotFound
}

// PatientRecord is a durable clinical entry derived from one analysis.
// Records are appended on successful submissions and removed only by
// explicit deletion; they are never mutated in place.
type PatientRecord struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Age          int                `json:"age"`
	MedicalID    string             `json:"medical_id"`
	LastTestDate time.Time          `json:"last_test_date"`
	Status       ClassificationKind `json:"status"`
	RiskLevel    RiskLevel          `json:"risk_level"`
	Timestamp    time.Time          `json:"timestamp"`
}

// AnalysisExport is the on-demand export document for the current analysis.
type AnalysisExport struct {
	Patient   PatientInfo                      `json:"patient"`
	Analysis  map[ModelID]ClassificationResult `json:"analysis"`
	Timestamp time.Time                        `json:"timestamp"`
	FileName  string                           `json:"file_name"`
}

// PatientListExport is the export envelope for a filtered patient list.
type PatientListExport struct {
	Version    string           `json:"version"`
	ExportedAt time.Time        `json:"exported_at"`
	Count      int              `json:"count"`
	Patients   []*PatientRecord `json:"patients"`
}
