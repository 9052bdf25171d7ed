package domain

import (
	"context"
	"io"
	"time"
)

// ClassificationClient submits a recording to the external classification
// service and returns the per-model results. The core consumes this
// contract; it does not implement the models themselves.
type ClassificationClient interface {
	Classify(ctx context.Context, fileName string, payload io.Reader) (map[ModelID]ClassificationResult, error)
}

// ResultStore is the single-slot durable holder for the most recent
// analysis. Persist unconditionally replaces the current value; Latest
// returns ErrNoAnalysis when the slot is empty or its payload could not be
// decoded (corruption is logged and treated as absence, never surfaced).
type ResultStore interface {
	Persist(ctx context.Context, record *AnalysisRecord) error
	Latest(ctx context.Context) (*AnalysisRecord, error)
	Close() error
}

// PatientRegistry is the ordered durable collection of patient records.
// Creation appends, deletion removes exactly one matching record and is a
// no-op when the id is absent, and queries preserve insertion order.
type PatientRegistry interface {
	Create(ctx context.Context, info PatientInfo, status ClassificationKind, risk RiskLevel, testDate time.Time) (*PatientRecord, error)
	Delete(ctx context.Context, id string) error
	Query(ctx context.Context, searchTerm, statusFilter string) ([]*PatientRecord, error)
	Count(ctx context.Context) (int, error)
	Close() error
}
