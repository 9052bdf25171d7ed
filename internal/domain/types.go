// Package domain contains the core business entities for EEG analysis
// result and patient record synchronization: classification outcomes,
// derived patient status and risk, and the ports the orchestrator drives.
package domain

import (
	"errors"
	"strings"
)

// ClassificationKind is the closed set of clinical statuses derived from an
// EEG classification. Display strings match the classification service's
// labels; logic never re-parses them once a kind has been assigned.
type ClassificationKind string

const (
	KindNormal            ClassificationKind = "Normal"
	KindSeizure           ClassificationKind = "Seizure Detected"
	KindNeurodegeneration ClassificationKind = "Neurodegeneration Detected"
)

// RiskLevel is the three-value severity classification derived from status.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// ModelID identifies a classification model in an analysis result. Known
// models get constants; unknown model names sent by the service remain
// representable and are retained for comparison display.
type ModelID string

const (
	ModelQDA    ModelID = "QDA"
	ModelTabNet ModelID = "TabNet"
)

// SubmissionState tracks the lifecycle of one analysis submission.
// Idle is both the initial state and the state after either terminal
// outcome. Cancellation is not supported.
type SubmissionState string

const (
	StateIdle      SubmissionState = "idle"
	StateUploading SubmissionState = "uploading"
	StateCompleted SubmissionState = "completed"
	StateFailed    SubmissionState = "failed"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrNoAnalysis  = errors.New("no analysis available")
	ErrUnknownKind = errors.New("unknown classification kind")
)

// StatusFilterAll matches every status in registry queries.
const StatusFilterAll = "all"

// IsValid reports whether the kind is one of the three known statuses.
func (k ClassificationKind) IsValid() bool {
	switch k {
	case KindNormal, KindSeizure, KindNeurodegeneration:
		return true
	default:
		return false
	}
}

// Matches reports whether the kind satisfies a status filter token.
// "all" (or empty) matches everything; otherwise the filter matches by
// case-insensitive containment, so "seizure" selects "Seizure Detected".
func (k ClassificationKind) Matches(filter string) bool {
	if filter == "" || strings.EqualFold(filter, StatusFilterAll) {
		return true
	}
	return strings.Contains(strings.ToLower(string(k)), strings.ToLower(filter))
}

// ParseClassificationKind maps a classification service label onto a kind.
// The service reports labels in varying casings ("normal", "Seizure
// Detected", "neurodegeneration"), so matching is tolerant; parsing happens
// once at the transport boundary.
func ParseClassificationKind(label string) (ClassificationKind, error) {
	l := strings.ToLower(strings.TrimSpace(label))
	switch {
	case strings.Contains(l, "seizure"):
		return KindSeizure, nil
	case strings.Contains(l, "neurodegeneration"):
		return KindNeurodegeneration, nil
	case strings.Contains(l, "normal"):
		return KindNormal, nil
	default:
		return "", ErrUnknownKind
	}
}

// RiskForKind derives the risk level for a clinical status. The mapping is a
// pure function and is held fixed: Normal carries low risk, seizure findings
// high, neurodegeneration findings medium.
func RiskForKind(kind ClassificationKind) RiskLevel {
	switch kind {
	case KindSeizure:
		return RiskHigh
	case KindNeurodegeneration:
		return RiskMedium
	default:
		return RiskLow
	}
}

// primaryModelOrder is the preference order used to pick the model whose
// predicted class determines the derived patient status.
var primaryModelOrder = []ModelID{ModelQDA, ModelTabNet}
