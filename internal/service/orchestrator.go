// Package service implements the submission pipeline and the aggregate
// computations over the patient registry.
package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/neurodetect-server/internal/domain"
)

// ErrSubmissionInProgress is returned when a submission arrives while a
// previous one is still uploading. Submissions are serialized, not queued.
var ErrSubmissionInProgress = errors.New("a submission is already in progress")

// Clock abstracts time for deterministic tests.
type Clock func() time.Time

// Listener receives the record of each successful submission, after both
// stores have been updated.
type Listener func(record *domain.AnalysisRecord)

// Orchestrator drives one submission end to end: validate, classify through
// the external service, persist the latest analysis, append the derived
// patient record, notify listeners.
type Orchestrator struct {
	classifier domain.ClassificationClient
	results    domain.ResultStore
	registry   domain.PatientRegistry
	clock      Clock
	log        *logrus.Logger

	mu        sync.Mutex
	state     domain.SubmissionState
	listeners []Listener
}

// NewOrchestrator creates an orchestrator in the idle state.
func NewOrchestrator(classifier domain.ClassificationClient, results domain.ResultStore, registry domain.PatientRegistry, logger *logrus.Logger) *Orchestrator {
	return &Orchestrator{
		classifier: classifier,
		results:    results,
		registry:   registry,
		clock:      time.Now,
		log:        logger,
		state:      domain.StateIdle,
	}
}

// WithClock replaces the time source, used by tests.
func (o *Orchestrator) WithClock(clock Clock) *Orchestrator {
	o.clock = clock
	return o
}

// Subscribe registers a listener for successful submissions. Listeners run
// synchronously on the submitting goroutine.
func (o *Orchestrator) Subscribe(l Listener) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.listeners = append(o.listeners, l)
}

// State returns the current submission state.
func (o *Orchestrator) State() domain.SubmissionState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Submit runs one analysis submission. Validation and classification
// failures leave both stores untouched; there is no retry. A second call
// while one is uploading fails with ErrSubmissionInProgress.
func (o *Orchestrator) Submit(ctx context.Context, fileName string, file io.Reader, info domain.PatientInfo) (*domain.AnalysisRecord, error) {
	if err := validateSubmission(fileName, file, info); err != nil {
		return nil, err
	}

	if err := o.begin(); err != nil {
		return nil, err
	}

	record, err := o.run(ctx, fileName, file, info)
	if err != nil {
		o.finish(domain.StateFailed)
		return nil, err
	}
	o.finish(domain.StateCompleted)

	for _, l := range o.snapshotListeners() {
		l(record)
	}
	return record, nil
}

func validateSubmission(fileName string, file io.Reader, info domain.PatientInfo) error {
	if file == nil {
		return domain.NewValidationError("file", "a recording file is required")
	}
	if fileName == "" {
		return domain.NewValidationError("file", "the recording file needs a name")
	}
	if info.Name == "" {
		return domain.NewValidationError("patient_name", "patient name is required")
	}
	return nil
}

// begin moves the machine to Uploading, rejecting a second in-flight
// submission. Completed and Failed count as resting states: the next
// submission passes back through Idle.
func (o *Orchestrator) begin() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == domain.StateUploading {
		return ErrSubmissionInProgress
	}
	o.state = domain.StateUploading
	return nil
}

// finish records the terminal outcome, observable via State until the next
// submission begins.
func (o *Orchestrator) finish(outcome domain.SubmissionState) {
	o.mu.Lock()
	o.state = outcome
	o.mu.Unlock()
}

func (o *Orchestrator) run(ctx context.Context, fileName string, file io.Reader, info domain.PatientInfo) (*domain.AnalysisRecord, error) {
	results, err := o.classifier.Classify(ctx, fileName, file)
	if err != nil {
		o.log.WithError(err).WithField("file_name", fileName).Warn("Classification failed")
		return nil, err
	}

	record := &domain.AnalysisRecord{
		Results:   results,
		Patient:   info,
		FileName:  fileName,
		Timestamp: o.clock().UTC(),
	}

	// The derived patient status comes from the primary model; a response
	// with no recognized model is a classification failure and nothing is
	// persisted.
	_, primary, err := record.PrimaryResult()
	if err != nil {
		return nil, domain.NewClassificationError(0, "response contains no recognized model results")
	}

	if err := o.results.Persist(ctx, record); err != nil {
		return nil, err
	}

	patient, err := o.registry.Create(ctx, info, primary.PredictedClass,
		domain.RiskForKind(primary.PredictedClass), record.Timestamp)
	if err != nil {
		// The result slot was already overwritten; the stores are not
		// transactional across backends, so surface the error and record
		// the partial write.
		o.log.WithError(err).Error("Patient record append failed after analysis persist")
		return nil, err
	}

	o.log.WithFields(logrus.Fields{
		"file_name":  fileName,
		"patient_id": patient.ID,
		"status":     patient.Status,
		"risk_level": patient.RiskLevel,
	}).Info("Submission completed")

	return record, nil
}

func (o *Orchestrator) snapshotListeners() []Listener {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Listener(nil), o.listeners...)
}
