package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurodetect-server/internal/domain"
	"github.com/neurodetect-server/internal/registry"
	"github.com/neurodetect-server/internal/resultstore"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// stubClassifier returns canned results or an error, optionally blocking
// until released to exercise the busy gate.
type stubClassifier struct {
	results map[domain.ModelID]domain.ClassificationResult
	err     error
	block   chan struct{}
	calls   int
	mu      sync.Mutex
}

func (c *stubClassifier) Classify(ctx context.Context, fileName string, payload io.Reader) (map[domain.ModelID]domain.ClassificationResult, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.block != nil {
		<-c.block
	}
	if c.err != nil {
		return nil, c.err
	}
	return c.results, nil
}

func (c *stubClassifier) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func seizureResults() map[domain.ModelID]domain.ClassificationResult {
	return map[domain.ModelID]domain.ClassificationResult{
		domain.ModelQDA: {
			PredictedClass: domain.KindSeizure,
			Confidence:     91.2,
			Probabilities:  []float64{0.05, 0.91, 0.04},
		},
		domain.ModelTabNet: {
			PredictedClass: domain.KindNormal,
			Confidence:     55.0,
		},
	}
}

var fixedNow = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func newTestOrchestrator(classifier domain.ClassificationClient) (*Orchestrator, *resultstore.MemoryStore, *registry.MemoryRegistry) {
	results := resultstore.NewMemoryStore()
	reg := registry.NewMemoryRegistry(false)
	orch := NewOrchestrator(classifier, results, reg, testLogger()).
		WithClock(func() time.Time { return fixedNow })
	return orch, results, reg
}

func TestOrchestrator_SuccessfulSubmission(t *testing.T) {
	classifier := &stubClassifier{results: seizureResults()}
	orch, results, reg := newTestOrchestrator(classifier)
	ctx := context.Background()

	record, err := orch.Submit(ctx, "eeg_recording.csv", strings.NewReader("data"),
		domain.PatientInfo{Name: "Jane Doe", Age: 29})
	require.NoError(t, err)

	// The slot holds the new record.
	stored, err := results.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, record, stored)
	assert.Equal(t, "eeg_recording.csv", stored.FileName)
	assert.Equal(t, fixedNow, stored.Timestamp)

	// The derived patient record follows the QDA verdict.
	patients, err := reg.Query(ctx, "", domain.StatusFilterAll)
	require.NoError(t, err)
	require.Len(t, patients, 1)
	assert.Equal(t, "Jane Doe", patients[0].Name)
	assert.Equal(t, domain.KindSeizure, patients[0].Status)
	assert.Equal(t, domain.RiskHigh, patients[0].RiskLevel)
	assert.Equal(t, fixedNow, patients[0].LastTestDate)

	assert.Equal(t, domain.StateCompleted, orch.State())
}

func TestOrchestrator_SecondSubmissionAppends(t *testing.T) {
	classifier := &stubClassifier{results: seizureResults()}
	orch, results, reg := newTestOrchestrator(classifier)
	ctx := context.Background()

	_, err := orch.Submit(ctx, "first.csv", strings.NewReader("a"),
		domain.PatientInfo{Name: "Jane Doe"})
	require.NoError(t, err)
	_, err = orch.Submit(ctx, "second.csv", strings.NewReader("b"),
		domain.PatientInfo{Name: "Bob Ray"})
	require.NoError(t, err)

	// The analysis slot was replaced, the registry grew.
	stored, err := results.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second.csv", stored.FileName)

	count, err := reg.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestOrchestrator_ValidationFailuresTouchNothing(t *testing.T) {
	classifier := &stubClassifier{results: seizureResults()}
	orch, results, reg := newTestOrchestrator(classifier)
	ctx := context.Background()

	cases := []struct {
		name     string
		fileName string
		file     io.Reader
		info     domain.PatientInfo
	}{
		{"missing patient name", "eeg.csv", strings.NewReader("x"), domain.PatientInfo{Age: 30}},
		{"nil file", "eeg.csv", nil, domain.PatientInfo{Name: "Jane Doe"}},
		{"empty file name", "", strings.NewReader("x"), domain.PatientInfo{Name: "Jane Doe"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := orch.Submit(ctx, tc.fileName, tc.file, tc.info)

			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
		})
	}

	// No network call, no writes.
	assert.Zero(t, classifier.callCount())
	_, err := results.Latest(ctx)
	assert.ErrorIs(t, err, domain.ErrNoAnalysis)
	count, err := reg.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestOrchestrator_ClassificationFailureTouchesNothing(t *testing.T) {
	classifier := &stubClassifier{err: domain.NewClassificationError(500, "model crashed")}
	orch, results, reg := newTestOrchestrator(classifier)
	ctx := context.Background()

	_, err := orch.Submit(ctx, "eeg.csv", strings.NewReader("x"),
		domain.PatientInfo{Name: "Jane Doe"})

	var cerr *domain.ClassificationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, 500, cerr.StatusCode)

	_, err = results.Latest(ctx)
	assert.ErrorIs(t, err, domain.ErrNoAnalysis)
	count, err := reg.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Equal(t, domain.StateFailed, orch.State())

	// One failure does not wedge the orchestrator.
	classifier.err = nil
	classifier.results = seizureResults()
	_, err = orch.Submit(ctx, "eeg.csv", strings.NewReader("x"),
		domain.PatientInfo{Name: "Jane Doe"})
	require.NoError(t, err)
}

func TestOrchestrator_NoRecognizedModelTouchesNothing(t *testing.T) {
	classifier := &stubClassifier{results: map[domain.ModelID]domain.ClassificationResult{
		"Ensemble": {PredictedClass: domain.KindNormal, Confidence: 70},
	}}
	orch, results, reg := newTestOrchestrator(classifier)
	ctx := context.Background()

	_, err := orch.Submit(ctx, "eeg.csv", strings.NewReader("x"),
		domain.PatientInfo{Name: "Jane Doe"})

	var cerr *domain.ClassificationError
	require.ErrorAs(t, err, &cerr)

	_, err = results.Latest(ctx)
	assert.ErrorIs(t, err, domain.ErrNoAnalysis)
	count, err := reg.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestOrchestrator_BusyGateRejectsConcurrentSubmission(t *testing.T) {
	classifier := &stubClassifier{results: seizureResults(), block: make(chan struct{})}
	orch, _, _ := newTestOrchestrator(classifier)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := orch.Submit(ctx, "slow.csv", strings.NewReader("x"),
			domain.PatientInfo{Name: "Jane Doe"})
		done <- err
	}()

	require.Eventually(t, func() bool {
		return orch.State() == domain.StateUploading
	}, time.Second, time.Millisecond)

	_, err := orch.Submit(ctx, "second.csv", strings.NewReader("y"),
		domain.PatientInfo{Name: "Bob Ray"})
	assert.ErrorIs(t, err, ErrSubmissionInProgress)

	close(classifier.block)
	require.NoError(t, <-done)
	assert.Equal(t, domain.StateCompleted, orch.State())
}

func TestOrchestrator_ListenersNotifiedOnSuccessOnly(t *testing.T) {
	classifier := &stubClassifier{err: errors.New("down")}
	orch, _, _ := newTestOrchestrator(classifier)
	ctx := context.Background()

	var notified []*domain.AnalysisRecord
	orch.Subscribe(func(rec *domain.AnalysisRecord) {
		notified = append(notified, rec)
	})

	_, err := orch.Submit(ctx, "eeg.csv", strings.NewReader("x"),
		domain.PatientInfo{Name: "Jane Doe"})
	require.Error(t, err)
	assert.Empty(t, notified)

	classifier.err = nil
	classifier.results = seizureResults()
	record, err := orch.Submit(ctx, "eeg.csv", strings.NewReader("x"),
		domain.PatientInfo{Name: "Jane Doe"})
	require.NoError(t, err)
	require.Len(t, notified, 1)
	assert.Equal(t, record, notified[0])
}

func TestOrchestrator_TabNetFallbackDeterminesStatus(t *testing.T) {
	classifier := &stubClassifier{results: map[domain.ModelID]domain.ClassificationResult{
		domain.ModelTabNet: {PredictedClass: domain.KindNeurodegeneration, Confidence: 64.5},
	}}
	orch, _, reg := newTestOrchestrator(classifier)
	ctx := context.Background()

	_, err := orch.Submit(ctx, "eeg.csv", strings.NewReader("x"),
		domain.PatientInfo{Name: "Jane Doe"})
	require.NoError(t, err)

	patients, err := reg.Query(ctx, "", domain.StatusFilterAll)
	require.NoError(t, err)
	require.Len(t, patients, 1)
	assert.Equal(t, domain.KindNeurodegeneration, patients[0].Status)
	assert.Equal(t, domain.RiskMedium, patients[0].RiskLevel)
}
