package classifier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurodetect-server/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	return NewClient(domain.ClassifierConfig{
		BaseURL:   server.URL,
		Timeout:   5 * time.Second,
		RateLimit: 100,
	}, logger)
}

func TestClassify_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/analysis", r.URL.Path)
		assert.Contains(t, r.Header.Get("Content-Type"), "multipart/form-data")

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "recording.csv", header.Filename)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"results": {
				"QDA": {"predicted_class": "Seizure Detected", "confidence": 89.7, "probabilities": [0.05, 0.9, 0.05]},
				"TabNet": {"predicted_class": "normal", "confidence": 75.2}
			}
		}`))
	})

	results, err := client.Classify(context.Background(), "recording.csv", strings.NewReader("1,2,3"))
	require.NoError(t, err)
	require.Len(t, results, 2)

	qda := results[domain.ModelQDA]
	assert.Equal(t, domain.KindSeizure, qda.PredictedClass)
	assert.Equal(t, 89.7, qda.Confidence)
	assert.Equal(t, []float64{0.05, 0.9, 0.05}, qda.Probabilities)

	assert.Equal(t, domain.KindNormal, results[domain.ModelTabNet].PredictedClass)
}

func TestClassify_ModelsEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"models": {"TabNet": {"predicted_class": "Neurodegeneration Detected", "confidence": 64.1}}}`))
	})

	results, err := client.Classify(context.Background(), "a.csv", strings.NewReader("x"))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domain.KindNeurodegeneration, results[domain.ModelTabNet].PredictedClass)
}

func TestClassify_ServerErrorWithDetail(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail": "Analysis failed: bad feature count"}`))
	})

	_, err := client.Classify(context.Background(), "a.csv", strings.NewReader("x"))
	require.Error(t, err)

	var cerr *domain.ClassificationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, http.StatusInternalServerError, cerr.StatusCode)
	assert.Contains(t, cerr.Message, "bad feature count")
}

func TestClassify_ServerErrorRawTextFallback(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream unavailable"))
	})

	_, err := client.Classify(context.Background(), "a.csv", strings.NewReader("x"))

	var cerr *domain.ClassificationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "upstream unavailable", cerr.Message)
}

func TestClassify_MalformedBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results": `))
	})

	_, err := client.Classify(context.Background(), "a.csv", strings.NewReader("x"))

	var cerr *domain.ClassificationError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, cerr.Message, "malformed")
}

func TestClassify_DropsUnrecognizedClass(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results": {
			"QDA": {"predicted_class": "Error", "confidence": 0},
			"TabNet": {"predicted_class": "Normal", "confidence": 70}
		}}`))
	})

	results, err := client.Classify(context.Background(), "a.csv", strings.NewReader("x"))
	require.NoError(t, err)

	_, hasQDA := results[domain.ModelQDA]
	assert.False(t, hasQDA)
	assert.Contains(t, results, domain.ModelTabNet)
}

func TestClassify_TransportError(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	client := NewClient(domain.ClassifierConfig{
		BaseURL:   "http://127.0.0.1:1",
		Timeout:   500 * time.Millisecond,
		RateLimit: 100,
	}, logger)

	_, err := client.Classify(context.Background(), "a.csv", strings.NewReader("x"))

	var cerr *domain.ClassificationError
	require.ErrorAs(t, err, &cerr)
	assert.Zero(t, cerr.StatusCode)
}
