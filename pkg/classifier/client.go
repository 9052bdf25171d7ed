// Package classifier implements the HTTP client for the external EEG
// classification service. The service runs the QDA and TabNet models and
// returns one result per model; this package only moves bytes and parses
// the response, it performs no inference of its own.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/neurodetect-server/internal/domain"
)

// Client calls the classification service over HTTP. Requests are rate
// limited and wrapped in a circuit breaker; there is no retry above the
// transport — a failed submission is re-initiated by the caller.
type Client struct {
	baseURL    string
	httpClient *http.Client
	rateLimit  *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	log        *logrus.Logger
}

// classifyResponse is the wire shape of a successful response. The service
// has shipped the model map under both "results" and "models"; both are
// accepted.
type classifyResponse struct {
	Results map[string]modelResult `json:"results"`
	Models  map[string]modelResult `json:"models"`
}

type modelResult struct {
	PredictedClass string    `json:"predicted_class"`
	Confidence     float64   `json:"confidence"`
	Probabilities  []float64 `json:"probabilities,omitempty"`
}

// errorResponse is the optional JSON body of a failure response.
type errorResponse struct {
	Detail string `json:"detail"`
	Error  string `json:"error"`
}

// NewClient creates a classification service client.
func NewClient(cfg domain.ClassifierConfig, logger *logrus.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 5
	}
	if cfg.Breaker.MaxRequests == 0 {
		cfg.Breaker.MaxRequests = 3
	}
	if cfg.Breaker.Interval == 0 {
		cfg.Breaker.Interval = 10 * time.Second
	}
	if cfg.Breaker.Timeout == 0 {
		cfg.Breaker.Timeout = 30 * time.Second
	}
	if cfg.Breaker.FailureThreshold == 0 {
		cfg.Breaker.FailureThreshold = 5
	}

	settings := gobreaker.Settings{
		Name:        "ClassificationService",
		MaxRequests: cfg.Breaker.MaxRequests,
		Interval:    cfg.Breaker.Interval,
		Timeout:     cfg.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.Breaker.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"circuit_breaker": name,
				"from_state":      from.String(),
				"to_state":        to.String(),
			}).Warn("Circuit breaker state changed")
		},
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimit: rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		breaker:   gobreaker.NewCircuitBreaker(settings),
		log:       logger,
	}
}

// Classify uploads a recording and returns the per-model classification
// results. Transport failures, non-success statuses and unparseable bodies
// all surface as *domain.ClassificationError.
func (c *Client) Classify(ctx context.Context, fileName string, payload io.Reader) (map[domain.ModelID]domain.ClassificationResult, error) {
	if err := c.rateLimit.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	body, contentType, err := buildMultipartBody(fileName, payload)
	if err != nil {
		return nil, fmt.Errorf("building upload body: %w", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doClassify(ctx, body, contentType)
	})
	if err != nil {
		if _, ok := err.(*domain.ClassificationError); ok {
			return nil, err
		}
		// Breaker-open and plain transport errors get wrapped so callers
		// see a single error kind for "the service did not classify".
		return nil, domain.NewClassificationError(0, err.Error())
	}

	return result.(map[domain.ModelID]domain.ClassificationResult), nil
}

func (c *Client) doClassify(ctx context.Context, body []byte, contentType string) (map[domain.ModelID]domain.ClassificationResult, error) {
	url := c.baseURL + "/api/analysis"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classification request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, domain.NewClassificationError(resp.StatusCode, extractErrorMessage(raw))
	}

	var decoded classifyResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, domain.NewClassificationError(resp.StatusCode, "malformed classification response")
	}

	entries := decoded.Results
	if len(entries) == 0 {
		entries = decoded.Models
	}

	results := make(map[domain.ModelID]domain.ClassificationResult, len(entries))
	for name, entry := range entries {
		kind, err := domain.ParseClassificationKind(entry.PredictedClass)
		if err != nil {
			c.log.WithFields(logrus.Fields{
				"model":           name,
				"predicted_class": entry.PredictedClass,
			}).Warn("Dropping model entry with unrecognized predicted class")
			continue
		}
		results[domain.ModelID(name)] = domain.ClassificationResult{
			PredictedClass: kind,
			Confidence:     entry.Confidence,
			Probabilities:  entry.Probabilities,
		}
	}

	c.log.WithFields(logrus.Fields{
		"models":      len(results),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Classification response received")

	return results, nil
}

// buildMultipartBody assembles the multipart upload the service expects:
// a single "file" part carrying the recording bytes.
func buildMultipartBody(fileName string, payload io.Reader) ([]byte, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, payload); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return buf.Bytes(), writer.FormDataContentType(), nil
}

// extractErrorMessage pulls the human-readable message out of a failure
// body: "detail" first, then "error", falling back to the raw text.
func extractErrorMessage(raw []byte) string {
	var body errorResponse
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Detail != "" {
			return body.Detail
		}
		if body.Error != "" {
			return body.Error
		}
	}
	msg := strings.TrimSpace(string(raw))
	if msg == "" {
		msg = "classification service returned no error detail"
	}
	return msg
}
