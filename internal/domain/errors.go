package domain

import (
	"fmt"
)

// ValidationError reports a submission rejected before any network call.
// The stores are guaranteed untouched when one is returned.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ClassificationError reports a failed classification attempt: a transport
// failure, a non-success response from the service, or a response missing
// every recognized model key. Message carries the server-provided detail
// when one was available, otherwise the raw response text.
type ClassificationError struct {
	StatusCode int    `json:"status_code,omitempty"`
	Message    string `json:"message"`
}

func (e *ClassificationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("classification failed (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("classification failed: %s", e.Message)
}

// NewClassificationError creates a new ClassificationError.
func NewClassificationError(statusCode int, message string) *ClassificationError {
	return &ClassificationError{StatusCode: statusCode, Message: message}
}
