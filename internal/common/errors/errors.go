// Package errors provides standardized error handling for the ranking pipeline.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Dependency errors: degrade, never fail the request.
	ErrCodeDependencyUnavailable ErrorCode = "DEPENDENCY_UNAVAILABLE"
	ErrCodeFeatureStoreTimeout   ErrorCode = "FEATURE_STORE_TIMEOUT"
	ErrCodeCatalogUnavailable    ErrorCode = "CATALOG_UNAVAILABLE"

	// ML ranker errors: trigger the rule fallback, never surface to callers.
	ErrCodeModelNotLoaded ErrorCode = "MODEL_NOT_LOADED"
	ErrCodeModelUnhealthy ErrorCode = "MODEL_UNHEALTHY"
	ErrCodeSchemaMismatch ErrorCode = "SCHEMA_MISMATCH"
	ErrCodeScoreTimeout   ErrorCode = "SCORE_TIMEOUT"

	// The only caller-visible error class.
	ErrCodeInvalidRequest ErrorCode = "INVALID_REQUEST"

	// Feedback path: drop with a counted metric, never block.
	ErrCodeQueueOverflow    ErrorCode = "QUEUE_OVERFLOW"
	ErrCodeEventWriteFailed ErrorCode = "EVENT_WRITE_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// CodeOf extracts the ErrorCode from err, or "" if err is not a StandardError.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ""
}

// ==========================
// 2. Error Constructors
// ==========================

// NewDependencyUnavailableError creates a retryable dependency error. The
// orchestrator absorbs it by serving a degraded result.
func NewDependencyUnavailableError(dependency string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDependencyUnavailable,
		Message:   fmt.Sprintf("Dependency '%s' unavailable", dependency),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewFeatureStoreTimeoutError creates a retryable feature-store timeout error.
func NewFeatureStoreTimeoutError(timeout time.Duration) *StandardError {
	return &StandardError{
		Code:      ErrCodeFeatureStoreTimeout,
		Message:   "Feature store read exceeded timeout",
		Details:   fmt.Sprintf("timeout: %s", timeout),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCatalogUnavailableError creates a retryable catalog error.
func NewCatalogUnavailableError(err error) *StandardError {
	details := "catalog snapshot is empty"
	if err != nil {
		details = err.Error()
	}
	return &StandardError{
		Code:      ErrCodeCatalogUnavailable,
		Message:   "Proposition catalog unavailable",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewModelNotLoadedError creates a non-retryable model error; the rule path
// serves until a model is loaded.
func NewModelNotLoadedError() *StandardError {
	return &StandardError{
		Code:      ErrCodeModelNotLoaded,
		Message:   "No model artifact loaded",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewModelUnhealthyError creates a retryable model health error.
func NewModelUnhealthyError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeModelUnhealthy,
		Message:   "ML ranker health check failed",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSchemaMismatchError creates a non-retryable schema-version error. The
// vector must never be silently coerced to the model's schema.
func NewSchemaMismatchError(want, got string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSchemaMismatch,
		Message:   "Feature vector schema version does not match loaded model",
		Details:   fmt.Sprintf("model schema: %s, vector schema: %s", want, got),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewScoreTimeoutError creates a retryable per-call scoring timeout error.
func NewScoreTimeoutError(timeout time.Duration) *StandardError {
	return &StandardError{
		Code:      ErrCodeScoreTimeout,
		Message:   "Ranker invocation exceeded timeout",
		Details:   fmt.Sprintf("timeout: %s", timeout),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidRequestError creates a non-retryable request validation error,
// the only error class surfaced to callers.
func NewInvalidRequestError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidRequest,
		Message:   "Request validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueueOverflowError creates a non-retryable queue overflow error.
func NewQueueOverflowError(capacity int) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueueOverflow,
		Message:   "Feedback queue at capacity, oldest event dropped",
		Details:   fmt.Sprintf("capacity: %d", capacity),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewEventWriteFailedError creates a retryable event-store write error.
func NewEventWriteFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeEventWriteFailed,
		Message:   "Event store write failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// IsRetryable reports whether err carries a retryable StandardError.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return false
}

// IsCallerVisible reports whether the error may be surfaced to the caller.
// Everything except INVALID_REQUEST is absorbed inside the pipeline.
func IsCallerVisible(err error) bool {
	return CodeOf(err) == ErrCodeInvalidRequest
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "MODEL") || strings.Contains(codeStr, "SCHEMA") || strings.Contains(codeStr, "SCORE"):
		return "ML"
	case strings.Contains(codeStr, "FEATURE") || strings.Contains(codeStr, "CATALOG") || strings.Contains(codeStr, "DEPENDENCY"):
		return "DEPENDENCY"
	case strings.Contains(codeStr, "QUEUE") || strings.Contains(codeStr, "EVENT"):
		return "FEEDBACK"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
