// internal/common/errors/errors_test.go
package errors

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrCodeCatalogUnavailable, CodeOf(NewCatalogUnavailableError(nil)))
	assert.Equal(t, ErrCodeSchemaMismatch, CodeOf(NewSchemaMismatchError("fs-2", "fs-1")))
	assert.Equal(t, ErrorCode(""), CodeOf(stderrors.New("plain")))
	assert.Equal(t, ErrorCode(""), CodeOf(nil))
}

func TestRetryability(t *testing.T) {
	assert.True(t, IsRetryable(NewDependencyUnavailableError("redis", stderrors.New("down"))))
	assert.True(t, IsRetryable(NewFeatureStoreTimeoutError(40*time.Millisecond)))
	assert.True(t, IsRetryable(NewCatalogUnavailableError(nil)))
	assert.True(t, IsRetryable(NewScoreTimeoutError(50*time.Millisecond)))

	assert.False(t, IsRetryable(NewSchemaMismatchError("fs-2", "fs-1")))
	assert.False(t, IsRetryable(NewInvalidRequestError("bad")))
	assert.False(t, IsRetryable(NewModelNotLoadedError()))
	assert.False(t, IsRetryable(stderrors.New("plain")))
}

func TestCallerVisibility(t *testing.T) {
	assert.True(t, IsCallerVisible(NewInvalidRequestError("bad payload")))

	// Internal degradations never surface their codes to clients.
	assert.False(t, IsCallerVisible(NewModelUnhealthyError("error rate")))
	assert.False(t, IsCallerVisible(NewFeatureStoreTimeoutError(40*time.Millisecond)))
	assert.False(t, IsCallerVisible(NewQueueOverflowError(10000)))
}

func TestStandardError_Message(t *testing.T) {
	err := NewSchemaMismatchError("fs-2", "fs-1")
	assert.Contains(t, err.Error(), "SCHEMA_MISMATCH")
	assert.Contains(t, err.Details, "fs-2")
	assert.False(t, err.Timestamp.IsZero())
}
