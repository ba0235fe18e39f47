// internal/common/validation/schema_test.go
package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"proposition-engine/internal/common/errors"
)

// ==========================================
// RANKING REQUEST VALIDATION
// ==========================================

func TestValidateRankingRequest(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{
			name:    "minimal valid",
			payload: `{"user_id": "u1"}`,
		},
		{
			name:    "full valid",
			payload: `{"user_id": "u1", "context": {"page": "offers"}, "device": "mobile", "limit": 10}`,
		},
		{
			name:    "missing user_id",
			payload: `{"limit": 5}`,
			wantErr: true,
		},
		{
			name:    "empty user_id",
			payload: `{"user_id": ""}`,
			wantErr: true,
		},
		{
			name:    "limit zero",
			payload: `{"user_id": "u1", "limit": 0}`,
			wantErr: true,
		},
		{
			name:    "limit over max",
			payload: `{"user_id": "u1", "limit": 101}`,
			wantErr: true,
		},
		{
			name:    "non-string context value",
			payload: `{"user_id": "u1", "context": {"count": 4}}`,
			wantErr: true,
		},
		{
			name:    "unknown field",
			payload: `{"user_id": "u1", "admin": true}`,
			wantErr: true,
		},
		{
			name:    "not json",
			payload: `{{`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRankingRequest([]byte(tt.payload))
			if tt.wantErr {
				assert.Error(t, err)
				assert.Equal(t, errors.ErrCodeInvalidRequest, errors.CodeOf(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// ==========================================
// FEEDBACK EVENT VALIDATION
// ==========================================

func TestValidateFeedbackEvent(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{
			name:    "valid click",
			payload: `{"event_type": "click", "user_id": "u1", "proposition_id": "p1"}`,
		},
		{
			name:    "valid with timestamp",
			payload: `{"event_type": "accept", "user_id": "u1", "proposition_id": "p1", "timestamp": "2026-08-01T12:00:00Z"}`,
		},
		{
			name:    "unknown event type",
			payload: `{"event_type": "hover", "user_id": "u1", "proposition_id": "p1"}`,
			wantErr: true,
		},
		{
			name:    "missing proposition",
			payload: `{"event_type": "click", "user_id": "u1"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFeedbackEvent([]byte(tt.payload))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
