// internal/common/validation/schema.go
package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	stderrors "proposition-engine/internal/common/errors"
)

// rankingRequestSchema constrains the inbound /suggest payload. Context
// values are free-form strings; limit bounds mirror the API contract.
const rankingRequestSchema = `{
	"type": "object",
	"properties": {
		"user_id": {"type": "string", "minLength": 1},
		"context": {
			"type": "object",
			"additionalProperties": {"type": "string"}
		},
		"device": {"type": "string"},
		"limit": {"type": "integer", "minimum": 1, "maximum": 100}
	},
	"required": ["user_id"],
	"additionalProperties": false
}`

// feedbackEventSchema constrains the inbound /log_event payload.
const feedbackEventSchema = `{
	"type": "object",
	"properties": {
		"event_type": {"type": "string", "enum": ["impression", "click", "accept", "reject"]},
		"user_id": {"type": "string", "minLength": 1},
		"proposition_id": {"type": "string", "minLength": 1},
		"timestamp": {"type": "string"}
	},
	"required": ["event_type", "user_id", "proposition_id"],
	"additionalProperties": false
}`

var (
	rankingLoader  = gojsonschema.NewStringLoader(rankingRequestSchema)
	feedbackLoader = gojsonschema.NewStringLoader(feedbackEventSchema)
)

// ValidateRankingRequest checks a raw /suggest payload against the request
// schema and returns an INVALID_REQUEST error listing every violation.
func ValidateRankingRequest(raw []byte) error {
	return validate(rankingLoader, raw)
}

// ValidateFeedbackEvent checks a raw /log_event payload against the event
// schema.
func ValidateFeedbackEvent(raw []byte) error {
	return validate(feedbackLoader, raw)
}

func validate(schema gojsonschema.JSONLoader, raw []byte) error {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return stderrors.NewInvalidRequestError(fmt.Sprintf("malformed JSON payload: %v", err))
	}

	if result.Valid() {
		return nil
	}

	details := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}
	return stderrors.NewInvalidRequestError(strings.Join(details, "; "))
}
