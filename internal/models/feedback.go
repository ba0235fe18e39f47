// internal/models/feedback.go
package models

import (
	"fmt"
	"time"
)

// EventType classifies a user interaction with a proposition.
type EventType string

const (
	EventImpression EventType = "impression"
	EventClick      EventType = "click"
	EventAccept     EventType = "accept"
	EventReject     EventType = "reject"
)

// ValidEventType reports whether t is one of the known event types.
func ValidEventType(t EventType) bool {
	switch t {
	case EventImpression, EventClick, EventAccept, EventReject:
		return true
	}
	return false
}

// FeedbackEvent records an impression or interaction. Append-only;
// ownership transfers to the event store once durably queued.
type FeedbackEvent struct {
	EventType     EventType `json:"event_type"`
	UserID        string    `json:"user_id"`
	PropositionID string    `json:"proposition_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// IdempotencyKey derives the downstream de-duplication key from the
// event's identifying fields.
func (e FeedbackEvent) IdempotencyKey() string {
	return fmt.Sprintf("%s:%s:%s:%d", e.UserID, e.PropositionID, e.EventType, e.Timestamp.UnixMilli())
}
