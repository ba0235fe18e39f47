// internal/feedback/postgres_sink.go
package feedback

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"proposition-engine/internal/common/database"
	"proposition-engine/internal/common/errors"
	"proposition-engine/internal/models"
)

const insertEventQuery = `
	INSERT INTO interaction_events (event_id, idempotency_key, event_type, user_id, proposition_id, occurred_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (idempotency_key) DO NOTHING`

// PostgresSink writes feedback events to the interaction_events table.
// The idempotency-key conflict clause makes redelivered batches safe.
type PostgresSink struct {
	db *database.PostgresClient
}

func NewPostgresSink(db *database.PostgresClient) *PostgresSink {
	return &PostgresSink{db: db}
}

// WriteBatch inserts all events in one transaction so a redelivered
// batch either fully lands or fully retries.
func (s *PostgresSink) WriteBatch(ctx context.Context, events []models.FeedbackEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.GetDB().BeginTx(ctx, nil)
	if err != nil {
		return errors.NewEventWriteFailedError(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertEventQuery)
	if err != nil {
		return errors.NewEventWriteFailedError(fmt.Errorf("failed to prepare insert: %w", err))
	}
	defer stmt.Close()

	for _, ev := range events {
		if _, err := stmt.ExecContext(ctx,
			uuid.NewString(),
			ev.IdempotencyKey(),
			string(ev.EventType),
			ev.UserID,
			ev.PropositionID,
			ev.Timestamp,
		); err != nil {
			return errors.NewEventWriteFailedError(fmt.Errorf("failed to insert event: %w", err))
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewEventWriteFailedError(fmt.Errorf("failed to commit batch: %w", err))
	}
	return nil
}
