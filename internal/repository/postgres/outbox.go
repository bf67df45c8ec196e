package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/care-portal/internal/model"
	apperrors "github.com/jwalitptl/care-portal/pkg/errors"
)

const outboxColumns = `id, event_type, payload, status, error_message, retry_count,
	retry_at, processed_at, created_at, updated_at`

// GetPending returns due events oldest first. A single dispatcher is
// assumed; the events are not locked.
func (r *outboxRepository) GetPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	query := `
		SELECT ` + outboxColumns + `
		FROM outbox_events
		WHERE status = $1 AND (retry_at IS NULL OR retry_at <= $2)
		ORDER BY created_at ASC
		LIMIT $3`

	events := []*model.OutboxEvent{}
	err := r.db.SelectContext(ctx, &events, query, model.OutboxStatusPending, time.Now().UTC(), limit)
	if err != nil {
		return nil, translateError(err, "outbox event")
	}
	return events, nil
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	return r.exec(ctx, `
		UPDATE outbox_events
		SET status = $1, processed_at = $2, error_message = NULL, updated_at = $2
		WHERE id = $3`, model.OutboxStatusProcessed, now, id)
}

func (r *outboxRepository) MarkRetry(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error {
	return r.exec(ctx, `
		UPDATE outbox_events
		SET retry_count = retry_count + 1, error_message = $1, retry_at = $2, updated_at = $3
		WHERE id = $4`, errMsg, retryAt.UTC(), time.Now().UTC(), id)
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	return r.exec(ctx, `
		UPDATE outbox_events
		SET status = $1, retry_count = retry_count + 1, error_message = $2, updated_at = $3
		WHERE id = $4`, model.OutboxStatusFailed, errMsg, time.Now().UTC(), id)
}

func (r *outboxRepository) exec(ctx context.Context, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return translateError(err, "outbox event")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return translateError(err, "outbox event")
	}
	if rows == 0 {
		return apperrors.NotFound("outbox event", nil)
	}
	return nil
}
