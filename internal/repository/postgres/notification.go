package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/care-portal/internal/model"
)

const notificationColumns = `id, user_id, title, message, read, created_at, updated_at`

func (r *notificationRepository) CreateWithOutbox(ctx context.Context, n *model.Notification, event *model.OutboxEvent) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO notifications (`+notificationColumns+`)
			VALUES (:id, :user_id, :title, :message, :read, :created_at, :updated_at)`, n); err != nil {
			return translateError(err, "notification")
		}
		if event == nil {
			return nil
		}
		// lib/pq sends []byte as bytea, so the JSONB payload goes over as text.
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO outbox_events (id, event_type, payload, status, retry_count, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			event.ID, event.EventType, string(event.Payload), event.Status,
			event.RetryCount, event.CreatedAt, event.UpdatedAt); err != nil {
			return translateError(err, "outbox event")
		}
		return nil
	})
}

func (r *notificationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	var n model.Notification
	if err := r.db.GetContext(ctx, &n, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id); err != nil {
		return nil, translateError(err, "notification")
	}
	return &n, nil
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.Notification, error) {
	query := `
		SELECT ` + notificationColumns + ` FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`

	notifications := []*model.Notification{}
	if err := r.db.SelectContext(ctx, &notifications, query, userID); err != nil {
		return nil, translateError(err, "notification")
	}
	return notifications, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	query := `
		UPDATE notifications SET read = TRUE, updated_at = $1
		WHERE id = $2
		RETURNING ` + notificationColumns

	var n model.Notification
	if err := r.db.GetContext(ctx, &n, query, time.Now().UTC(), id); err != nil {
		return nil, translateError(err, "notification")
	}
	return &n, nil
}
