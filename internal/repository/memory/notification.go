package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/care-portal/internal/model"
	apperrors "github.com/jwalitptl/care-portal/pkg/errors"
)

func (r *notificationRepository) CreateWithOutbox(ctx context.Context, n *model.Notification, event *model.OutboxEvent) error {
	if err := ctx.Err(); err != nil {
		return apperrors.StoreUnavailable(err)
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.accounts[n.UserID]; !ok {
		return apperrors.Conflict("referenced record does not exist", nil)
	}

	stored := *n
	r.db.notifications[n.ID] = &stored
	r.db.stamp(n.ID)

	if event != nil {
		evt := *event
		evt.Payload = append([]byte(nil), event.Payload...)
		r.db.outbox[event.ID] = &evt
		r.db.stamp(event.ID)
	}
	return nil
}

func (r *notificationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	n, ok := r.db.notifications[id]
	if !ok {
		return nil, apperrors.NotFound("notification", nil)
	}
	out := *n
	return &out, nil
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := []*model.Notification{}
	for _, n := range r.db.notifications {
		if n.UserID == userID {
			c := *n
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return r.db.inserted[out[i].ID] > r.db.inserted[out[j].ID]
	})
	return out, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	n, ok := r.db.notifications[id]
	if !ok {
		return nil, apperrors.NotFound("notification", nil)
	}
	n.Read = true
	n.UpdatedAt = time.Now().UTC()
	out := *n
	return &out, nil
}
