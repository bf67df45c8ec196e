package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/care-portal/internal/model"
	apperrors "github.com/jwalitptl/care-portal/pkg/errors"
)

func (r *outboxRepository) GetPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	now := time.Now().UTC()
	out := []*model.OutboxEvent{}
	for _, evt := range r.db.outbox {
		if evt.Status != model.OutboxStatusPending {
			continue
		}
		if evt.RetryAt != nil && evt.RetryAt.After(now) {
			continue
		}
		c := *evt
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		return r.db.inserted[out[i].ID] < r.db.inserted[out[j].ID]
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	return r.update(ctx, id, func(evt *model.OutboxEvent, now time.Time) {
		evt.Status = model.OutboxStatusProcessed
		evt.ProcessedAt = &now
		evt.ErrorMessage = nil
	})
}

func (r *outboxRepository) MarkRetry(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error {
	return r.update(ctx, id, func(evt *model.OutboxEvent, _ time.Time) {
		evt.RetryCount++
		evt.ErrorMessage = &errMsg
		at := retryAt.UTC()
		evt.RetryAt = &at
	})
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	return r.update(ctx, id, func(evt *model.OutboxEvent, _ time.Time) {
		evt.Status = model.OutboxStatusFailed
		evt.RetryCount++
		evt.ErrorMessage = &errMsg
	})
}

func (r *outboxRepository) update(ctx context.Context, id uuid.UUID, fn func(*model.OutboxEvent, time.Time)) error {
	if err := ctx.Err(); err != nil {
		return apperrors.StoreUnavailable(err)
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	evt, ok := r.db.outbox[id]
	if !ok {
		return apperrors.NotFound("outbox event", nil)
	}
	now := time.Now().UTC()
	fn(evt, now)
	evt.UpdatedAt = now
	return nil
}

func (r *statsRepository) AdminStats(ctx context.Context) (*model.AdminStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	stats := &model.AdminStats{AppointmentsByStatus: make(map[model.AppointmentStatus]int)}
	for _, a := range r.db.accounts {
		switch {
		case a.Role == model.RolePatient:
			stats.TotalPatients++
		case a.Role == model.RoleDoctor && a.Status != nil:
			switch *a.Status {
			case model.DoctorStatusApproved:
				stats.ApprovedDoctors++
			case model.DoctorStatusPending:
				stats.PendingDoctors++
			case model.DoctorStatusRejected:
				stats.RejectedDoctors++
			}
		}
	}
	for _, appt := range r.db.appointments {
		stats.TotalAppointments++
		switch appt.Type {
		case model.AppointmentTypeOnline:
			stats.OnlineAppointments++
		case model.AppointmentTypePhysical:
			stats.PhysicalAppointments++
		}
		stats.AppointmentsByStatus[appt.Status]++
	}
	return stats, nil
}
