package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/care-portal/internal/model"
	"github.com/jwalitptl/care-portal/internal/repository"
	apperrors "github.com/jwalitptl/care-portal/pkg/errors"
)

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	if err := ctx.Err(); err != nil {
		return apperrors.StoreUnavailable(err)
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.accounts[appointment.PatientID]; !ok {
		return apperrors.Conflict("referenced record does not exist", nil)
	}
	if _, ok := r.db.accounts[appointment.DoctorID]; !ok {
		return apperrors.Conflict("referenced record does not exist", nil)
	}
	if appointment.Status.Active() && r.slotTaken(appointment, uuid.Nil) {
		return apperrors.Conflict("doctor already has an appointment in this slot", nil)
	}

	r.db.appointments[appointment.ID] = appointment.Clone()
	r.db.stamp(appointment.ID)
	return nil
}

// slotTaken must be called with the lock held.
func (r *appointmentRepository) slotTaken(a *model.Appointment, except uuid.UUID) bool {
	for id, other := range r.db.appointments {
		if id == except || id == a.ID || !other.Status.Active() {
			continue
		}
		if other.DoctorID == a.DoctorID && other.Date.Equal(a.Date.Time) && other.TimeSlot == a.TimeSlot {
			return true
		}
	}
	return false
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	appt, ok := r.db.appointments[id]
	if !ok {
		return nil, apperrors.NotFound("appointment", nil)
	}
	return appt.Clone(), nil
}

func (r *appointmentRepository) List(ctx context.Context, filter model.AppointmentFilter) ([]*model.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := []*model.Appointment{}
	for _, appt := range r.db.appointments {
		if filter.PatientID != nil && appt.PatientID != *filter.PatientID {
			continue
		}
		if filter.DoctorID != nil && appt.DoctorID != *filter.DoctorID {
			continue
		}
		if filter.Status != nil && appt.Status != *filter.Status {
			continue
		}
		out = append(out, appt.Clone())
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date.Time) {
			return a.Date.After(b.Date.Time)
		}
		if a.TimeSlot != b.TimeSlot {
			return a.TimeSlot < b.TimeSlot
		}
		return r.db.inserted[a.ID] > r.db.inserted[b.ID]
	})
	return out, nil
}

func (r *appointmentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.AppointmentStatus, link *string) (*model.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	appt, ok := r.db.appointments[id]
	if !ok {
		return nil, apperrors.NotFound("appointment", nil)
	}
	if appt.Status != from {
		return nil, apperrors.Conflict("appointment was modified concurrently", repository.ErrStaleStatus)
	}

	appt.Status = to
	if appt.VideoCallLink == nil && link != nil {
		v := *link
		appt.VideoCallLink = &v
	}
	appt.UpdatedAt = time.Now().UTC()
	return appt.Clone(), nil
}

func (r *appointmentRepository) AssignVideoLink(ctx context.Context, id uuid.UUID, link string) (*model.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	appt, ok := r.db.appointments[id]
	if !ok {
		return nil, apperrors.NotFound("appointment", nil)
	}
	if appt.VideoCallLink == nil {
		appt.VideoCallLink = &link
		appt.UpdatedAt = time.Now().UTC()
	}
	return appt.Clone(), nil
}

func (r *appointmentRepository) Reschedule(ctx context.Context, in *model.Appointment) (*model.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	appt, ok := r.db.appointments[in.ID]
	if !ok {
		return nil, apperrors.NotFound("appointment", nil)
	}
	if !appt.Status.Active() {
		return nil, apperrors.Conflict("appointment was modified concurrently", repository.ErrStaleStatus)
	}

	candidate := appt.Clone()
	candidate.Date = in.Date
	candidate.TimeSlot = in.TimeSlot
	if r.slotTaken(candidate, appt.ID) {
		return nil, apperrors.Conflict("doctor already has an appointment in this slot", nil)
	}

	appt.Date = in.Date
	appt.TimeSlot = in.TimeSlot
	appt.Reason = in.Reason
	appt.UpdatedAt = time.Now().UTC()
	return appt.Clone(), nil
}
