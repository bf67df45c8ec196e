package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/jwalitptl/care-portal/internal/model"
	apperrors "github.com/jwalitptl/care-portal/pkg/errors"
)

func (r *prescriptionRepository) Create(ctx context.Context, p *model.Prescription) error {
	if err := ctx.Err(); err != nil {
		return apperrors.StoreUnavailable(err)
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.appointments[p.AppointmentID]; !ok {
		return apperrors.Conflict("referenced record does not exist", nil)
	}
	for _, existing := range r.db.prescriptions {
		if existing.AppointmentID == p.AppointmentID {
			return apperrors.Conflict("appointment already has a prescription", nil)
		}
	}

	r.db.prescriptions[p.ID] = p.Clone()
	r.db.stamp(p.ID)
	return nil
}

func (r *prescriptionRepository) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.Prescription, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for _, p := range r.db.prescriptions {
		if p.AppointmentID == appointmentID {
			return p.Clone(), nil
		}
	}
	return nil, apperrors.NotFound("prescription", nil)
}

func (r *prescriptionRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Prescription, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := []*model.Prescription{}
	for _, p := range r.db.prescriptions {
		if p.PatientID == patientID {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].IssuedAt.Equal(out[j].IssuedAt) {
			return out[i].IssuedAt.After(out[j].IssuedAt)
		}
		return r.db.inserted[out[i].ID] > r.db.inserted[out[j].ID]
	})
	return out, nil
}
