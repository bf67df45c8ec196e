package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/care-portal/internal/model"
	"github.com/jwalitptl/care-portal/internal/repository"
	apperrors "github.com/jwalitptl/care-portal/pkg/errors"
)

const appointmentColumns = `id, patient_id, doctor_id, type, date, time_slot, reason,
	status, video_call_link, created_at, updated_at`

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (` + appointmentColumns + `) VALUES (
			:id, :patient_id, :doctor_id, :type, :date, :time_slot, :reason,
			:status, :video_call_link, :created_at, :updated_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, appointment); err != nil {
		return translateError(err, "appointment")
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	var appointment model.Appointment
	if err := r.db.GetContext(ctx, &appointment, query, id); err != nil {
		return nil, translateError(err, "appointment")
	}
	return &appointment, nil
}

func (r *appointmentRepository) List(ctx context.Context, filter model.AppointmentFilter) ([]*model.Appointment, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.PatientID != nil {
		args = append(args, *filter.PatientID)
		conds = append(conds, fmt.Sprintf("patient_id = $%d", len(args)))
	}
	if filter.DoctorID != nil {
		args = append(args, *filter.DoctorID)
		conds = append(conds, fmt.Sprintf("doctor_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY date DESC, time_slot, created_at DESC`

	appointments := []*model.Appointment{}
	if err := r.db.SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, translateError(err, "appointment")
	}
	return appointments, nil
}

func (r *appointmentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.AppointmentStatus, link *string) (*model.Appointment, error) {
	query := `
		UPDATE appointments
		SET status = $1,
			video_call_link = COALESCE(video_call_link, $2),
			updated_at = $3
		WHERE id = $4 AND status = $5
		RETURNING ` + appointmentColumns

	var appointment model.Appointment
	err := r.db.GetContext(ctx, &appointment, query, to, link, time.Now().UTC(), id, from)
	if err == nil {
		return &appointment, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, translateError(err, "appointment")
	}
	return nil, r.staleOrMissing(ctx, id)
}

func (r *appointmentRepository) AssignVideoLink(ctx context.Context, id uuid.UUID, link string) (*model.Appointment, error) {
	query := `
		UPDATE appointments
		SET video_call_link = COALESCE(video_call_link, $1), updated_at = $2
		WHERE id = $3
		RETURNING ` + appointmentColumns

	var appointment model.Appointment
	if err := r.db.GetContext(ctx, &appointment, query, link, time.Now().UTC(), id); err != nil {
		return nil, translateError(err, "appointment")
	}
	return &appointment, nil
}

func (r *appointmentRepository) Reschedule(ctx context.Context, in *model.Appointment) (*model.Appointment, error) {
	query := `
		UPDATE appointments
		SET date = $1, time_slot = $2, reason = $3, updated_at = $4
		WHERE id = $5 AND status IN ('pending', 'approved')
		RETURNING ` + appointmentColumns

	var appointment model.Appointment
	err := r.db.GetContext(ctx, &appointment, query, in.Date, in.TimeSlot, in.Reason, time.Now().UTC(), in.ID)
	if err == nil {
		return &appointment, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, translateError(err, "appointment")
	}
	return nil, r.staleOrMissing(ctx, in.ID)
}

// staleOrMissing explains why a guarded update matched no row.
func (r *appointmentRepository) staleOrMissing(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)`, id); err != nil {
		return translateError(err, "appointment")
	}
	if !exists {
		return apperrors.NotFound("appointment", nil)
	}
	return apperrors.Conflict("appointment was modified concurrently", repository.ErrStaleStatus)
}
