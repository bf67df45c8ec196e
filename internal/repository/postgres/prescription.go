package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/care-portal/internal/model"
)

const prescriptionColumns = `id, appointment_id, patient_id, doctor_id, medications, notes,
	issued_at, created_at, updated_at`

func (r *prescriptionRepository) Create(ctx context.Context, p *model.Prescription) error {
	query := `
		INSERT INTO prescriptions (` + prescriptionColumns + `) VALUES (
			:id, :appointment_id, :patient_id, :doctor_id, :medications, :notes,
			:issued_at, :created_at, :updated_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, p); err != nil {
		return translateError(err, "prescription")
	}
	return nil
}

func (r *prescriptionRepository) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.Prescription, error) {
	var p model.Prescription
	err := r.db.GetContext(ctx, &p,
		`SELECT `+prescriptionColumns+` FROM prescriptions WHERE appointment_id = $1`, appointmentID)
	if err != nil {
		return nil, translateError(err, "prescription")
	}
	return &p, nil
}

func (r *prescriptionRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Prescription, error) {
	prescriptions := []*model.Prescription{}
	err := r.db.SelectContext(ctx, &prescriptions,
		`SELECT `+prescriptionColumns+` FROM prescriptions WHERE patient_id = $1 ORDER BY issued_at DESC`, patientID)
	if err != nil {
		return nil, translateError(err, "prescription")
	}
	return prescriptions, nil
}
