package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id UUID PRIMARY KEY,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		email TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL CHECK (role IN ('patient', 'doctor', 'admin')),
		phone TEXT NOT NULL DEFAULT '',
		province TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		age INTEGER,
		gender TEXT NOT NULL DEFAULT '',
		date_of_birth TEXT NOT NULL DEFAULT '',
		blood_type TEXT NOT NULL DEFAULT '',
		allergies TEXT[],
		chronic_conditions TEXT[],
		current_medications TEXT[],
		past_procedures TEXT[],
		medical_history TEXT NOT NULL DEFAULT '',
		emergency_contact_name TEXT NOT NULL DEFAULT '',
		emergency_contact_phone TEXT NOT NULL DEFAULT '',
		specialty TEXT NOT NULL DEFAULT '',
		registration_number TEXT NOT NULL DEFAULT '',
		years_of_experience INTEGER,
		clinic_name TEXT NOT NULL DEFAULT '',
		status TEXT CHECK (status IN ('pending', 'approved', 'rejected')),
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		CONSTRAINT accounts_doctor_status CHECK ((role = 'doctor') = (status IS NOT NULL))
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ` + constraintAccountEmail + ` ON accounts (lower(email))`,
	`CREATE INDEX IF NOT EXISTS accounts_role_idx ON accounts (role, status)`,

	`CREATE TABLE IF NOT EXISTS appointments (
		id UUID PRIMARY KEY,
		patient_id UUID NOT NULL REFERENCES accounts (id),
		doctor_id UUID NOT NULL REFERENCES accounts (id),
		type TEXT NOT NULL CHECK (type IN ('online', 'physical')),
		date DATE NOT NULL,
		time_slot TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL CHECK (status IN ('pending', 'approved', 'declined', 'completed', 'cancelled')),
		video_call_link TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ` + constraintDoctorSlot + `
		ON appointments (doctor_id, date, time_slot)
		WHERE status IN ('pending', 'approved')`,
	`CREATE INDEX IF NOT EXISTS appointments_patient_idx ON appointments (patient_id, date)`,
	`CREATE INDEX IF NOT EXISTS appointments_doctor_idx ON appointments (doctor_id, date)`,

	`CREATE TABLE IF NOT EXISTS notifications (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES accounts (id),
		title TEXT NOT NULL,
		message TEXT NOT NULL,
		read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS notifications_user_idx ON notifications (user_id, created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS prescriptions (
		id UUID PRIMARY KEY,
		appointment_id UUID NOT NULL REFERENCES appointments (id),
		patient_id UUID NOT NULL REFERENCES accounts (id),
		doctor_id UUID NOT NULL REFERENCES accounts (id),
		medications JSONB NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		issued_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		CONSTRAINT ` + constraintPrescriptionPerVisit + ` UNIQUE (appointment_id)
	)`,
	`CREATE INDEX IF NOT EXISTS prescriptions_patient_idx ON prescriptions (patient_id, issued_at DESC)`,

	`CREATE TABLE IF NOT EXISTS notes (
		id UUID PRIMARY KEY,
		doctor_id UUID NOT NULL REFERENCES accounts (id),
		patient_id UUID REFERENCES accounts (id),
		title TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS notes_doctor_idx ON notes (doctor_id, updated_at DESC)`,

	`CREATE TABLE IF NOT EXISTS outbox_events (
		id UUID PRIMARY KEY,
		event_type TEXT NOT NULL,
		payload JSONB NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		error_message TEXT,
		retry_count INTEGER NOT NULL DEFAULT 0,
		retry_at TIMESTAMPTZ,
		processed_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS outbox_events_pending_idx ON outbox_events (status, created_at)`,
}

// Migrate creates the schema if it does not exist yet.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d: %w", i, err)
		}
	}
	return nil
}
