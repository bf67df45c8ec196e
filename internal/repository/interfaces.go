package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/care-portal/internal/model"
)

// ErrStaleStatus is wrapped in the Conflict returned when a compare-and-set
// on a status column finds a different value than expected.
var ErrStaleStatus = errors.New("status changed concurrently")

// All repository interfaces in one file. Implementations translate driver
// failures into pkg/errors kinds so services never see raw store errors.
type (
	AccountRepository interface {
		// Create fails with DuplicateEmail when the normalized email exists.
		Create(ctx context.Context, account *model.Account) error
		Get(ctx context.Context, id uuid.UUID) (*model.Account, error)
		GetByEmail(ctx context.Context, email string) (*model.Account, error)
		// Update writes profile fields only. Email, role, credential and
		// doctor status are left as stored.
		Update(ctx context.Context, account *model.Account) error
		UpdateDoctorStatus(ctx context.Context, id uuid.UUID, status model.DoctorStatus) (*model.Account, error)
		// Delete fails with Conflict while the account has pending or
		// approved appointments. Otherwise its notifications, appointments,
		// their prescriptions and any notes by or about it are removed
		// with it.
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, filter model.AccountFilter) ([]*model.Account, error)
		ListPatientsOfDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Account, error)
	}

	AppointmentRepository interface {
		// Create fails with Conflict when the doctor already holds an active
		// appointment in the same date and time slot.
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		List(ctx context.Context, filter model.AppointmentFilter) ([]*model.Appointment, error)
		// UpdateStatus moves from -> to only if the stored status is still
		// from. A non-nil link is stored only when none is set yet.
		UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.AppointmentStatus, link *string) (*model.Appointment, error)
		// AssignVideoLink stores link unless one is already present and
		// returns the appointment as stored.
		AssignVideoLink(ctx context.Context, id uuid.UUID, link string) (*model.Appointment, error)
		// Reschedule rewrites date, slot and reason while the appointment is
		// still pending or approved.
		Reschedule(ctx context.Context, appointment *model.Appointment) (*model.Appointment, error)
	}

	NotificationRepository interface {
		// CreateWithOutbox stores the notification and its outbox event
		// atomically.
		CreateWithOutbox(ctx context.Context, notification *model.Notification, event *model.OutboxEvent) error
		Get(ctx context.Context, id uuid.UUID) (*model.Notification, error)
		// ListByUser returns newest first.
		ListByUser(ctx context.Context, userID uuid.UUID) ([]*model.Notification, error)
		MarkRead(ctx context.Context, id uuid.UUID) (*model.Notification, error)
	}

	PrescriptionRepository interface {
		// Create fails with Conflict when the appointment already has one.
		Create(ctx context.Context, prescription *model.Prescription) error
		GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.Prescription, error)
		ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Prescription, error)
	}

	NoteRepository interface {
		Create(ctx context.Context, note *model.Note) error
		Get(ctx context.Context, id uuid.UUID) (*model.Note, error)
		// List returns the most recently updated first.
		List(ctx context.Context, filter model.NoteFilter) ([]*model.Note, error)
		// Update writes title and content only.
		Update(ctx context.Context, note *model.Note) error
		Delete(ctx context.Context, id uuid.UUID) error
	}

	OutboxRepository interface {
		GetPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkRetry(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
	}

	StatsRepository interface {
		AdminStats(ctx context.Context) (*model.AdminStats, error)
	}

	HealthChecker interface {
		Ping(ctx context.Context) error
	}
)

// Store bundles one implementation of every repository.
type Store struct {
	Accounts      AccountRepository
	Appointments  AppointmentRepository
	Notifications NotificationRepository
	Prescriptions PrescriptionRepository
	Notes         NoteRepository
	Outbox        OutboxRepository
	Stats         StatsRepository
	Health        HealthChecker
}
