package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/care-portal/internal/repository"
)

type accountRepository struct {
	BaseRepository
}

type appointmentRepository struct {
	BaseRepository
}

type notificationRepository struct {
	BaseRepository
}

type prescriptionRepository struct {
	BaseRepository
}

type noteRepository struct {
	BaseRepository
}

type outboxRepository struct {
	BaseRepository
}

type statsRepository struct {
	BaseRepository
}

func NewAccountRepository(db *sqlx.DB) repository.AccountRepository {
	return &accountRepository{NewBaseRepository(db)}
}

func NewAppointmentRepository(db *sqlx.DB) repository.AppointmentRepository {
	return &appointmentRepository{NewBaseRepository(db)}
}

func NewNotificationRepository(db *sqlx.DB) repository.NotificationRepository {
	return &notificationRepository{NewBaseRepository(db)}
}

func NewPrescriptionRepository(db *sqlx.DB) repository.PrescriptionRepository {
	return &prescriptionRepository{NewBaseRepository(db)}
}

func NewNoteRepository(db *sqlx.DB) repository.NoteRepository {
	return &noteRepository{NewBaseRepository(db)}
}

func NewOutboxRepository(db *sqlx.DB) repository.OutboxRepository {
	return &outboxRepository{NewBaseRepository(db)}
}

func NewStatsRepository(db *sqlx.DB) repository.StatsRepository {
	return &statsRepository{NewBaseRepository(db)}
}

// NewStore wires every Postgres repository over one connection pool.
func NewStore(db *sqlx.DB) *repository.Store {
	base := NewBaseRepository(db)
	return &repository.Store{
		Accounts:      NewAccountRepository(db),
		Appointments:  NewAppointmentRepository(db),
		Notifications: NewNotificationRepository(db),
		Prescriptions: NewPrescriptionRepository(db),
		Notes:         NewNoteRepository(db),
		Outbox:        NewOutboxRepository(db),
		Stats:         NewStatsRepository(db),
		Health:        &base,
	}
}
