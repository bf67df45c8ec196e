// Package memory is a process-local implementation of the repositories. It
// enforces the same uniqueness and compare-and-set rules as the Postgres
// store and backs the "memory" database driver and the service tests.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/jwalitptl/care-portal/internal/model"
	"github.com/jwalitptl/care-portal/internal/repository"
)

type DB struct {
	mu sync.RWMutex

	accounts      map[uuid.UUID]*model.Account
	emails        map[string]uuid.UUID
	appointments  map[uuid.UUID]*model.Appointment
	notifications map[uuid.UUID]*model.Notification
	prescriptions map[uuid.UUID]*model.Prescription
	notes         map[uuid.UUID]*model.Note
	outbox        map[uuid.UUID]*model.OutboxEvent

	// seq orders records created within the same clock tick.
	seq      uint64
	inserted map[uuid.UUID]uint64
}

func NewDB() *DB {
	return &DB{
		accounts:      make(map[uuid.UUID]*model.Account),
		emails:        make(map[string]uuid.UUID),
		appointments:  make(map[uuid.UUID]*model.Appointment),
		notifications: make(map[uuid.UUID]*model.Notification),
		prescriptions: make(map[uuid.UUID]*model.Prescription),
		notes:         make(map[uuid.UUID]*model.Note),
		outbox:        make(map[uuid.UUID]*model.OutboxEvent),
		inserted:      make(map[uuid.UUID]uint64),
	}
}

func (db *DB) stamp(id uuid.UUID) {
	db.seq++
	db.inserted[id] = db.seq
}

// Ping honours cancellation only; the map is always available.
func (db *DB) Ping(ctx context.Context) error {
	return ctx.Err()
}

type (
	accountRepository      struct{ db *DB }
	appointmentRepository  struct{ db *DB }
	notificationRepository struct{ db *DB }
	prescriptionRepository struct{ db *DB }
	noteRepository         struct{ db *DB }
	outboxRepository       struct{ db *DB }
	statsRepository        struct{ db *DB }
)

// NewStore returns a repository.Store backed by a fresh in-memory DB.
func NewStore() *repository.Store {
	return NewStoreWithDB(NewDB())
}

func NewStoreWithDB(db *DB) *repository.Store {
	return &repository.Store{
		Accounts:      &accountRepository{db},
		Appointments:  &appointmentRepository{db},
		Notifications: &notificationRepository{db},
		Prescriptions: &prescriptionRepository{db},
		Notes:         &noteRepository{db},
		Outbox:        &outboxRepository{db},
		Stats:         &statsRepository{db},
		Health:        db,
	}
}
