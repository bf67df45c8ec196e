package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	apperrors "github.com/jwalitptl/care-portal/pkg/errors"
)

// Constraint names the store uses to signal uniqueness violations.
const (
	constraintAccountEmail         = "accounts_email_key"
	constraintDoctorSlot           = "appointments_doctor_slot_key"
	constraintPrescriptionPerVisit = "prescriptions_appointment_key"
)

// BaseRepository provides common functionality for all repositories
type BaseRepository struct {
	db *sqlx.DB
}

func NewBaseRepository(db *sqlx.DB) BaseRepository {
	return BaseRepository{db: db}
}

func (r *BaseRepository) Ping(ctx context.Context) error {
	return translateError(r.db.PingContext(ctx), "database")
}

// WithTx executes a function within a transaction
func (r *BaseRepository) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return translateError(err, "transaction")
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	return translateError(tx.Commit(), "transaction")
}

// translateError maps driver errors onto application error kinds. resource
// names the record in NotFound messages.
func translateError(err error, resource string) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NotFound(resource, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			switch pqErr.Constraint {
			case constraintAccountEmail:
				return apperrors.DuplicateEmail(err)
			case constraintDoctorSlot:
				return apperrors.Conflict("doctor already has an appointment in this slot", err)
			case constraintPrescriptionPerVisit:
				return apperrors.Conflict("appointment already has a prescription", err)
			}
			return apperrors.Conflict("record already exists", err)
		case "23503":
			return apperrors.Conflict("referenced record does not exist", err)
		case "23514", "22P02", "22007", "22008":
			return apperrors.Validation("invalid value", err)
		}
		switch pqErr.Code.Class() {
		case "08", "53", "57":
			return apperrors.StoreUnavailable(err)
		}
		return apperrors.Internal(err)
	}

	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) {
		return apperrors.StoreUnavailable(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return apperrors.StoreUnavailable(err)
	}
	return apperrors.Internal(err)
}
