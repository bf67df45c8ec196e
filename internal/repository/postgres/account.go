package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/care-portal/internal/model"
	apperrors "github.com/jwalitptl/care-portal/pkg/errors"
)

const accountColumns = `id, first_name, last_name, email, password_hash, role,
	phone, province, city,
	age, gender, date_of_birth, blood_type, allergies, chronic_conditions,
	current_medications, past_procedures, medical_history,
	emergency_contact_name, emergency_contact_phone,
	specialty, registration_number, years_of_experience, clinic_name, status,
	created_at, updated_at`

func (r *accountRepository) Create(ctx context.Context, account *model.Account) error {
	query := `
		INSERT INTO accounts (` + accountColumns + `) VALUES (
			:id, :first_name, :last_name, :email, :password_hash, :role,
			:phone, :province, :city,
			:age, :gender, :date_of_birth, :blood_type, :allergies, :chronic_conditions,
			:current_medications, :past_procedures, :medical_history,
			:emergency_contact_name, :emergency_contact_phone,
			:specialty, :registration_number, :years_of_experience, :clinic_name, :status,
			:created_at, :updated_at
		)`

	account.Email = model.NormalizeEmail(account.Email)
	if _, err := r.db.NamedExecContext(ctx, query, account); err != nil {
		return translateError(err, "account")
	}
	return nil
}

func (r *accountRepository) Get(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	var account model.Account
	if err := r.db.GetContext(ctx, &account, query, id); err != nil {
		return nil, translateError(err, "account")
	}
	return &account, nil
}

func (r *accountRepository) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE lower(email) = $1`

	var account model.Account
	if err := r.db.GetContext(ctx, &account, query, model.NormalizeEmail(email)); err != nil {
		return nil, translateError(err, "account")
	}
	return &account, nil
}

func (r *accountRepository) Update(ctx context.Context, account *model.Account) error {
	query := `
		UPDATE accounts SET
			first_name = :first_name, last_name = :last_name,
			phone = :phone, province = :province, city = :city,
			age = :age, gender = :gender, date_of_birth = :date_of_birth, blood_type = :blood_type,
			allergies = :allergies, chronic_conditions = :chronic_conditions,
			current_medications = :current_medications, past_procedures = :past_procedures,
			medical_history = :medical_history,
			emergency_contact_name = :emergency_contact_name,
			emergency_contact_phone = :emergency_contact_phone,
			specialty = :specialty, registration_number = :registration_number,
			years_of_experience = :years_of_experience, clinic_name = :clinic_name,
			updated_at = :updated_at
		WHERE id = :id`

	account.UpdatedAt = time.Now().UTC()
	result, err := r.db.NamedExecContext(ctx, query, account)
	if err != nil {
		return translateError(err, "account")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return translateError(err, "account")
	}
	if rows == 0 {
		return apperrors.NotFound("account", nil)
	}
	return nil
}

func (r *accountRepository) UpdateDoctorStatus(ctx context.Context, id uuid.UUID, status model.DoctorStatus) (*model.Account, error) {
	query := `
		UPDATE accounts SET status = $1, updated_at = $2
		WHERE id = $3 AND role = 'doctor'
		RETURNING ` + accountColumns

	var account model.Account
	if err := r.db.GetContext(ctx, &account, query, status, time.Now().UTC(), id); err != nil {
		return nil, translateError(err, "doctor")
	}
	return &account, nil
}

func (r *accountRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		// Row lock blocks concurrent bookings until this transaction ends;
		// their foreign key check then fails.
		var locked uuid.UUID
		if err := tx.GetContext(ctx, &locked, `SELECT id FROM accounts WHERE id = $1 FOR UPDATE`, id); err != nil {
			return translateError(err, "account")
		}

		var active int
		if err := tx.GetContext(ctx, &active, `
			SELECT COUNT(*) FROM appointments
			WHERE (patient_id = $1 OR doctor_id = $1) AND status IN ('pending', 'approved')`, id); err != nil {
			return translateError(err, "account")
		}
		if active > 0 {
			return apperrors.Conflict(
				fmt.Sprintf("account has %d pending or approved appointments", active), nil)
		}

		cleanup := []string{
			`DELETE FROM prescriptions WHERE patient_id = $1 OR doctor_id = $1
				OR appointment_id IN (SELECT id FROM appointments WHERE patient_id = $1 OR doctor_id = $1)`,
			`DELETE FROM appointments WHERE patient_id = $1 OR doctor_id = $1`,
			`DELETE FROM notes WHERE doctor_id = $1 OR patient_id = $1`,
			`DELETE FROM notifications WHERE user_id = $1`,
			`DELETE FROM accounts WHERE id = $1`,
		}
		for _, stmt := range cleanup {
			if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
				return translateError(err, "account")
			}
		}
		return nil
	})
}

func (r *accountRepository) List(ctx context.Context, filter model.AccountFilter) ([]*model.Account, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.Role != "" {
		args = append(args, filter.Role)
		conds = append(conds, fmt.Sprintf("role = $%d", len(args)))
	}
	if filter.DoctorStatus != nil {
		args = append(args, *filter.DoctorStatus)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + accountColumns + ` FROM accounts`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY last_name, first_name, id`

	accounts := []*model.Account{}
	if err := r.db.SelectContext(ctx, &accounts, query, args...); err != nil {
		return nil, translateError(err, "account")
	}
	return accounts, nil
}

func (r *accountRepository) ListPatientsOfDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Account, error) {
	query := `
		SELECT ` + accountColumns + ` FROM accounts
		WHERE role = 'patient'
		  AND id IN (SELECT patient_id FROM appointments WHERE doctor_id = $1)
		ORDER BY last_name, first_name, id`

	accounts := []*model.Account{}
	if err := r.db.SelectContext(ctx, &accounts, query, doctorID); err != nil {
		return nil, translateError(err, "account")
	}
	return accounts, nil
}
