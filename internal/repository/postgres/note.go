package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/care-portal/internal/model"
	apperrors "github.com/jwalitptl/care-portal/pkg/errors"
)

const noteColumns = `id, doctor_id, patient_id, title, content, created_at, updated_at`

func (r *noteRepository) Create(ctx context.Context, n *model.Note) error {
	query := `
		INSERT INTO notes (` + noteColumns + `) VALUES (
			:id, :doctor_id, :patient_id, :title, :content, :created_at, :updated_at
		)`

	if _, err := r.db.NamedExecContext(ctx, query, n); err != nil {
		return translateError(err, "note")
	}
	return nil
}

func (r *noteRepository) Get(ctx context.Context, id uuid.UUID) (*model.Note, error) {
	var n model.Note
	if err := r.db.GetContext(ctx, &n, `SELECT `+noteColumns+` FROM notes WHERE id = $1`, id); err != nil {
		return nil, translateError(err, "note")
	}
	return &n, nil
}

func (r *noteRepository) List(ctx context.Context, filter model.NoteFilter) ([]*model.Note, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.DoctorID != nil {
		args = append(args, *filter.DoctorID)
		conds = append(conds, fmt.Sprintf("doctor_id = $%d", len(args)))
	}
	if filter.PatientID != nil {
		args = append(args, *filter.PatientID)
		conds = append(conds, fmt.Sprintf("patient_id = $%d", len(args)))
	}

	query := `SELECT ` + noteColumns + ` FROM notes`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY updated_at DESC`

	notes := []*model.Note{}
	if err := r.db.SelectContext(ctx, &notes, query, args...); err != nil {
		return nil, translateError(err, "note")
	}
	return notes, nil
}

func (r *noteRepository) Update(ctx context.Context, n *model.Note) error {
	n.UpdatedAt = time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`UPDATE notes SET title = $1, content = $2, updated_at = $3 WHERE id = $4`,
		n.Title, n.Content, n.UpdatedAt, n.ID)
	if err != nil {
		return translateError(err, "note")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return translateError(err, "note")
	}
	if rows == 0 {
		return apperrors.NotFound("note", nil)
	}
	return nil
}

func (r *noteRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM notes WHERE id = $1`, id)
	if err != nil {
		return translateError(err, "note")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return translateError(err, "note")
	}
	if rows == 0 {
		return apperrors.NotFound("note", nil)
	}
	return nil
}
