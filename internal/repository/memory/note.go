package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/care-portal/internal/model"
	apperrors "github.com/jwalitptl/care-portal/pkg/errors"
)

func (r *noteRepository) Create(ctx context.Context, n *model.Note) error {
	if err := ctx.Err(); err != nil {
		return apperrors.StoreUnavailable(err)
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.accounts[n.DoctorID]; !ok {
		return apperrors.Conflict("referenced record does not exist", nil)
	}
	if n.PatientID != nil {
		if _, ok := r.db.accounts[*n.PatientID]; !ok {
			return apperrors.Conflict("referenced record does not exist", nil)
		}
	}

	r.db.notes[n.ID] = n.Clone()
	r.db.stamp(n.ID)
	return nil
}

func (r *noteRepository) Get(ctx context.Context, id uuid.UUID) (*model.Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	n, ok := r.db.notes[id]
	if !ok {
		return nil, apperrors.NotFound("note", nil)
	}
	return n.Clone(), nil
}

func (r *noteRepository) List(ctx context.Context, filter model.NoteFilter) ([]*model.Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := []*model.Note{}
	for _, n := range r.db.notes {
		if filter.DoctorID != nil && n.DoctorID != *filter.DoctorID {
			continue
		}
		if filter.PatientID != nil && (n.PatientID == nil || *n.PatientID != *filter.PatientID) {
			continue
		}
		out = append(out, n.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return r.db.inserted[out[i].ID] > r.db.inserted[out[j].ID]
	})
	return out, nil
}

func (r *noteRepository) Update(ctx context.Context, n *model.Note) error {
	if err := ctx.Err(); err != nil {
		return apperrors.StoreUnavailable(err)
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	stored, ok := r.db.notes[n.ID]
	if !ok {
		return apperrors.NotFound("note", nil)
	}
	stored.Title = n.Title
	stored.Content = n.Content
	stored.UpdatedAt = time.Now().UTC()
	n.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *noteRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return apperrors.StoreUnavailable(err)
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.notes[id]; !ok {
		return apperrors.NotFound("note", nil)
	}
	delete(r.db.notes, id)
	delete(r.db.inserted, id)
	return nil
}
