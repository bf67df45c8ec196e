// Package note keeps doctors' private clinical notes.
package note

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/care-portal/internal/model"
	"github.com/jwalitptl/care-portal/internal/repository"
	"github.com/jwalitptl/care-portal/internal/service/audit"
	"github.com/jwalitptl/care-portal/internal/service/rbac"
	apperrors "github.com/jwalitptl/care-portal/pkg/errors"
)

type Service struct {
	repo         repository.NoteRepository
	accounts     repository.AccountRepository
	appointments repository.AppointmentRepository
	gate         *rbac.Gate
	auditor      *audit.Service
	now          func() time.Time
}

func NewService(repo repository.NoteRepository, accounts repository.AccountRepository,
	appointments repository.AppointmentRepository, gate *rbac.Gate, auditor *audit.Service) *Service {
	return &Service{
		repo:         repo,
		accounts:     accounts,
		appointments: appointments,
		gate:         gate,
		auditor:      auditor,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a note authored by the calling doctor. A note may name a
// patient the doctor has treated.
func (s *Service) Create(ctx context.Context, actor model.Identity, req *model.CreateNoteRequest) (*model.Note, error) {
	if err := s.gate.Require(ctx, actor, rbac.PermissionNoteWrite); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, apperrors.Validation("title is required", nil)
	}

	if req.PatientID != nil {
		patient, err := s.accounts.Get(ctx, *req.PatientID)
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("patient", err)
		}
		if err != nil {
			return nil, err
		}
		if patient.Role != model.RolePatient {
			return nil, apperrors.Validation("patient_id does not reference a patient", nil)
		}
		treated, err := s.hasTreated(ctx, actor.AccountID, patient.ID)
		if err != nil {
			return nil, err
		}
		if err := s.gate.CanWriteNotes(ctx, actor, req.PatientID, treated); err != nil {
			return nil, err
		}
	}

	n := &model.Note{
		DoctorID:  actor.AccountID,
		PatientID: req.PatientID,
		Title:     title,
		Content:   strings.TrimSpace(req.Content),
	}
	n.Touch(s.now())

	if err := s.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}
	s.auditor.Log(ctx, actor.AccountID, audit.ActionCreate, "note", n.ID, nil)
	return n, nil
}

func (s *Service) hasTreated(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	appts, err := s.appointments.List(ctx, model.AppointmentFilter{DoctorID: &doctorID, PatientID: &patientID})
	if err != nil {
		return false, err
	}
	for _, a := range appts {
		if a.Status == model.AppointmentStatusApproved || a.Status == model.AppointmentStatusCompleted {
			return true, nil
		}
	}
	return false, nil
}

// List returns the caller's own notes. Admins may list every note or one
// doctor's through filter.DoctorID.
func (s *Service) List(ctx context.Context, actor model.Identity, filter model.NoteFilter) ([]*model.Note, error) {
	switch {
	case filter.DoctorID != nil:
		if err := s.gate.CanListNotes(ctx, actor, *filter.DoctorID); err != nil {
			return nil, err
		}
	case actor.IsDoctor():
		filter.DoctorID = &actor.AccountID
	default:
		if err := s.gate.Require(ctx, actor, rbac.PermissionNoteReadAll); err != nil {
			return nil, err
		}
	}
	return s.repo.List(ctx, filter)
}

func (s *Service) Get(ctx context.Context, actor model.Identity, id uuid.UUID) (*model.Note, error) {
	n, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gate.CanReadNote(ctx, actor, n); err != nil {
		return nil, err
	}
	return n, nil
}

// Update rewrites title or content. Only the author may change a note.
func (s *Service) Update(ctx context.Context, actor model.Identity, id uuid.UUID, req *model.UpdateNoteRequest) (*model.Note, error) {
	n, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gate.CanModifyNote(ctx, actor, n); err != nil {
		return nil, err
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, apperrors.Validation("title cannot be empty", nil)
		}
		n.Title = title
	}
	if req.Content != nil {
		n.Content = strings.TrimSpace(*req.Content)
	}

	if err := s.repo.Update(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to update note: %w", err)
	}
	s.auditor.Log(ctx, actor.AccountID, audit.ActionUpdate, "note", n.ID, nil)
	return n, nil
}

func (s *Service) Delete(ctx context.Context, actor model.Identity, id uuid.UUID) error {
	n, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.gate.CanModifyNote(ctx, actor, n); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	s.auditor.Log(ctx, actor.AccountID, audit.ActionDelete, "note", id, nil)
	return nil
}
