package note

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/care-portal/internal/model"
	fixtures "github.com/jwalitptl/care-portal/internal/testutil"
	apperrors "github.com/jwalitptl/care-portal/pkg/errors"
)

type env struct {
	*fixtures.Fixture
	svc     *Service
	patient model.Identity
	doctor  model.Identity
	admin   model.Identity
}

func setup(t *testing.T) *env {
	t.Helper()
	f := fixtures.New()
	e := &env{
		Fixture: f,
		svc:     NewService(f.Store.Notes, f.Store.Accounts, f.Store.Appointments, f.Gate, f.Auditor),
	}
	_, e.patient = f.Account(t, "p@x.com", model.RolePatient)
	_, e.doctor = f.Account(t, "d@x.com", model.RoleDoctor)
	_, e.admin = f.Account(t, "admin@x.com", model.RoleAdmin)
	return e
}

func (e *env) treat(t *testing.T) {
	t.Helper()
	appt := e.Appointment(t, e.patient, e.doctor, model.AppointmentTypePhysical, "2025-01-10", "10:00")
	_, err := e.Store.Appointments.UpdateStatus(context.Background(), appt.ID,
		model.AppointmentStatusPending, model.AppointmentStatusApproved, nil)
	require.NoError(t, err)
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	e := setup(t)

	n, err := e.svc.Create(ctx, e.doctor, &model.CreateNoteRequest{Title: "  Ward round ", Content: "bed 4 stable"})
	require.NoError(t, err)
	assert.Equal(t, "Ward round", n.Title)
	assert.Equal(t, e.doctor.AccountID, n.DoctorID)
	assert.Nil(t, n.PatientID)

	_, err = e.svc.Create(ctx, e.doctor, &model.CreateNoteRequest{Title: "   "})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	for _, who := range []model.Identity{e.patient, e.admin} {
		_, err = e.svc.Create(ctx, who, &model.CreateNoteRequest{Title: "x"})
		assert.True(t, apperrors.Is(err, apperrors.ErrForbidden), "%s", who.Role)
	}
}

func TestCreateAboutPatient(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	req := &model.CreateNoteRequest{PatientID: &e.patient.AccountID, Title: "Allergy follow-up"}

	_, err := e.svc.Create(ctx, e.doctor, req)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden), "patient not treated yet")

	e.treat(t)
	n, err := e.svc.Create(ctx, e.doctor, req)
	require.NoError(t, err)
	require.NotNil(t, n.PatientID)
	assert.Equal(t, e.patient.AccountID, *n.PatientID)

	missing := uuid.New()
	_, err = e.svc.Create(ctx, e.doctor, &model.CreateNoteRequest{PatientID: &missing, Title: "x"})
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	_, err = e.svc.Create(ctx, e.doctor, &model.CreateNoteRequest{PatientID: &e.admin.AccountID, Title: "x"})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}

func TestListScopes(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	_, other := e.Account(t, "d2@x.com", model.RoleDoctor)

	_, err := e.svc.Create(ctx, e.doctor, &model.CreateNoteRequest{Title: "mine"})
	require.NoError(t, err)
	_, err = e.svc.Create(ctx, other, &model.CreateNoteRequest{Title: "theirs"})
	require.NoError(t, err)

	mine, err := e.svc.List(ctx, e.doctor, model.NoteFilter{})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "mine", mine[0].Title)

	_, err = e.svc.List(ctx, e.doctor, model.NoteFilter{DoctorID: &other.AccountID})
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	all, err := e.svc.List(ctx, e.admin, model.NoteFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	theirs, err := e.svc.List(ctx, e.admin, model.NoteFilter{DoctorID: &other.AccountID})
	require.NoError(t, err)
	require.Len(t, theirs, 1)
	assert.Equal(t, "theirs", theirs[0].Title)

	_, err = e.svc.List(ctx, e.patient, model.NoteFilter{})
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
}

func TestListByPatient(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	e.treat(t)

	_, err := e.svc.Create(ctx, e.doctor, &model.CreateNoteRequest{PatientID: &e.patient.AccountID, Title: "about p"})
	require.NoError(t, err)
	_, err = e.svc.Create(ctx, e.doctor, &model.CreateNoteRequest{Title: "general"})
	require.NoError(t, err)

	list, err := e.svc.List(ctx, e.doctor, model.NoteFilter{PatientID: &e.patient.AccountID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "about p", list[0].Title)
}

func TestOnlyAuthorChangesNote(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	_, other := e.Account(t, "d2@x.com", model.RoleDoctor)

	n, err := e.svc.Create(ctx, e.doctor, &model.CreateNoteRequest{Title: "draft", Content: "a"})
	require.NoError(t, err)

	got, err := e.svc.Get(ctx, e.admin, n.ID)
	require.NoError(t, err)
	assert.Equal(t, "draft", got.Title)
	_, err = e.svc.Get(ctx, other, n.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
	_, err = e.svc.Get(ctx, e.patient, n.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	content := "b"
	_, err = e.svc.Update(ctx, e.admin, n.ID, &model.UpdateNoteRequest{Content: &content})
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden), "admins read notes but do not edit them")

	updated, err := e.svc.Update(ctx, e.doctor, n.ID, &model.UpdateNoteRequest{Content: &content})
	require.NoError(t, err)
	assert.Equal(t, "draft", updated.Title)
	assert.Equal(t, "b", updated.Content)

	empty := " "
	_, err = e.svc.Update(ctx, e.doctor, n.ID, &model.UpdateNoteRequest{Title: &empty})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	assert.True(t, apperrors.Is(e.svc.Delete(ctx, other, n.ID), apperrors.ErrForbidden))
	require.NoError(t, e.svc.Delete(ctx, e.doctor, n.ID))
	_, err = e.svc.Get(ctx, e.doctor, n.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	assert.True(t, apperrors.Is(e.svc.Delete(ctx, e.doctor, n.ID), apperrors.ErrNotFound))
}
