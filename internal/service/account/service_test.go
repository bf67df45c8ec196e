package account

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/care-portal/internal/model"
	"github.com/jwalitptl/care-portal/internal/service/notification"
	fixtures "github.com/jwalitptl/care-portal/internal/testutil"
	apperrors "github.com/jwalitptl/care-portal/pkg/errors"
)

type invalidations []uuid.UUID

func (i *invalidations) Invalidate(id uuid.UUID) { *i = append(*i, id) }

func setup() (*Service, *fixtures.Fixture, *invalidations) {
	f := fixtures.New()
	inv := &invalidations{}
	notifier := notification.NewService(f.Store.Notifications, f.Store.Accounts, f.Gate, nil)
	svc := NewService(f.Store.Accounts, f.Store.Stats, f.Gate, notifier, inv, f.Auditor, f.Metrics, nil)
	return svc, f, inv
}

func setupNoInv() (*Service, *fixtures.Fixture) {
	svc, f, _ := setup()
	return svc, f
}

func strPtr(s string) *string { return &s }

func TestGetIsSelfOrAdmin(t *testing.T) {
	ctx := context.Background()
	svc, f := setupNoInv()
	a, aID := f.Account(t, "a@x.com", model.RolePatient)
	_, bID := f.Account(t, "b@x.com", model.RolePatient)
	_, admin := f.Account(t, "admin@x.com", model.RoleAdmin)

	got, err := svc.Get(ctx, aID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Email, got.Email)

	_, err = svc.Get(ctx, bID, a.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	_, err = svc.Get(ctx, admin, a.ID)
	assert.NoError(t, err)
	_, err = svc.Get(ctx, admin, uuid.New())
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	svc, f := setupNoInv()
	p, pID := f.Account(t, "p@x.com", model.RolePatient)

	allergies := []string{"latex"}
	got, err := svc.UpdateProfile(ctx, pID, p.ID, &model.UpdateProfileRequest{
		City:      strPtr("Lyon"),
		Allergies: &allergies,
	})
	require.NoError(t, err)
	assert.Equal(t, "Lyon", got.City)
	assert.Equal(t, []string{"latex"}, []string(got.Allergies))

	stored, err := f.Store.Accounts.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lyon", stored.City)

	_, err = svc.UpdateProfile(ctx, pID, p.ID, &model.UpdateProfileRequest{Specialty: strPtr("surgery")})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	_, err = svc.UpdateProfile(ctx, pID, p.ID, &model.UpdateProfileRequest{FirstName: strPtr("  ")})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}

func TestUpdateProfileOfAnotherAccount(t *testing.T) {
	ctx := context.Background()
	svc, f := setupNoInv()
	p, _ := f.Account(t, "p@x.com", model.RolePatient)
	_, other := f.Account(t, "o@x.com", model.RolePatient)
	_, admin := f.Account(t, "admin@x.com", model.RoleAdmin)

	_, err := svc.UpdateProfile(ctx, other, p.ID, &model.UpdateProfileRequest{City: strPtr("x")})
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	_, err = svc.UpdateProfile(ctx, admin, p.ID, &model.UpdateProfileRequest{City: strPtr("x")})
	assert.NoError(t, err)
}

func TestDoctorCannotChangeOwnStatus(t *testing.T) {
	ctx := context.Background()
	svc, f := setupNoInv()
	d, dID := f.Account(t, "d@x.com", model.RoleDoctor, model.DoctorStatusPending)

	_, err := svc.UpdateProfile(ctx, dID, d.ID, &model.UpdateProfileRequest{Status: strPtr("approved")})
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	_, err = svc.SetDoctorStatus(ctx, dID, d.ID, "approved")
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	stored, err := f.Store.Accounts.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DoctorStatusPending, *stored.Status)
}

func TestSetDoctorStatusTogglesFreely(t *testing.T) {
	ctx := context.Background()
	svc, f := setupNoInv()
	d, dID := f.Account(t, "d@x.com", model.RoleDoctor, model.DoctorStatusPending)
	_, admin := f.Account(t, "admin@x.com", model.RoleAdmin)

	for _, st := range []string{"approved", "rejected", "pending", "APPROVED"} {
		got, err := svc.SetDoctorStatus(ctx, admin, d.ID, st)
		require.NoError(t, err, st)
		assert.EqualValues(t, strings.ToLower(st), *got.Status)
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(f.Metrics.DoctorStatusChanges.WithLabelValues("approved")))

	list, err := f.Store.Notifications.ListByUser(ctx, dID.AccountID)
	require.NoError(t, err)
	assert.Len(t, list, 4, "the doctor hears about every change")

	_, err = svc.SetDoctorStatus(ctx, admin, d.ID, "suspended")
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	p, _ := f.Account(t, "p@x.com", model.RolePatient)
	_, err = svc.SetDoctorStatus(ctx, admin, p.ID, "approved")
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestDoctorVisibility(t *testing.T) {
	ctx := context.Background()
	svc, f := setupNoInv()
	approved, _ := f.Account(t, "d1@x.com", model.RoleDoctor, model.DoctorStatusApproved)
	pending, pendingID := f.Account(t, "d2@x.com", model.RoleDoctor, model.DoctorStatusPending)
	f.Account(t, "d3@x.com", model.RoleDoctor, model.DoctorStatusRejected)
	_, patient := f.Account(t, "p@x.com", model.RolePatient)
	_, admin := f.Account(t, "admin@x.com", model.RoleAdmin)

	_, err := svc.GetDoctor(ctx, patient, approved.ID)
	assert.NoError(t, err)
	_, err = svc.GetDoctor(ctx, patient, pending.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
	_, err = svc.GetDoctor(ctx, pendingID, pending.ID)
	assert.NoError(t, err)
	_, err = svc.GetDoctor(ctx, admin, pending.ID)
	assert.NoError(t, err)
	_, err = svc.GetDoctor(ctx, admin, patient.AccountID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	public, err := svc.ListApprovedDoctors(ctx)
	require.NoError(t, err)
	require.Len(t, public, 1)
	assert.Equal(t, approved.ID, public[0].ID)

	_, err = svc.ListDoctors(ctx, patient, "")
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
	all, err := svc.ListDoctors(ctx, admin, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
	pendingOnly, err := svc.ListDoctors(ctx, admin, "pending")
	require.NoError(t, err)
	assert.Len(t, pendingOnly, 1)
	_, err = svc.ListDoctors(ctx, admin, "bogus")
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}

func TestListPatientsIsAdminOnly(t *testing.T) {
	ctx := context.Background()
	svc, f := setupNoInv()
	_, p := f.Account(t, "p@x.com", model.RolePatient)
	_, d := f.Account(t, "d@x.com", model.RoleDoctor)
	_, admin := f.Account(t, "admin@x.com", model.RoleAdmin)

	for _, id := range []model.Identity{p, d} {
		_, err := svc.ListPatients(ctx, id)
		assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
	}
	list, err := svc.ListPatients(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestPatientsOfDoctor(t *testing.T) {
	ctx := context.Background()
	svc, f := setupNoInv()
	_, p1 := f.Account(t, "p1@x.com", model.RolePatient)
	f.Account(t, "p2@x.com", model.RolePatient)
	_, d := f.Account(t, "d@x.com", model.RoleDoctor)
	_, other := f.Account(t, "d2@x.com", model.RoleDoctor)
	f.Appointment(t, p1, d, model.AppointmentTypePhysical, "2025-01-10", "10:00")
	f.Appointment(t, p1, d, model.AppointmentTypePhysical, "2025-01-11", "10:00")

	list, err := svc.PatientsOfDoctor(ctx, d, d.AccountID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, p1.AccountID, list[0].ID)

	_, err = svc.PatientsOfDoctor(ctx, other, d.AccountID)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	svc, f, inv := setup()
	_, p := f.Account(t, "p@x.com", model.RolePatient)
	_, d := f.Account(t, "d@x.com", model.RoleDoctor)
	_, admin := f.Account(t, "admin@x.com", model.RoleAdmin)
	appt := f.Appointment(t, p, d, model.AppointmentTypeOnline, "2025-01-10", "10:00")

	err := svc.Delete(ctx, d, p.AccountID)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	err = svc.Delete(ctx, admin, p.AccountID)
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict), "active appointments block deletion")

	_, err = f.Store.Appointments.UpdateStatus(ctx, appt.ID, model.AppointmentStatusPending, model.AppointmentStatusCancelled, nil)
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, admin, p.AccountID))
	assert.Equal(t, invalidations{p.AccountID}, *inv)

	_, err = f.Store.Accounts.Get(ctx, p.AccountID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	err = svc.Delete(ctx, admin, admin.AccountID)
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
	err = svc.Delete(ctx, admin, uuid.New())
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	svc, f := setupNoInv()
	_, p := f.Account(t, "p@x.com", model.RolePatient)
	_, d := f.Account(t, "d@x.com", model.RoleDoctor)
	f.Account(t, "d2@x.com", model.RoleDoctor, model.DoctorStatusPending)
	_, admin := f.Account(t, "admin@x.com", model.RoleAdmin)
	f.Appointment(t, p, d, model.AppointmentTypeOnline, "2025-01-10", "10:00")
	f.Appointment(t, p, d, model.AppointmentTypePhysical, "2025-01-10", "11:00")

	_, err := svc.Stats(ctx, p)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	stats, err := svc.Stats(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalPatients)
	assert.Equal(t, 1, stats.ApprovedDoctors)
	assert.Equal(t, 1, stats.PendingDoctors)
	assert.Equal(t, 2, stats.TotalAppointments)
	assert.Equal(t, 1, stats.OnlineAppointments)
	assert.Equal(t, 1, stats.PhysicalAppointments)
	assert.Equal(t, 2, stats.AppointmentsByStatus[model.AppointmentStatusPending])
}
