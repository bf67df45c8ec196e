// Package testutil builds in-memory service dependencies for package tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/care-portal/internal/model"
	"github.com/jwalitptl/care-portal/internal/repository"
	"github.com/jwalitptl/care-portal/internal/repository/memory"
	"github.com/jwalitptl/care-portal/internal/service/audit"
	"github.com/jwalitptl/care-portal/internal/service/rbac"
	"github.com/jwalitptl/care-portal/pkg/metrics"
)

type Fixture struct {
	Store   *repository.Store
	Metrics *metrics.Metrics
	Auditor *audit.Service
	Gate    *rbac.Gate
}

func New() *Fixture {
	m := metrics.New("test")
	auditor := audit.NewService(nil)
	return &Fixture{
		Store:   memory.NewStore(),
		Metrics: m,
		Auditor: auditor,
		Gate:    rbac.NewGate(m, auditor),
	}
}

// Account stores an account with the given role directly, skipping
// registration. Doctors are stored with the given status.
func (f *Fixture) Account(t *testing.T, email string, role model.Role, status ...model.DoctorStatus) (*model.Account, model.Identity) {
	t.Helper()
	acc := &model.Account{
		FirstName:    "Test",
		LastName:     string(role),
		Email:        model.NormalizeEmail(email),
		Role:         role,
		PasswordHash: "x",
	}
	if role == model.RoleDoctor {
		st := model.DoctorStatusApproved
		if len(status) > 0 {
			st = status[0]
		}
		acc.Status = &st
	}
	acc.Touch(time.Now().UTC())
	require.NoError(t, f.Store.Accounts.Create(context.Background(), acc))
	return acc, model.Identity{AccountID: acc.ID, Email: acc.Email, Role: role}
}

// Appointment stores a pending appointment directly.
func (f *Fixture) Appointment(t *testing.T, patient, doctor model.Identity, apptType model.AppointmentType, date, slot string) *model.Appointment {
	t.Helper()
	d, err := model.ParseDate(date)
	require.NoError(t, err)
	appt := &model.Appointment{
		PatientID: patient.AccountID,
		DoctorID:  doctor.AccountID,
		Type:      apptType,
		Date:      d,
		TimeSlot:  slot,
		Status:    model.AppointmentStatusPending,
	}
	appt.Touch(time.Now().UTC())
	require.NoError(t, f.Store.Appointments.Create(context.Background(), appt))
	return appt
}
