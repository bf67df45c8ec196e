package appointment

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/care-portal/internal/model"
	"github.com/jwalitptl/care-portal/internal/repository"
	"github.com/jwalitptl/care-portal/internal/service/account"
	authsvc "github.com/jwalitptl/care-portal/internal/service/auth"
	"github.com/jwalitptl/care-portal/internal/service/notification"
	fixtures "github.com/jwalitptl/care-portal/internal/testutil"
	"github.com/jwalitptl/care-portal/pkg/auth"
	apperrors "github.com/jwalitptl/care-portal/pkg/errors"
	"github.com/jwalitptl/care-portal/pkg/security"
)

type countingLinks struct {
	mu sync.Mutex
	n  int
}

func (c *countingLinks) Generate(*model.Appointment) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return "https://meet.test/room-" + uuid.NewString()
}

type env struct {
	*fixtures.Fixture
	svc      *Service
	notifier notification.Service
	links    *countingLinks
	patient  model.Identity
	doctor   model.Identity
	admin    model.Identity
}

func setup(t *testing.T) *env {
	t.Helper()
	f := fixtures.New()
	notifier := notification.NewService(f.Store.Notifications, f.Store.Accounts, f.Gate, nil)
	links := &countingLinks{}
	e := &env{
		Fixture:  f,
		svc:      NewService(f.Store.Appointments, f.Store.Accounts, f.Gate, notifier, links, f.Auditor, f.Metrics, nil),
		notifier: notifier,
		links:    links,
	}
	_, e.patient = f.Account(t, "p@x.com", model.RolePatient)
	_, e.doctor = f.Account(t, "d@x.com", model.RoleDoctor)
	_, e.admin = f.Account(t, "admin@x.com", model.RoleAdmin)
	return e
}

func (e *env) book(t *testing.T, apptType model.AppointmentType, slot string) *model.Appointment {
	t.Helper()
	appt, err := e.svc.Create(context.Background(), e.patient, &model.CreateAppointmentRequest{
		DoctorID: e.doctor.AccountID,
		Type:     string(apptType),
		Date:     "2025-01-10",
		Time:     slot,
		Reason:   "checkup",
	})
	require.NoError(t, err)
	return appt
}

func TestCreate(t *testing.T) {
	e := setup(t)
	appt := e.book(t, model.AppointmentTypeOnline, "10:00")

	assert.Equal(t, model.AppointmentStatusPending, appt.Status)
	assert.Nil(t, appt.VideoCallLink)
	assert.Equal(t, e.patient.AccountID, appt.PatientID)
	assert.Equal(t, "2025-01-10", appt.Date.String())
	assert.Equal(t, 1.0, testutil.ToFloat64(e.Metrics.AppointmentsBooked.WithLabelValues("online")))

	doctorInbox, err := e.Store.Notifications.ListByUser(context.Background(), e.doctor.AccountID)
	require.NoError(t, err)
	require.Len(t, doctorInbox, 1)
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	_, pending := e.Account(t, "pending@x.com", model.RoleDoctor, model.DoctorStatusPending)

	base := model.CreateAppointmentRequest{DoctorID: e.doctor.AccountID, Type: "online", Date: "2025-01-10", Time: "10:00"}
	cases := []struct {
		name string
		edit func(r *model.CreateAppointmentRequest)
		code apperrors.ErrorCode
	}{
		{"in-person is not a type", func(r *model.CreateAppointmentRequest) { r.Type = "in-person" }, apperrors.ErrValidation},
		{"bad date", func(r *model.CreateAppointmentRequest) { r.Date = "10/01/2025" }, apperrors.ErrValidation},
		{"blank time", func(r *model.CreateAppointmentRequest) { r.Time = " " }, apperrors.ErrValidation},
		{"unknown doctor", func(r *model.CreateAppointmentRequest) { r.DoctorID = uuid.New() }, apperrors.ErrNotFound},
		{"doctor is a patient", func(r *model.CreateAppointmentRequest) { r.DoctorID = e.patient.AccountID }, apperrors.ErrValidation},
		{"doctor not approved", func(r *model.CreateAppointmentRequest) { r.DoctorID = pending.AccountID }, apperrors.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := base
			tc.edit(&req)
			_, err := e.svc.Create(ctx, e.patient, &req)
			assert.Equal(t, tc.code, apperrors.CodeOf(err), "%v", err)
		})
	}
}

func TestOnlyPatientsBookForThemselves(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	_, other := e.Account(t, "other@x.com", model.RolePatient)

	req := &model.CreateAppointmentRequest{DoctorID: e.doctor.AccountID, Type: "physical", Date: "2025-01-10", Time: "10:00"}
	for _, id := range []model.Identity{e.doctor, e.admin} {
		_, err := e.svc.Create(ctx, id, req)
		assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
	}

	onBehalf := *req
	onBehalf.PatientID = &other.AccountID
	_, err := e.svc.Create(ctx, e.patient, &onBehalf)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
}

func TestDoubleBookingIsConflict(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	_, other := e.Account(t, "other@x.com", model.RolePatient)
	e.book(t, model.AppointmentTypePhysical, "10:00")

	_, err := e.svc.Create(ctx, other, &model.CreateAppointmentRequest{
		DoctorID: e.doctor.AccountID, Type: "online", Date: "2025-01-10", Time: "10:00",
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
}

func TestLifecycleTable(t *testing.T) {
	all := []model.AppointmentStatus{
		model.AppointmentStatusPending, model.AppointmentStatusApproved, model.AppointmentStatusDeclined,
		model.AppointmentStatusCompleted, model.AppointmentStatusCancelled,
	}
	allowed := map[[2]model.AppointmentStatus]bool{
		{model.AppointmentStatusPending, model.AppointmentStatusApproved}:   true,
		{model.AppointmentStatusPending, model.AppointmentStatusDeclined}:   true,
		{model.AppointmentStatusPending, model.AppointmentStatusCancelled}:  true,
		{model.AppointmentStatusApproved, model.AppointmentStatusCompleted}: true,
		{model.AppointmentStatusApproved, model.AppointmentStatusCancelled}: true,
	}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]model.AppointmentStatus{from, to}], CanTransition(from, to), "%s -> %s", from, to)
			if from.Terminal() {
				assert.False(t, CanTransition(from, to))
			}
		}
	}
}

func TestTerminalStatesRejectEveryTransition(t *testing.T) {
	ctx := context.Background()
	for _, terminal := range []model.AppointmentStatus{
		model.AppointmentStatusDeclined, model.AppointmentStatusCancelled, model.AppointmentStatusCompleted,
	} {
		t.Run(string(terminal), func(t *testing.T) {
			e := setup(t)
			appt := e.book(t, model.AppointmentTypePhysical, "10:00")
			if terminal == model.AppointmentStatusCompleted {
				_, err := e.svc.UpdateStatus(ctx, e.doctor, appt.ID, "approved")
				require.NoError(t, err)
			}
			_, err := e.svc.UpdateStatus(ctx, e.admin, appt.ID, string(terminal))
			require.NoError(t, err)

			for _, to := range []string{"pending", "approved", "declined", "completed", "cancelled"} {
				for _, actor := range []model.Identity{e.doctor, e.admin} {
					_, err := e.svc.UpdateStatus(ctx, actor, appt.ID, to)
					assert.True(t, apperrors.Is(err, apperrors.ErrInvalidTransition), "%s -> %s by %s: %v", terminal, to, actor.Role, err)
				}
			}
			_, err = e.svc.Cancel(ctx, e.patient, appt.ID)
			assert.True(t, apperrors.Is(err, apperrors.ErrInvalidTransition))
		})
	}
}

func TestUndefinedEdgeIsInvalidTransition(t *testing.T) {
	e := setup(t)
	appt := e.book(t, model.AppointmentTypePhysical, "10:00")

	_, err := e.svc.UpdateStatus(context.Background(), e.doctor, appt.ID, "completed")
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidTransition))
	_, err = e.svc.UpdateStatus(context.Background(), e.doctor, appt.ID, "rescheduled")
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}

func TestApprovalAssignsOneStableLink(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	appt := e.book(t, model.AppointmentTypeOnline, "10:00")

	approved, err := e.svc.UpdateStatus(ctx, e.doctor, appt.ID, "approved")
	require.NoError(t, err)
	require.NotNil(t, approved.VideoCallLink)
	link := *approved.VideoCallLink

	fetched, err := e.svc.FetchVideoLink(ctx, e.patient, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, link, fetched.VideoCallLink)
	generated, err := e.svc.GenerateVideoLink(ctx, e.doctor, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, link, generated.VideoCallLink)

	completed, err := e.svc.UpdateStatus(ctx, e.doctor, appt.ID, "completed")
	require.NoError(t, err)
	assert.Equal(t, link, *completed.VideoCallLink)
	assert.Equal(t, 1, e.links.n)
}

func TestPhysicalAppointmentsHaveNoLink(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	appt := e.book(t, model.AppointmentTypePhysical, "10:00")

	approved, err := e.svc.UpdateStatus(ctx, e.doctor, appt.ID, "approved")
	require.NoError(t, err)
	assert.Nil(t, approved.VideoCallLink)

	_, err = e.svc.GenerateVideoLink(ctx, e.doctor, appt.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
	assert.Zero(t, e.links.n)
}

func TestVideoLinkBeforeApproval(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	appt := e.book(t, model.AppointmentTypeOnline, "10:00")
	_, stranger := e.Account(t, "s@x.com", model.RolePatient)

	_, err := e.svc.GenerateVideoLink(ctx, e.patient, appt.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
	_, err = e.svc.FetchVideoLink(ctx, e.patient, appt.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	_, err = e.svc.FetchVideoLink(ctx, stranger, appt.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
}

func TestGenerateVideoLinkForApprovedWithoutLink(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	appt := e.book(t, model.AppointmentTypeOnline, "10:00")

	// Approved without going through UpdateStatus, e.g. rows predating
	// lazy link assignment.
	_, err := e.Store.Appointments.UpdateStatus(ctx, appt.ID, model.AppointmentStatusPending, model.AppointmentStatusApproved, nil)
	require.NoError(t, err)

	resp, err := e.svc.GenerateVideoLink(ctx, e.patient, appt.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.VideoCallLink, "https://meet.test/"))
	again, err := e.svc.FetchVideoLink(ctx, e.doctor, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, resp.VideoCallLink, again.VideoCallLink)
}

func TestStatusAuthority(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	_, otherPatient := e.Account(t, "p2@x.com", model.RolePatient)
	_, otherDoctor := e.Account(t, "d2@x.com", model.RoleDoctor)
	appt := e.book(t, model.AppointmentTypePhysical, "10:00")

	for _, id := range []model.Identity{otherPatient, otherDoctor} {
		_, err := e.svc.UpdateStatus(ctx, id, appt.ID, "cancelled")
		assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
	}
	_, err := e.svc.UpdateStatus(ctx, e.patient, appt.ID, "approved")
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden), "patients may only cancel")

	got, err := e.svc.UpdateStatus(ctx, e.doctor, appt.ID, "approved")
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusApproved, got.Status)

	second := e.book(t, model.AppointmentTypePhysical, "11:00")
	got, err = e.svc.UpdateStatus(ctx, e.admin, second.ID, "declined")
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusDeclined, got.Status)
}

func TestPatientCancelNotifiesDoctor(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	appt := e.book(t, model.AppointmentTypePhysical, "10:00")

	got, err := e.svc.Cancel(ctx, e.patient, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, got.Status)

	inbox, err := e.Store.Notifications.ListByUser(ctx, e.doctor.AccountID)
	require.NoError(t, err)
	require.Len(t, inbox, 2)
	assert.Equal(t, "Appointment cancelled", inbox[0].Title)
}

func TestConcurrentTransitionsOneWins(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	appt := e.book(t, model.AppointmentTypePhysical, "10:00")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, to := range []string{"approved", "declined"} {
		wg.Add(1)
		go func(i int, to string) {
			defer wg.Done()
			_, errs[i] = e.svc.UpdateStatus(ctx, e.doctor, appt.ID, to)
		}(i, to)
	}
	wg.Wait()

	// approved and declined exclude each other, so the loser always sees an
	// undefined edge whether it lost before or during the write.
	failures := 0
	for _, err := range errs {
		if err != nil {
			failures++
			assert.Equal(t, apperrors.ErrInvalidTransition, apperrors.CodeOf(err), "%v", err)
		}
	}
	assert.Equal(t, 1, failures)
}

// staleReads serves one outdated snapshot from Get, as if another writer
// committed between the read and the compare-and-set.
type staleReads struct {
	repository.AppointmentRepository
	mu       sync.Mutex
	snapshot *model.Appointment
}

func (r *staleReads) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	r.mu.Lock()
	snap := r.snapshot
	r.snapshot = nil
	r.mu.Unlock()
	if snap != nil {
		return snap, nil
	}
	return r.AppointmentRepository.Get(ctx, id)
}

func TestLostRaceReportsKindForCurrentStatus(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name     string
		winner   string
		actor    func(*env) model.Identity
		to       string
		wantCode apperrors.ErrorCode
	}{
		{"cancel after decline", "declined", func(e *env) model.Identity { return e.patient }, "cancelled", apperrors.ErrInvalidTransition},
		{"approve after cancel", "cancelled", func(e *env) model.Identity { return e.doctor }, "approved", apperrors.ErrInvalidTransition},
		{"cancel after approve", "approved", func(e *env) model.Identity { return e.patient }, "cancelled", apperrors.ErrConflict},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := setup(t)
			appt := e.book(t, model.AppointmentTypePhysical, "10:00")
			snapshot := *appt

			actor := e.doctor
			if tc.winner == "cancelled" {
				actor = e.patient
			}
			_, err := e.svc.UpdateStatus(ctx, actor, appt.ID, tc.winner)
			require.NoError(t, err)

			stale := &staleReads{AppointmentRepository: e.Store.Appointments, snapshot: &snapshot}
			svc := NewService(stale, e.Store.Accounts, e.Gate, e.notifier, e.links, e.Auditor, e.Metrics, nil)

			_, err = svc.UpdateStatus(ctx, tc.actor(e), appt.ID, tc.to)
			require.Error(t, err)
			assert.Equal(t, tc.wantCode, apperrors.CodeOf(err), "%v", err)
			if tc.wantCode == apperrors.ErrConflict {
				assert.True(t, errors.Is(err, repository.ErrStaleStatus))
			}

			current, err := e.Store.Appointments.Get(ctx, appt.ID)
			require.NoError(t, err)
			assert.Equal(t, model.AppointmentStatus(tc.winner), current.Status)
		})
	}
}

func TestListings(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	_, otherPatient := e.Account(t, "p2@x.com", model.RolePatient)
	first := e.book(t, model.AppointmentTypePhysical, "10:00")
	e.book(t, model.AppointmentTypeOnline, "11:00")
	_, err := e.svc.Cancel(ctx, e.patient, first.ID)
	require.NoError(t, err)

	mine, err := e.svc.ListByPatient(ctx, e.patient, e.patient.AccountID, "")
	require.NoError(t, err)
	assert.Len(t, mine, 2)
	assert.Equal(t, "10:00", mine[0].TimeSlot, "same day sorts by time")

	pending, err := e.svc.ListByDoctor(ctx, e.doctor, e.doctor.AccountID, "pending")
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	_, err = e.svc.ListByPatient(ctx, otherPatient, e.patient.AccountID, "")
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
	_, err = e.svc.ListByDoctor(ctx, e.patient, e.doctor.AccountID, "")
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
	_, err = e.svc.ListAll(ctx, e.doctor, "")
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	all, err := e.svc.ListAll(ctx, e.admin, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
	_, err = e.svc.ListAll(ctx, e.admin, "nope")
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	_, err = e.svc.Get(ctx, otherPatient, first.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
	_, err = e.svc.Get(ctx, e.admin, uuid.New())
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestReschedule(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	_, stranger := e.Account(t, "s@x.com", model.RolePatient)
	appt := e.book(t, model.AppointmentTypePhysical, "10:00")
	other := e.book(t, model.AppointmentTypePhysical, "11:00")

	newDate, newTime := "2025-02-01", "09:30"
	got, err := e.svc.Reschedule(ctx, e.patient, appt.ID, &model.RescheduleRequest{Date: &newDate, Time: &newTime})
	require.NoError(t, err)
	assert.Equal(t, "2025-02-01", got.Date.String())
	assert.Equal(t, "09:30", got.TimeSlot)
	assert.Equal(t, "checkup", got.Reason)

	taken := "2025-01-10"
	takenTime := other.TimeSlot
	_, err = e.svc.Reschedule(ctx, e.doctor, appt.ID, &model.RescheduleRequest{Date: &taken, Time: &takenTime})
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict), "slot is held by another appointment")

	_, err = e.svc.Reschedule(ctx, stranger, appt.ID, &model.RescheduleRequest{Time: &newTime})
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	_, err = e.svc.Cancel(ctx, e.patient, appt.ID)
	require.NoError(t, err)
	_, err = e.svc.Reschedule(ctx, e.admin, appt.ID, &model.RescheduleRequest{Time: &newTime})
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
}

func TestRoomLinkGenerator(t *testing.T) {
	g := NewRoomLinkGenerator("https://meet.jit.si/", "careportal")
	a, b := g.Generate(nil), g.Generate(nil)
	assert.True(t, strings.HasPrefix(a, "https://meet.jit.si/careportal-"))
	assert.NotEqual(t, a, b)
}

// The walk-through from registration to a cancelled online appointment.
func TestExampleScenario(t *testing.T) {
	ctx := context.Background()
	f := fixtures.New()
	notifier := notification.NewService(f.Store.Notifications, f.Store.Accounts, f.Gate, nil)
	authService, err := authsvc.NewService(f.Store.Accounts, security.NewBcryptHasher(4, 1),
		auth.NewJWTService(auth.Config{Secret: "s", Issuer: "care-portal", Expiry: time.Hour}),
		notifier, f.Auditor, authsvc.Options{})
	require.NoError(t, err)
	accounts := account.NewService(f.Store.Accounts, f.Store.Stats, f.Gate, notifier, authService, f.Auditor, f.Metrics, nil)
	appointments := NewService(f.Store.Appointments, f.Store.Accounts, f.Gate, notifier,
		NewRoomLinkGenerator("https://meet.jit.si", "careportal"), f.Auditor, f.Metrics, nil)
	_, admin := f.Account(t, "admin@health.com", model.RoleAdmin)

	patient, err := authService.RegisterPatient(ctx, &model.RegisterRequest{FirstName: "A", LastName: "X", Email: "a@x.com", Password: "pw1"})
	require.NoError(t, err)
	assert.Equal(t, model.RolePatient, patient.Role)

	doctor, err := authService.RegisterDoctor(ctx, &model.RegisterRequest{FirstName: "B", LastName: "X", Email: "b@x.com", Password: "pw2"})
	require.NoError(t, err)
	assert.Equal(t, model.RoleDoctor, doctor.Role)
	assert.Equal(t, model.DoctorStatusPending, *doctor.Status)

	_, err = accounts.SetDoctorStatus(ctx, admin, doctor.ID, "approved")
	require.NoError(t, err)

	login, err := authService.Authenticate(ctx, "a@x.com", "pw1")
	require.NoError(t, err)
	patientID, err := authService.ResolveIdentity(ctx, login.AccessToken)
	require.NoError(t, err)
	login, err = authService.Authenticate(ctx, "b@x.com", "pw2")
	require.NoError(t, err)
	doctorID, err := authService.ResolveIdentity(ctx, login.AccessToken)
	require.NoError(t, err)

	appt, err := appointments.Create(ctx, patientID, &model.CreateAppointmentRequest{
		DoctorID: doctor.ID, Type: "online", Date: "2025-01-10", Time: "10:00",
	})
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusPending, appt.Status)
	assert.Nil(t, appt.VideoCallLink)

	appt, err = appointments.UpdateStatus(ctx, doctorID, appt.ID, "approved")
	require.NoError(t, err)
	require.NotNil(t, appt.VideoCallLink)
	assert.NotEmpty(t, *appt.VideoCallLink)

	appt, err = appointments.Cancel(ctx, patientID, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, appt.Status)

	for _, to := range []string{"approved", "completed", "pending"} {
		_, err = appointments.UpdateStatus(ctx, doctorID, appt.ID, to)
		assert.True(t, apperrors.Is(err, apperrors.ErrInvalidTransition), to)
	}
}
