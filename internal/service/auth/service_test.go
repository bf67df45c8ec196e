package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/care-portal/internal/model"
	"github.com/jwalitptl/care-portal/internal/repository"
	"github.com/jwalitptl/care-portal/internal/repository/memory"
	"github.com/jwalitptl/care-portal/internal/service/audit"
	"github.com/jwalitptl/care-portal/internal/service/notification"
	"github.com/jwalitptl/care-portal/internal/service/rbac"
	"github.com/jwalitptl/care-portal/pkg/auth"
	apperrors "github.com/jwalitptl/care-portal/pkg/errors"
	"github.com/jwalitptl/care-portal/pkg/metrics"
	"github.com/jwalitptl/care-portal/pkg/security"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, userID uuid.UUID, eventType, title, message string) error {
	return m.Called(ctx, userID, eventType, title, message).Error(0)
}

func (m *mockNotifier) NotifyAdmins(ctx context.Context, eventType, title, message string) error {
	return m.Called(ctx, eventType, title, message).Error(0)
}

func (m *mockNotifier) ListForUser(ctx context.Context, actor model.Identity, userID uuid.UUID) ([]*model.Notification, error) {
	args := m.Called(ctx, actor, userID)
	return args.Get(0).([]*model.Notification), args.Error(1)
}

func (m *mockNotifier) MarkRead(ctx context.Context, actor model.Identity, id uuid.UUID) (*model.Notification, error) {
	args := m.Called(ctx, actor, id)
	return args.Get(0).(*model.Notification), args.Error(1)
}

type fixture struct {
	svc     *Service
	store   *repository.Store
	metrics *metrics.Metrics
	jwt     auth.JWTService
}

func setup(t *testing.T, notifier notification.Service) *fixture {
	t.Helper()
	store := memory.NewStore()
	m := metrics.New("test")
	auditor := audit.NewService(nil)
	if notifier == nil {
		notifier = notification.NewService(store.Notifications, store.Accounts, rbac.NewGate(m, auditor), nil)
	}
	jwtSvc := auth.NewJWTService(auth.Config{Secret: "test-secret", Issuer: "care-portal", Expiry: time.Hour})

	svc, err := NewService(store.Accounts, security.NewBcryptHasher(4, 1), jwtSvc, notifier, auditor,
		Options{IdentityCacheTTL: time.Minute, Metrics: m})
	require.NoError(t, err)
	return &fixture{svc: svc, store: store, metrics: m, jwt: jwtSvc}
}

func registerReq(email, password string) *model.RegisterRequest {
	return &model.RegisterRequest{FirstName: "Ada", LastName: "Lovelace", Email: email, Password: password}
}

func TestRegisterPatient(t *testing.T) {
	f := setup(t, nil)

	acc, err := f.svc.RegisterPatient(context.Background(), registerReq("  A@X.com ", "pw1"))
	require.NoError(t, err)
	assert.Equal(t, model.RolePatient, acc.Role)
	assert.Equal(t, "a@x.com", acc.Email)
	assert.Nil(t, acc.Status)
	assert.NotEqual(t, "pw1", acc.PasswordHash)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Registrations.WithLabelValues("patient")))
}

func TestRegisterRejectsDuplicateEmailInAnyCase(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	_, err := f.svc.RegisterPatient(ctx, registerReq("a@x.com", "pw1"))
	require.NoError(t, err)

	_, err = f.svc.RegisterPatient(ctx, registerReq("A@X.COM", "pw2"))
	assert.True(t, apperrors.Is(err, apperrors.ErrDuplicateEmail))

	_, err = f.svc.RegisterDoctor(ctx, registerReq("a@X.com", "pw2"))
	assert.True(t, apperrors.Is(err, apperrors.ErrDuplicateEmail), "uniqueness spans roles")
}

func TestConcurrentRegistrationCreatesOneAccount(t *testing.T) {
	f := setup(t, nil)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.RegisterPatient(context.Background(), registerReq("race@x.com", "pw"))
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, apperrors.Is(err, apperrors.ErrDuplicateEmail))
	}
	assert.Equal(t, 1, ok)
}

func TestRegisterValidation(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	_, err := f.svc.RegisterPatient(ctx, registerReq("not-an-email", "pw"))
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	_, err = f.svc.RegisterPatient(ctx, registerReq("a@x.com", ""))
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	req := registerReq("b@x.com", "pw")
	req.FirstName = " "
	_, err = f.svc.RegisterPatient(ctx, req)
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}

func TestRegisterDoctorIsAlwaysPending(t *testing.T) {
	notifier := new(mockNotifier)
	notifier.On("NotifyAdmins", mock.Anything, model.EventDoctorRegistered, mock.Anything, mock.Anything).Return(nil)
	f := setup(t, notifier)

	req := registerReq("b@x.com", "pw2")
	req.Status = "approved"
	req.Specialty = "cardiology"
	req.Allergies = []string{"penicillin"}

	acc, err := f.svc.RegisterDoctor(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, model.RoleDoctor, acc.Role)
	require.NotNil(t, acc.Status)
	assert.Equal(t, model.DoctorStatusPending, *acc.Status)
	assert.Equal(t, "cardiology", acc.Specialty)
	assert.Empty(t, acc.Allergies, "patient fields are not copied onto doctors")
	notifier.AssertExpectations(t)
}

func TestRegisterDoctorSurvivesNotifyFailure(t *testing.T) {
	notifier := new(mockNotifier)
	notifier.On("NotifyAdmins", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(apperrors.StoreUnavailable(nil))
	f := setup(t, notifier)

	_, err := f.svc.RegisterDoctor(context.Background(), registerReq("b@x.com", "pw2"))
	assert.NoError(t, err)
}

func TestAuthenticateFailuresAreIndistinguishable(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	_, err := f.svc.RegisterPatient(ctx, registerReq("a@x.com", "pw1"))
	require.NoError(t, err)

	_, wrongPassword := f.svc.Authenticate(ctx, "a@x.com", "nope")
	_, unknownEmail := f.svc.Authenticate(ctx, "ghost@x.com", "pw1")

	require.Error(t, wrongPassword)
	require.Error(t, unknownEmail)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
	assert.Equal(t, apperrors.CodeOf(wrongPassword), apperrors.CodeOf(unknownEmail))
	assert.True(t, apperrors.Is(wrongPassword, apperrors.ErrInvalidCredentials))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.LoginFailures))
}

func TestAuthenticateIssuesToken(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	acc, err := f.svc.RegisterPatient(ctx, registerReq("a@x.com", "pw1"))
	require.NoError(t, err)

	resp, err := f.svc.Authenticate(ctx, " A@x.COM", "pw1")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, acc.ID, resp.Account.ID)
	assert.True(t, resp.ExpiresAt.After(time.Now()))

	claims, err := f.jwt.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, acc.ID.String(), claims.AccountID)
	assert.Equal(t, "patient", claims.Role)
}

func TestResolveIdentity(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	acc, err := f.svc.RegisterPatient(ctx, registerReq("a@x.com", "pw1"))
	require.NoError(t, err)
	resp, err := f.svc.Authenticate(ctx, "a@x.com", "pw1")
	require.NoError(t, err)

	id, err := f.svc.ResolveIdentity(ctx, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, acc.ID, id.AccountID)
	assert.True(t, id.IsPatient())

	_, err = f.svc.ResolveIdentity(ctx, "garbage")
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))

	forged, _, err := auth.NewJWTService(auth.Config{Secret: "other", Issuer: "care-portal"}).
		GenerateAccessToken(acc.ID, acc.Email, "admin")
	require.NoError(t, err)
	_, err = f.svc.ResolveIdentity(ctx, forged)
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
}

func TestResolveIdentityUsesStoredRole(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	acc, err := f.svc.RegisterPatient(ctx, registerReq("a@x.com", "pw1"))
	require.NoError(t, err)

	// A correctly signed token claiming a different role still resolves to
	// the role on record.
	token, _, err := f.jwt.GenerateAccessToken(acc.ID, acc.Email, "admin")
	require.NoError(t, err)
	id, err := f.svc.ResolveIdentity(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, model.RolePatient, id.Role)
}

func TestResolveIdentityAfterDeletion(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	acc, err := f.svc.RegisterPatient(ctx, registerReq("a@x.com", "pw1"))
	require.NoError(t, err)
	resp, err := f.svc.Authenticate(ctx, "a@x.com", "pw1")
	require.NoError(t, err)

	require.NoError(t, f.store.Accounts.Delete(ctx, acc.ID))
	f.svc.Invalidate(acc.ID)

	_, err = f.svc.ResolveIdentity(ctx, resp.AccessToken)
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
}

func TestFetchAccount(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	acc, err := f.svc.RegisterPatient(ctx, registerReq("a@x.com", "pw1"))
	require.NoError(t, err)

	got, err := f.svc.FetchAccount(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, acc.Email, got.Email)

	_, err = f.svc.FetchAccount(ctx, uuid.New())
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	first, created, err := f.svc.EnsureAdmin(ctx, "admin@health.com", "admin123", "System", "Admin")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, model.RoleAdmin, first.Role)

	second, created, err := f.svc.EnsureAdmin(ctx, "admin@health.com", "other", "System", "Admin")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	_, err = f.svc.Authenticate(ctx, "admin@health.com", "admin123")
	assert.NoError(t, err, "the original credential is kept")
}

func TestEnsureAdminRefusesNonAdminEmail(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	_, err := f.svc.RegisterPatient(ctx, registerReq("admin@health.com", "pw"))
	require.NoError(t, err)

	_, _, err = f.svc.EnsureAdmin(ctx, "admin@health.com", "admin123", "System", "Admin")
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
}
