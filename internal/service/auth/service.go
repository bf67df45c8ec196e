package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/care-portal/internal/model"
	"github.com/jwalitptl/care-portal/internal/repository"
	"github.com/jwalitptl/care-portal/internal/service/audit"
	"github.com/jwalitptl/care-portal/internal/service/notification"
	"github.com/jwalitptl/care-portal/pkg/auth"
	apperrors "github.com/jwalitptl/care-portal/pkg/errors"
	"github.com/jwalitptl/care-portal/pkg/logger"
	"github.com/jwalitptl/care-portal/pkg/metrics"
	"github.com/jwalitptl/care-portal/pkg/security"
)

const (
	tokenType       = "Bearer"
	defaultCacheTTL = 30 * time.Second
	// Any value works; it only has to be hashable so unknown emails cost one
	// bcrypt comparison like known ones.
	dummyPassword = "care-portal-dummy-credential"
)

var validate = validator.New()

type Service struct {
	accounts repository.AccountRepository
	hasher   security.PasswordHasher
	jwtSvc   auth.JWTService
	notifier notification.Service
	auditor  *audit.Service
	metrics  *metrics.Metrics
	logger   *logger.Logger

	identities *cache.Cache
	dummyHash  string
	now        func() time.Time
}

type Options struct {
	// IdentityCacheTTL bounds how long a deleted account's token keeps
	// resolving. Zero means the default.
	IdentityCacheTTL time.Duration
	Metrics          *metrics.Metrics
	Logger           *logger.Logger
}

func NewService(accounts repository.AccountRepository, hasher security.PasswordHasher, jwtSvc auth.JWTService,
	notifier notification.Service, auditor *audit.Service, opts Options) (*Service, error) {
	ttl := opts.IdentityCacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	l := opts.Logger
	if l == nil {
		l = logger.Nop()
	}

	dummy, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare credential hasher: %w", err)
	}

	return &Service{
		accounts:   accounts,
		hasher:     hasher,
		jwtSvc:     jwtSvc,
		notifier:   notifier,
		auditor:    auditor,
		metrics:    opts.Metrics,
		logger:     l,
		identities: cache.New(ttl, 2*ttl),
		dummyHash:  dummy,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *Service) RegisterPatient(ctx context.Context, req *model.RegisterRequest) (*model.Account, error) {
	return s.register(ctx, req, model.RolePatient)
}

// RegisterDoctor always creates the account in pending status, whatever the
// request carries, and tells the admins there is a doctor to review.
func (s *Service) RegisterDoctor(ctx context.Context, req *model.RegisterRequest) (*model.Account, error) {
	acc, err := s.register(ctx, req, model.RoleDoctor)
	if err != nil {
		return nil, err
	}

	if err := s.notifier.NotifyAdmins(ctx, model.EventDoctorRegistered,
		"New doctor registration",
		fmt.Sprintf("Dr. %s %s registered and is awaiting approval.", acc.FirstName, acc.LastName),
	); err != nil {
		logger.FromContext(ctx, s.logger).Error(err, "failed to notify admins of doctor registration",
			"doctor_id", acc.ID.String())
	}
	return acc, nil
}

func (s *Service) register(ctx context.Context, req *model.RegisterRequest, role model.Role) (*model.Account, error) {
	email := model.NormalizeEmail(req.Email)
	if err := validate.Var(email, "required,email"); err != nil {
		return nil, apperrors.Validation("invalid email address", err)
	}
	if strings.TrimSpace(req.FirstName) == "" || strings.TrimSpace(req.LastName) == "" {
		return nil, apperrors.Validation("first and last name are required", nil)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooShort) || errors.Is(err, security.ErrPasswordTooLong) {
			return nil, apperrors.Validation(err.Error(), err)
		}
		return nil, apperrors.Internal(err)
	}

	acc := newAccount(req, role)
	acc.Email = email
	acc.PasswordHash = hash
	acc.Touch(s.now())

	// The store's unique index is the authority on duplicates.
	if err := s.accounts.Create(ctx, acc); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	if s.metrics != nil {
		s.metrics.Registrations.WithLabelValues(string(role)).Inc()
	}
	s.auditor.Log(ctx, acc.ID, audit.ActionRegister, "account", acc.ID, &audit.LogOptions{To: string(role)})
	return acc, nil
}

func newAccount(req *model.RegisterRequest, role model.Role) *model.Account {
	acc := &model.Account{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Role:      role,
		Phone:     req.Phone,
		Province:  req.Province,
		City:      req.City,
	}

	switch role {
	case model.RolePatient:
		acc.Age = req.Age
		acc.Gender = req.Gender
		acc.DateOfBirth = req.DateOfBirth
		acc.BloodType = req.BloodType
		acc.Allergies = pq.StringArray(req.Allergies)
		acc.ChronicConditions = pq.StringArray(req.ChronicConditions)
		acc.CurrentMedications = pq.StringArray(req.CurrentMedications)
		acc.PastProcedures = pq.StringArray(req.PastProcedures)
		acc.MedicalHistory = req.MedicalHistory
		acc.EmergencyContactName = req.EmergencyContactName
		acc.EmergencyContactPhone = req.EmergencyContactPhone
	case model.RoleDoctor:
		acc.Specialty = req.Specialty
		acc.RegistrationNumber = req.RegistrationNumber
		acc.YearsOfExperience = req.YearsOfExperience
		acc.ClinicName = req.ClinicName
		pending := model.DoctorStatusPending
		acc.Status = &pending
	}
	return acc
}

// Authenticate returns the same InvalidCredentials error whether the email is
// unknown or the password is wrong, and does comparable work in both cases.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*model.LoginResponse, error) {
	acc, err := s.accounts.GetByEmail(ctx, model.NormalizeEmail(email))
	if err != nil && !apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	hash := s.dummyHash
	if acc != nil {
		hash = acc.PasswordHash
	}
	mismatch := s.hasher.Compare(hash, password) != nil

	if acc == nil || mismatch {
		if s.metrics != nil {
			s.metrics.LoginFailures.Inc()
		}
		s.auditor.Log(ctx, uuid.Nil, audit.ActionLoginFailed, "account", uuid.Nil, nil)
		return nil, apperrors.InvalidCredentials()
	}

	token, expiresAt, err := s.jwtSvc.GenerateAccessToken(acc.ID, acc.Email, string(acc.Role))
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to generate token: %w", err))
	}

	s.identities.SetDefault(acc.ID.String(), identityOf(acc))
	s.auditor.Log(ctx, acc.ID, audit.ActionLogin, "account", acc.ID, nil)

	return &model.LoginResponse{
		AccessToken: token,
		TokenType:   tokenType,
		ExpiresAt:   expiresAt,
		Account:     acc,
	}, nil
}

func (s *Service) FetchAccount(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	acc, err := s.accounts.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch account: %w", err)
	}
	return acc, nil
}

// ResolveIdentity verifies the token and confirms the account still exists.
// Results are cached briefly; Invalidate drops an entry early.
func (s *Service) ResolveIdentity(ctx context.Context, token string) (model.Identity, error) {
	claims, err := s.jwtSvc.ValidateToken(token)
	if err != nil {
		return model.Identity{}, apperrors.Unauthorized(err)
	}

	if cached, ok := s.identities.Get(claims.AccountID); ok {
		return cached.(model.Identity), nil
	}

	id, err := uuid.Parse(claims.AccountID)
	if err != nil {
		return model.Identity{}, apperrors.Unauthorized(auth.ErrInvalidToken)
	}

	acc, err := s.accounts.Get(ctx, id)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return model.Identity{}, apperrors.Unauthorized(errors.New("account no longer exists"))
		}
		return model.Identity{}, err
	}

	identity := identityOf(acc)
	s.identities.SetDefault(claims.AccountID, identity)
	return identity, nil
}

// Invalidate evicts a cached identity, for example after the account is
// deleted.
func (s *Service) Invalidate(id uuid.UUID) {
	s.identities.Delete(id.String())
}

// EnsureAdmin creates the bootstrap admin unless an account with that email
// already exists. It reports whether an account was created.
func (s *Service) EnsureAdmin(ctx context.Context, email, password, firstName, lastName string) (*model.Account, bool, error) {
	existing, err := s.accounts.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.Role != model.RoleAdmin {
			return nil, false, apperrors.Conflict("email belongs to a non-admin account", nil)
		}
		return existing, false, nil
	case !apperrors.Is(err, apperrors.ErrNotFound):
		return nil, false, fmt.Errorf("failed to look up admin: %w", err)
	}

	acc, err := s.register(ctx, &model.RegisterRequest{
		FirstName: firstName,
		LastName:  lastName,
		Email:     email,
		Password:  password,
	}, model.RoleAdmin)
	if apperrors.Is(err, apperrors.ErrDuplicateEmail) {
		// Lost a race with another bootstrap run.
		existing, getErr := s.accounts.GetByEmail(ctx, email)
		if getErr != nil {
			return nil, false, getErr
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	s.auditor.Log(ctx, acc.ID, audit.ActionBootstrapAdmin, "account", acc.ID, nil)
	return acc, true, nil
}

func identityOf(acc *model.Account) model.Identity {
	return model.Identity{AccountID: acc.ID, Email: acc.Email, Role: acc.Role}
}
