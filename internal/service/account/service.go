package account

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/jwalitptl/care-portal/internal/model"
	"github.com/jwalitptl/care-portal/internal/repository"
	"github.com/jwalitptl/care-portal/internal/service/audit"
	"github.com/jwalitptl/care-portal/internal/service/notification"
	"github.com/jwalitptl/care-portal/internal/service/rbac"
	apperrors "github.com/jwalitptl/care-portal/pkg/errors"
	"github.com/jwalitptl/care-portal/pkg/logger"
	"github.com/jwalitptl/care-portal/pkg/metrics"
)

// IdentityInvalidator drops cached identities of deleted accounts.
type IdentityInvalidator interface {
	Invalidate(id uuid.UUID)
}

type Service struct {
	accounts    repository.AccountRepository
	stats       repository.StatsRepository
	gate        *rbac.Gate
	notifier    notification.Service
	invalidator IdentityInvalidator
	auditor     *audit.Service
	metrics     *metrics.Metrics
	logger      *logger.Logger
}

func NewService(accounts repository.AccountRepository, stats repository.StatsRepository, gate *rbac.Gate,
	notifier notification.Service, invalidator IdentityInvalidator, auditor *audit.Service,
	m *metrics.Metrics, l *logger.Logger) *Service {
	if l == nil {
		l = logger.Nop()
	}
	return &Service{
		accounts:    accounts,
		stats:       stats,
		gate:        gate,
		notifier:    notifier,
		invalidator: invalidator,
		auditor:     auditor,
		metrics:     m,
		logger:      l,
	}
}

func (s *Service) Get(ctx context.Context, actor model.Identity, id uuid.UUID) (*model.Account, error) {
	if err := s.gate.CanReadAccount(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.accounts.Get(ctx, id)
}

// UpdateProfile applies the non-nil fields of req. Email, role and approval
// status cannot be changed here.
func (s *Service) UpdateProfile(ctx context.Context, actor model.Identity, id uuid.UUID, req *model.UpdateProfileRequest) (*model.Account, error) {
	if err := s.gate.CanUpdateAccount(ctx, actor, id); err != nil {
		return nil, err
	}
	if req.Status != nil {
		if !actor.IsAdmin() {
			return nil, apperrors.Forbidden("approval status can only be changed by an admin")
		}
		return nil, apperrors.Validation("use the doctor status endpoint to change approval status", nil)
	}

	acc, err := s.accounts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyProfile(acc, req); err != nil {
		return nil, err
	}
	if err := s.accounts.Update(ctx, acc); err != nil {
		return nil, fmt.Errorf("failed to update account: %w", err)
	}

	s.auditor.Log(ctx, actor.AccountID, audit.ActionUpdate, "account", id, nil)
	return acc, nil
}

func applyProfile(acc *model.Account, req *model.UpdateProfileRequest) error {
	if req.FirstName != nil {
		if strings.TrimSpace(*req.FirstName) == "" {
			return apperrors.Validation("first name cannot be empty", nil)
		}
		acc.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		if strings.TrimSpace(*req.LastName) == "" {
			return apperrors.Validation("last name cannot be empty", nil)
		}
		acc.LastName = strings.TrimSpace(*req.LastName)
	}
	setString(&acc.Phone, req.Phone)
	setString(&acc.Province, req.Province)
	setString(&acc.City, req.City)

	patientFields := req.Age != nil || req.Gender != nil || req.DateOfBirth != nil || req.BloodType != nil ||
		req.Allergies != nil || req.ChronicConditions != nil || req.CurrentMedications != nil ||
		req.PastProcedures != nil || req.MedicalHistory != nil ||
		req.EmergencyContactName != nil || req.EmergencyContactPhone != nil
	doctorFields := req.Specialty != nil || req.RegistrationNumber != nil ||
		req.YearsOfExperience != nil || req.ClinicName != nil

	if patientFields && acc.Role != model.RolePatient {
		return apperrors.Validation("patient profile fields apply to patient accounts only", nil)
	}
	if doctorFields && acc.Role != model.RoleDoctor {
		return apperrors.Validation("doctor profile fields apply to doctor accounts only", nil)
	}

	if req.Age != nil {
		acc.Age = req.Age
	}
	setString(&acc.Gender, req.Gender)
	setString(&acc.DateOfBirth, req.DateOfBirth)
	setString(&acc.BloodType, req.BloodType)
	setList(&acc.Allergies, req.Allergies)
	setList(&acc.ChronicConditions, req.ChronicConditions)
	setList(&acc.CurrentMedications, req.CurrentMedications)
	setList(&acc.PastProcedures, req.PastProcedures)
	setString(&acc.MedicalHistory, req.MedicalHistory)
	setString(&acc.EmergencyContactName, req.EmergencyContactName)
	setString(&acc.EmergencyContactPhone, req.EmergencyContactPhone)

	setString(&acc.Specialty, req.Specialty)
	setString(&acc.RegistrationNumber, req.RegistrationNumber)
	if req.YearsOfExperience != nil {
		acc.YearsOfExperience = req.YearsOfExperience
	}
	setString(&acc.ClinicName, req.ClinicName)
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setList(dst *pq.StringArray, v *[]string) {
	if v != nil {
		*dst = pq.StringArray(*v)
	}
}

// Delete removes an account. It is refused while the account still has
// pending or approved appointments; otherwise its notifications, finished
// appointments and their prescriptions go with it.
func (s *Service) Delete(ctx context.Context, actor model.Identity, id uuid.UUID) error {
	if err := s.gate.Require(ctx, actor, rbac.PermissionAccountDelete); err != nil {
		return err
	}
	if actor.Is(id) {
		return apperrors.Conflict("admins cannot delete their own account", nil)
	}

	if err := s.accounts.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	if s.invalidator != nil {
		s.invalidator.Invalidate(id)
	}

	s.auditor.Log(ctx, actor.AccountID, audit.ActionDelete, "account", id, nil)
	return nil
}

func (s *Service) ListPatients(ctx context.Context, actor model.Identity) ([]*model.Account, error) {
	if err := s.gate.Require(ctx, actor, rbac.PermissionPatientList); err != nil {
		return nil, err
	}
	return s.accounts.List(ctx, model.AccountFilter{Role: model.RolePatient})
}

// PatientsOfDoctor lists the patients who have booked with the doctor.
func (s *Service) PatientsOfDoctor(ctx context.Context, actor model.Identity, doctorID uuid.UUID) ([]*model.Account, error) {
	if err := s.gate.CanListDoctorAppointments(ctx, actor, doctorID); err != nil {
		return nil, err
	}
	return s.accounts.ListPatientsOfDoctor(ctx, doctorID)
}

// ListDoctors is the admin view of every doctor, optionally narrowed to one
// approval status.
func (s *Service) ListDoctors(ctx context.Context, actor model.Identity, status string) ([]*model.Account, error) {
	if err := s.gate.Require(ctx, actor, rbac.PermissionDoctorListAll); err != nil {
		return nil, err
	}

	filter := model.AccountFilter{Role: model.RoleDoctor}
	if status != "" {
		st, err := model.ParseDoctorStatus(status)
		if err != nil {
			return nil, apperrors.Validation(err.Error(), err)
		}
		filter.DoctorStatus = &st
	}
	return s.accounts.List(ctx, filter)
}

// ListApprovedDoctors is open to every signed-in account.
func (s *Service) ListApprovedDoctors(ctx context.Context) ([]*model.Account, error) {
	approved := model.DoctorStatusApproved
	return s.accounts.List(ctx, model.AccountFilter{Role: model.RoleDoctor, DoctorStatus: &approved})
}

func (s *Service) GetDoctor(ctx context.Context, actor model.Identity, id uuid.UUID) (*model.Account, error) {
	acc, err := s.accounts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if acc.Role != model.RoleDoctor {
		return nil, apperrors.NotFound("doctor", nil)
	}
	if err := s.gate.CanViewDoctor(ctx, actor, acc); err != nil {
		return nil, err
	}
	return acc, nil
}

// SetDoctorStatus moves a doctor between pending, approved and rejected.
// Every pair of values is allowed; there is no terminal state.
func (s *Service) SetDoctorStatus(ctx context.Context, actor model.Identity, id uuid.UUID, status string) (*model.Account, error) {
	if err := s.gate.Require(ctx, actor, rbac.PermissionDoctorSetStatus); err != nil {
		return nil, err
	}
	to, err := model.ParseDoctorStatus(status)
	if err != nil {
		return nil, apperrors.Validation(err.Error(), err)
	}

	before, err := s.accounts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if before.Role != model.RoleDoctor {
		return nil, apperrors.NotFound("doctor", nil)
	}

	acc, err := s.accounts.UpdateDoctorStatus(ctx, id, to)
	if err != nil {
		return nil, fmt.Errorf("failed to update doctor status: %w", err)
	}

	from := ""
	if before.Status != nil {
		from = string(*before.Status)
	}
	if s.metrics != nil {
		s.metrics.DoctorStatusChanges.WithLabelValues(string(to)).Inc()
	}
	s.auditor.Log(ctx, actor.AccountID, audit.ActionStatusChange, "doctor", id, &audit.LogOptions{From: from, To: string(to)})
	notification.NotifyQuietly(ctx, s.notifier, s.logger, id, model.EventDoctorStatusChanged,
		"Account review update", doctorStatusMessage(to))
	return acc, nil
}

func doctorStatusMessage(status model.DoctorStatus) string {
	switch status {
	case model.DoctorStatusApproved:
		return "Your doctor account has been approved. Patients can now book with you."
	case model.DoctorStatusRejected:
		return "Your doctor account application was not approved."
	}
	return "Your doctor account is pending review."
}

func (s *Service) Stats(ctx context.Context, actor model.Identity) (*model.AdminStats, error) {
	if err := s.gate.Require(ctx, actor, rbac.PermissionStatsRead); err != nil {
		return nil, err
	}
	return s.stats.AdminStats(ctx)
}
