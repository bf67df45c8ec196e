package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/care-portal/internal/model"
	"github.com/jwalitptl/care-portal/internal/repository"
	"github.com/jwalitptl/care-portal/internal/service/audit"
	"github.com/jwalitptl/care-portal/internal/service/notification"
	"github.com/jwalitptl/care-portal/internal/service/rbac"
	apperrors "github.com/jwalitptl/care-portal/pkg/errors"
	"github.com/jwalitptl/care-portal/pkg/logger"
	"github.com/jwalitptl/care-portal/pkg/metrics"
)

type Service struct {
	repo     repository.AppointmentRepository
	accounts repository.AccountRepository
	gate     *rbac.Gate
	notifier notification.Service
	links    LinkGenerator
	auditor  *audit.Service
	metrics  *metrics.Metrics
	logger   *logger.Logger
	now      func() time.Time
}

func NewService(repo repository.AppointmentRepository, accounts repository.AccountRepository, gate *rbac.Gate,
	notifier notification.Service, links LinkGenerator, auditor *audit.Service,
	m *metrics.Metrics, l *logger.Logger) *Service {
	if l == nil {
		l = logger.Nop()
	}
	return &Service{
		repo:     repo,
		accounts: accounts,
		gate:     gate,
		notifier: notifier,
		links:    links,
		auditor:  auditor,
		metrics:  m,
		logger:   l,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create books a pending appointment. The patient defaults to the caller and
// the doctor must be an approved doctor account.
func (s *Service) Create(ctx context.Context, actor model.Identity, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	patientID := actor.AccountID
	if req.PatientID != nil {
		patientID = *req.PatientID
	}
	if err := s.gate.CanCreateAppointment(ctx, actor, patientID); err != nil {
		return nil, err
	}

	apptType, err := model.ParseAppointmentType(req.Type)
	if err != nil {
		return nil, apperrors.Validation(err.Error(), err)
	}
	date, err := model.ParseDate(req.Date)
	if err != nil {
		return nil, apperrors.Validation(err.Error(), err)
	}
	slot := strings.TrimSpace(req.Time)
	if slot == "" {
		return nil, apperrors.Validation("time is required", nil)
	}

	patient, err := s.accounts.Get(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if patient.Role != model.RolePatient {
		return nil, apperrors.Validation("patient_id does not reference a patient", nil)
	}
	doctor, err := s.accounts.Get(ctx, req.DoctorID)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return nil, apperrors.NotFound("doctor", err)
	}
	if err != nil {
		return nil, err
	}
	if doctor.Role != model.RoleDoctor {
		return nil, apperrors.Validation("doctor_id does not reference a doctor", nil)
	}
	if !doctor.IsApprovedDoctor() {
		return nil, apperrors.Validation("doctor is not accepting appointments", nil)
	}

	appt := &model.Appointment{
		PatientID: patientID,
		DoctorID:  doctor.ID,
		Type:      apptType,
		Date:      date,
		TimeSlot:  slot,
		Reason:    strings.TrimSpace(req.Reason),
		Status:    model.AppointmentStatusPending,
	}
	appt.Touch(s.now())

	if err := s.repo.Create(ctx, appt); err != nil {
		return nil, fmt.Errorf("failed to create appointment: %w", err)
	}

	if s.metrics != nil {
		s.metrics.AppointmentsBooked.WithLabelValues(string(apptType)).Inc()
	}
	s.auditor.Log(ctx, actor.AccountID, audit.ActionCreate, "appointment", appt.ID, nil)
	notification.NotifyQuietly(ctx, s.notifier, s.logger, doctor.ID, model.EventAppointmentBooked,
		"New appointment request",
		fmt.Sprintf("%s %s requested an %s appointment on %s at %s.",
			patient.FirstName, patient.LastName, apptType, date, slot))
	return appt, nil
}

func (s *Service) Get(ctx context.Context, actor model.Identity, id uuid.UUID) (*model.Appointment, error) {
	appt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gate.CanReadAppointment(ctx, actor, appt); err != nil {
		return nil, err
	}
	return appt, nil
}

func (s *Service) ListAll(ctx context.Context, actor model.Identity, status string) ([]*model.Appointment, error) {
	if err := s.gate.Require(ctx, actor, rbac.PermissionAppointmentAll); err != nil {
		return nil, err
	}
	filter, err := statusFilter(status)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, filter)
}

func (s *Service) ListByPatient(ctx context.Context, actor model.Identity, patientID uuid.UUID, status string) ([]*model.Appointment, error) {
	if err := s.gate.CanListPatientAppointments(ctx, actor, patientID); err != nil {
		return nil, err
	}
	filter, err := statusFilter(status)
	if err != nil {
		return nil, err
	}
	filter.PatientID = &patientID
	return s.repo.List(ctx, filter)
}

func (s *Service) ListByDoctor(ctx context.Context, actor model.Identity, doctorID uuid.UUID, status string) ([]*model.Appointment, error) {
	if err := s.gate.CanListDoctorAppointments(ctx, actor, doctorID); err != nil {
		return nil, err
	}
	filter, err := statusFilter(status)
	if err != nil {
		return nil, err
	}
	filter.DoctorID = &doctorID
	return s.repo.List(ctx, filter)
}

func statusFilter(status string) (model.AppointmentFilter, error) {
	var filter model.AppointmentFilter
	if status == "" {
		return filter, nil
	}
	st, err := model.ParseAppointmentStatus(status)
	if err != nil {
		return filter, apperrors.Validation(err.Error(), err)
	}
	filter.Status = &st
	return filter, nil
}

// UpdateStatus moves an appointment along its lifecycle. Participants that
// ask for an undefined edge get InvalidTransition; whether the caller may take
// a defined edge is checked afterwards. Approving an online appointment
// assigns its video link if it has none.
func (s *Service) UpdateStatus(ctx context.Context, actor model.Identity, id uuid.UUID, status string) (*model.Appointment, error) {
	to, err := model.ParseAppointmentStatus(status)
	if err != nil {
		return nil, apperrors.Validation(err.Error(), err)
	}

	appt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gate.CanModifyAppointment(ctx, actor, appt); err != nil {
		return nil, err
	}
	from := appt.Status
	if err := checkTransition(from, to); err != nil {
		return nil, err
	}
	if err := s.gate.CanSetAppointmentStatus(ctx, actor, appt, to); err != nil {
		return nil, err
	}

	var link *string
	if from == model.AppointmentStatusPending && to == model.AppointmentStatusApproved &&
		appt.Type == model.AppointmentTypeOnline && appt.VideoCallLink == nil {
		l := s.links.Generate(appt)
		link = &l
	}

	updated, err := s.repo.UpdateStatus(ctx, id, from, to, link)
	if errors.Is(err, repository.ErrStaleStatus) {
		return nil, s.lostTransition(ctx, id, to, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update appointment status: %w", err)
	}

	if s.metrics != nil {
		s.metrics.AppointmentTransitions.WithLabelValues(string(from), string(to)).Inc()
	}
	s.auditor.Log(ctx, actor.AccountID, audit.ActionStatusChange, "appointment", id,
		&audit.LogOptions{From: string(from), To: string(to)})
	s.notifyStatus(ctx, actor, updated)
	return updated, nil
}

// lostTransition classifies a compare-and-set that lost to a concurrent
// writer against the status that writer left behind.
func (s *Service) lostTransition(ctx context.Context, id uuid.UUID, to model.AppointmentStatus, stale error) error {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := checkTransition(current.Status, to); err != nil {
		return err
	}
	return stale
}

// Cancel is UpdateStatus to cancelled.
func (s *Service) Cancel(ctx context.Context, actor model.Identity, id uuid.UUID) (*model.Appointment, error) {
	return s.UpdateStatus(ctx, actor, id, string(model.AppointmentStatusCancelled))
}

func (s *Service) notifyStatus(ctx context.Context, actor model.Identity, appt *model.Appointment) {
	when := fmt.Sprintf("%s at %s", appt.Date, appt.TimeSlot)
	if appt.Status == model.AppointmentStatusCancelled && actor.Is(appt.PatientID) {
		notification.NotifyQuietly(ctx, s.notifier, s.logger, appt.DoctorID, model.EventAppointmentCancelled,
			"Appointment cancelled", fmt.Sprintf("The patient cancelled the appointment on %s.", when))
		return
	}
	notification.NotifyQuietly(ctx, s.notifier, s.logger, appt.PatientID, model.EventAppointmentStatus,
		"Appointment "+string(appt.Status), fmt.Sprintf("Your appointment on %s is now %s.", when, appt.Status))
}

// Reschedule changes date, time or reason of a pending or approved
// appointment. The new slot is subject to the same uniqueness rule as a
// booking.
func (s *Service) Reschedule(ctx context.Context, actor model.Identity, id uuid.UUID, req *model.RescheduleRequest) (*model.Appointment, error) {
	appt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gate.CanModifyAppointment(ctx, actor, appt); err != nil {
		return nil, err
	}
	if !appt.Status.Active() {
		return nil, apperrors.Conflict(fmt.Sprintf("a %s appointment cannot be rescheduled", appt.Status), nil)
	}

	if req.Date != nil {
		date, err := model.ParseDate(*req.Date)
		if err != nil {
			return nil, apperrors.Validation(err.Error(), err)
		}
		appt.Date = date
	}
	if req.Time != nil {
		slot := strings.TrimSpace(*req.Time)
		if slot == "" {
			return nil, apperrors.Validation("time cannot be empty", nil)
		}
		appt.TimeSlot = slot
	}
	if req.Reason != nil {
		appt.Reason = strings.TrimSpace(*req.Reason)
	}

	updated, err := s.repo.Reschedule(ctx, appt)
	if err != nil {
		return nil, fmt.Errorf("failed to reschedule appointment: %w", err)
	}

	s.auditor.Log(ctx, actor.AccountID, audit.ActionUpdate, "appointment", id, nil)
	other := updated.DoctorID
	if actor.Is(updated.DoctorID) {
		other = updated.PatientID
	}
	notification.NotifyQuietly(ctx, s.notifier, s.logger, other, model.EventAppointmentRescheduled,
		"Appointment rescheduled",
		fmt.Sprintf("The appointment is now on %s at %s.", updated.Date, updated.TimeSlot))
	return updated, nil
}

// GenerateVideoLink returns the appointment's meeting link, assigning one if
// the appointment is approved and has none yet.
func (s *Service) GenerateVideoLink(ctx context.Context, actor model.Identity, id uuid.UUID) (*model.VideoLinkResponse, error) {
	appt, err := s.videoAppointment(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if appt.VideoCallLink != nil {
		return videoLink(appt), nil
	}
	if appt.Status != model.AppointmentStatusApproved {
		return nil, apperrors.Conflict("a video link is only issued for approved appointments", nil)
	}

	updated, err := s.repo.AssignVideoLink(ctx, id, s.links.Generate(appt))
	if err != nil {
		return nil, fmt.Errorf("failed to assign video link: %w", err)
	}
	s.auditor.Log(ctx, actor.AccountID, audit.ActionVideoLinkIssued, "appointment", id, nil)
	return videoLink(updated), nil
}

// FetchVideoLink is GenerateVideoLink for read paths: a link that cannot be
// issued yet is reported as missing.
func (s *Service) FetchVideoLink(ctx context.Context, actor model.Identity, id uuid.UUID) (*model.VideoLinkResponse, error) {
	resp, err := s.GenerateVideoLink(ctx, actor, id)
	if apperrors.Is(err, apperrors.ErrConflict) {
		return nil, apperrors.NotFound("video link", err)
	}
	return resp, err
}

func (s *Service) videoAppointment(ctx context.Context, actor model.Identity, id uuid.UUID) (*model.Appointment, error) {
	appt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gate.CanReadAppointment(ctx, actor, appt); err != nil {
		return nil, err
	}
	if appt.Type != model.AppointmentTypeOnline {
		return nil, apperrors.Validation("video links exist only for online appointments", nil)
	}
	return appt, nil
}

func videoLink(appt *model.Appointment) *model.VideoLinkResponse {
	return &model.VideoLinkResponse{AppointmentID: appt.ID, VideoCallLink: *appt.VideoCallLink}
}
