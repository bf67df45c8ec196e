package prescription

import (
	"context"
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
)

type Service struct {
	repo         repository.PrescriptionRepository
	appointments repository.AppointmentRepository
	gate         *rbac.Gate
	notifier     notification.Service
	auditor      *audit.Service
	logger       *logger.Logger
	now          func() time.Time
}

func NewService(repo repository.PrescriptionRepository, appointments repository.AppointmentRepository, gate *rbac.Gate,
	notifier notification.Service, auditor *audit.Service, l *logger.Logger) *Service {
	if l == nil {
		l = logger.Nop()
	}
	return &Service{
		repo:         repo,
		appointments: appointments,
		gate:         gate,
		notifier:     notifier,
		auditor:      auditor,
		logger:       l,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Issue records the prescription for an approved or completed appointment.
// Only the appointment's doctor may issue it, and only once.
func (s *Service) Issue(ctx context.Context, actor model.Identity, req *model.IssuePrescriptionRequest) (*model.Prescription, error) {
	appt, err := s.appointments.Get(ctx, req.AppointmentID)
	if err != nil {
		return nil, err
	}
	if err := s.gate.CanIssuePrescription(ctx, actor, appt); err != nil {
		return nil, err
	}
	if appt.Status != model.AppointmentStatusApproved && appt.Status != model.AppointmentStatusCompleted {
		return nil, apperrors.Conflict(fmt.Sprintf("cannot prescribe for a %s appointment", appt.Status), nil)
	}

	meds, err := cleanMedications(req.Medications)
	if err != nil {
		return nil, err
	}

	now := s.now()
	p := &model.Prescription{
		AppointmentID: appt.ID,
		PatientID:     appt.PatientID,
		DoctorID:      appt.DoctorID,
		Medications:   meds,
		Notes:         strings.TrimSpace(req.Notes),
		IssuedAt:      now,
	}
	p.Touch(now)

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create prescription: %w", err)
	}

	s.auditor.Log(ctx, actor.AccountID, audit.ActionCreate, "prescription", p.ID,
		&audit.LogOptions{Metadata: map[string]interface{}{"appointment_id": appt.ID.String()}})
	notification.NotifyQuietly(ctx, s.notifier, s.logger, appt.PatientID, model.EventPrescriptionIssued,
		"New prescription", fmt.Sprintf("Your doctor issued a prescription with %d medication(s).", len(meds)))
	return p, nil
}

func cleanMedications(in []model.Medication) (model.Medications, error) {
	if len(in) == 0 {
		return nil, apperrors.Validation("at least one medication is required", nil)
	}
	out := make(model.Medications, 0, len(in))
	for i, m := range in {
		m.Name = strings.TrimSpace(m.Name)
		m.Dosage = strings.TrimSpace(m.Dosage)
		m.Frequency = strings.TrimSpace(m.Frequency)
		m.Duration = strings.TrimSpace(m.Duration)
		if m.Name == "" || m.Dosage == "" || m.Frequency == "" {
			return nil, apperrors.Validation(fmt.Sprintf("medication %d needs a name, dosage and frequency", i+1), nil)
		}
		out = append(out, m)
	}
	return out, nil
}

// ListByPatient is open to the patient, admins and any doctor who has an
// appointment with the patient.
func (s *Service) ListByPatient(ctx context.Context, actor model.Identity, patientID uuid.UUID) ([]*model.Prescription, error) {
	treated := false
	if actor.IsDoctor() {
		var err error
		if treated, err = s.hasTreated(ctx, actor.AccountID, patientID); err != nil {
			return nil, err
		}
	}
	if err := s.gate.CanReadPatientPrescriptions(ctx, actor, patientID, treated); err != nil {
		return nil, err
	}
	return s.repo.ListByPatient(ctx, patientID)
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

func (s *Service) GetByAppointment(ctx context.Context, actor model.Identity, appointmentID uuid.UUID) (*model.Prescription, error) {
	appt, err := s.appointments.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if err := s.gate.CanReadAppointment(ctx, actor, appt); err != nil {
		return nil, err
	}
	return s.repo.GetByAppointment(ctx, appointmentID)
}
