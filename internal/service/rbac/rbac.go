package rbac

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/care-portal/internal/model"
	"github.com/jwalitptl/care-portal/internal/service/audit"
	apperrors "github.com/jwalitptl/care-portal/pkg/errors"
	"github.com/jwalitptl/care-portal/pkg/metrics"
)

// Permission names a coarse capability granted to a role.
type Permission string

const (
	PermissionAccountReadAny    Permission = "account:read_any"
	PermissionAccountUpdateAny  Permission = "account:update_any"
	PermissionAccountDelete     Permission = "account:delete"
	PermissionPatientList       Permission = "patient:list"
	PermissionDoctorListAll     Permission = "doctor:list_all"
	PermissionDoctorSetStatus   Permission = "doctor:set_status"
	PermissionStatsRead         Permission = "stats:read"
	PermissionAppointmentCreate Permission = "appointment:create"
	PermissionAppointmentAll    Permission = "appointment:read_all"
	PermissionAppointmentManage Permission = "appointment:manage_any"
	PermissionPrescriptionIssue Permission = "prescription:issue"
	PermissionPrescriptionAll   Permission = "prescription:read_all"
	PermissionNotificationAny   Permission = "notification:read_any"
	PermissionNoteWrite         Permission = "note:write"
	PermissionNoteReadAll       Permission = "note:read_all"
)

var rolePermissions = map[model.Role][]Permission{
	model.RolePatient: {
		PermissionAppointmentCreate,
	},
	model.RoleDoctor: {
		PermissionPrescriptionIssue,
		PermissionNoteWrite,
	},
	model.RoleAdmin: {
		PermissionAccountReadAny,
		PermissionAccountUpdateAny,
		PermissionAccountDelete,
		PermissionPatientList,
		PermissionDoctorListAll,
		PermissionDoctorSetStatus,
		PermissionStatsRead,
		PermissionAppointmentAll,
		PermissionAppointmentManage,
		PermissionPrescriptionAll,
		PermissionNotificationAny,
		PermissionNoteReadAll,
	},
}

// HasPermission reports whether role carries perm.
func HasPermission(role model.Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// Gate is the per-request authorization check. The role table decides coarse
// capabilities; the Can* methods add ownership rules on top. Every denial is
// a Forbidden error and is counted and audited.
type Gate struct {
	metrics *metrics.Metrics
	auditor *audit.Service
}

func NewGate(m *metrics.Metrics, auditor *audit.Service) *Gate {
	return &Gate{metrics: m, auditor: auditor}
}

func (g *Gate) deny(ctx context.Context, id model.Identity, action string, entityID uuid.UUID, msg string) error {
	if g != nil && g.metrics != nil {
		g.metrics.AuthorizationDenials.WithLabelValues(string(id.Role), action).Inc()
	}
	if g != nil && g.auditor != nil {
		g.auditor.Log(ctx, id.AccountID, audit.ActionAccessDenied, action, entityID, nil)
	}
	return apperrors.Forbidden(msg)
}

// Require checks the role table only.
func (g *Gate) Require(ctx context.Context, id model.Identity, perm Permission) error {
	if HasPermission(id.Role, perm) {
		return nil
	}
	return g.deny(ctx, id, string(perm), uuid.Nil, "")
}

// CanReadAccount: self or admin.
func (g *Gate) CanReadAccount(ctx context.Context, id model.Identity, accountID uuid.UUID) error {
	if id.Is(accountID) || HasPermission(id.Role, PermissionAccountReadAny) {
		return nil
	}
	return g.deny(ctx, id, "account:read", accountID, "cannot view another account")
}

// CanUpdateAccount: self or admin. Doctor status is guarded separately.
func (g *Gate) CanUpdateAccount(ctx context.Context, id model.Identity, accountID uuid.UUID) error {
	if id.Is(accountID) || HasPermission(id.Role, PermissionAccountUpdateAny) {
		return nil
	}
	return g.deny(ctx, id, "account:update", accountID, "cannot modify another account")
}

// CanViewDoctor: approved doctors are public to any signed-in account;
// pending or rejected ones only to themselves and admins.
func (g *Gate) CanViewDoctor(ctx context.Context, id model.Identity, doctor *model.Account) error {
	if doctor.IsApprovedDoctor() || id.Is(doctor.ID) || HasPermission(id.Role, PermissionAccountReadAny) {
		return nil
	}
	return g.deny(ctx, id, "doctor:read", doctor.ID, "doctor profile is not public")
}

// CanCreateAppointment: patients booking for themselves only.
func (g *Gate) CanCreateAppointment(ctx context.Context, id model.Identity, patientID uuid.UUID) error {
	if !HasPermission(id.Role, PermissionAppointmentCreate) {
		return g.deny(ctx, id, string(PermissionAppointmentCreate), uuid.Nil, "only patients can book appointments")
	}
	if !id.Is(patientID) {
		return g.deny(ctx, id, string(PermissionAppointmentCreate), patientID, "cannot book on behalf of another patient")
	}
	return nil
}

// CanReadAppointment: the patient, the named doctor, or an admin.
func (g *Gate) CanReadAppointment(ctx context.Context, id model.Identity, appt *model.Appointment) error {
	if appt.Involves(id.AccountID) || HasPermission(id.Role, PermissionAppointmentAll) {
		return nil
	}
	return g.deny(ctx, id, "appointment:read", appt.ID, "not a participant of this appointment")
}

// CanModifyAppointment covers non-status edits such as rescheduling.
func (g *Gate) CanModifyAppointment(ctx context.Context, id model.Identity, appt *model.Appointment) error {
	if appt.Involves(id.AccountID) || HasPermission(id.Role, PermissionAppointmentManage) {
		return nil
	}
	return g.deny(ctx, id, "appointment:update", appt.ID, "not a participant of this appointment")
}

// CanSetAppointmentStatus: the named doctor or an admin for any transition;
// the owning patient only for cancellation.
func (g *Gate) CanSetAppointmentStatus(ctx context.Context, id model.Identity, appt *model.Appointment, to model.AppointmentStatus) error {
	switch {
	case HasPermission(id.Role, PermissionAppointmentManage):
		return nil
	case id.IsDoctor() && id.Is(appt.DoctorID):
		return nil
	case id.IsPatient() && id.Is(appt.PatientID) && to == model.AppointmentStatusCancelled:
		return nil
	case id.IsPatient() && id.Is(appt.PatientID):
		return g.deny(ctx, id, "appointment:status", appt.ID, "patients may only cancel their appointments")
	}
	return g.deny(ctx, id, "appointment:status", appt.ID, "not allowed to change this appointment")
}

// CanListPatientAppointments: the patient or an admin.
func (g *Gate) CanListPatientAppointments(ctx context.Context, id model.Identity, patientID uuid.UUID) error {
	if (id.IsPatient() && id.Is(patientID)) || HasPermission(id.Role, PermissionAppointmentAll) {
		return nil
	}
	return g.deny(ctx, id, "appointment:list_patient", patientID, "cannot list another patient's appointments")
}

// CanListDoctorAppointments: the doctor or an admin. Also used for the
// doctor's patient list.
func (g *Gate) CanListDoctorAppointments(ctx context.Context, id model.Identity, doctorID uuid.UUID) error {
	if (id.IsDoctor() && id.Is(doctorID)) || HasPermission(id.Role, PermissionAppointmentAll) {
		return nil
	}
	return g.deny(ctx, id, "appointment:list_doctor", doctorID, "cannot list another doctor's appointments")
}

// CanIssuePrescription: only the doctor named on the appointment.
func (g *Gate) CanIssuePrescription(ctx context.Context, id model.Identity, appt *model.Appointment) error {
	if HasPermission(id.Role, PermissionPrescriptionIssue) && id.Is(appt.DoctorID) {
		return nil
	}
	return g.deny(ctx, id, string(PermissionPrescriptionIssue), appt.ID, "only the appointment's doctor can prescribe")
}

// CanReadPatientPrescriptions: the patient, an admin, or a doctor who has
// treated the patient.
func (g *Gate) CanReadPatientPrescriptions(ctx context.Context, id model.Identity, patientID uuid.UUID, treatedByCaller bool) error {
	switch {
	case id.IsPatient() && id.Is(patientID):
		return nil
	case HasPermission(id.Role, PermissionPrescriptionAll):
		return nil
	case id.IsDoctor() && treatedByCaller:
		return nil
	}
	return g.deny(ctx, id, "prescription:read", patientID, "cannot view this patient's prescriptions")
}

// CanAccessNotifications: the addressee or an admin.
func (g *Gate) CanAccessNotifications(ctx context.Context, id model.Identity, userID uuid.UUID) error {
	if id.Is(userID) || HasPermission(id.Role, PermissionNotificationAny) {
		return nil
	}
	return g.deny(ctx, id, "notification:read", userID, "cannot access another account's notifications")
}

// CanWriteNotes: doctors only. A note about a patient also needs the doctor
// to have treated that patient.
func (g *Gate) CanWriteNotes(ctx context.Context, id model.Identity, patientID *uuid.UUID, treatedByCaller bool) error {
	if !HasPermission(id.Role, PermissionNoteWrite) {
		return g.deny(ctx, id, string(PermissionNoteWrite), uuid.Nil, "only doctors keep notes")
	}
	if patientID != nil && !treatedByCaller {
		return g.deny(ctx, id, string(PermissionNoteWrite), *patientID, "cannot write notes about a patient you have not treated")
	}
	return nil
}

// CanListNotes: a doctor's own notes, or anyone's for an admin.
func (g *Gate) CanListNotes(ctx context.Context, id model.Identity, doctorID uuid.UUID) error {
	if (id.IsDoctor() && id.Is(doctorID)) || HasPermission(id.Role, PermissionNoteReadAll) {
		return nil
	}
	return g.deny(ctx, id, "note:list", doctorID, "cannot list another doctor's notes")
}

// CanReadNote: the author or an admin.
func (g *Gate) CanReadNote(ctx context.Context, id model.Identity, note *model.Note) error {
	if id.Is(note.DoctorID) || HasPermission(id.Role, PermissionNoteReadAll) {
		return nil
	}
	return g.deny(ctx, id, "note:read", note.ID, "not the author of this note")
}

// CanModifyNote: the author only.
func (g *Gate) CanModifyNote(ctx context.Context, id model.Identity, note *model.Note) error {
	if HasPermission(id.Role, PermissionNoteWrite) && id.Is(note.DoctorID) {
		return nil
	}
	return g.deny(ctx, id, "note:update", note.ID, "only the author can change this note")
}
