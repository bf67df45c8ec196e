package model

import (
	"github.com/google/uuid"
)

type Notification struct {
	Base
	UserID  uuid.UUID `db:"user_id" json:"user_id"`
	Title   string    `db:"title" json:"title"`
	Message string    `db:"message" json:"message"`
	Read    bool      `db:"read" json:"read"`
}

// Notification event types published through the outbox.
const (
	EventDoctorRegistered       = "doctor.registered"
	EventDoctorStatusChanged    = "doctor.status_changed"
	EventAppointmentBooked      = "appointment.booked"
	EventAppointmentStatus      = "appointment.status_changed"
	EventAppointmentCancelled   = "appointment.cancelled"
	EventAppointmentRescheduled = "appointment.rescheduled"
	EventPrescriptionIssued     = "prescription.issued"
)

// NotificationPayload is the outbox payload for every notification event.
type NotificationPayload struct {
	NotificationID uuid.UUID `json:"notification_id"`
	UserID         uuid.UUID `json:"user_id"`
	Email          string    `json:"email,omitempty"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
}
