package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type AppointmentType string

const (
	AppointmentTypeOnline   AppointmentType = "online"
	AppointmentTypePhysical AppointmentType = "physical"
)

func ParseAppointmentType(s string) (AppointmentType, error) {
	switch t := AppointmentType(strings.ToLower(strings.TrimSpace(s))); t {
	case AppointmentTypeOnline, AppointmentTypePhysical:
		return t, nil
	}
	return "", fmt.Errorf("unknown appointment type %q", s)
}

type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "pending"
	AppointmentStatusApproved  AppointmentStatus = "approved"
	AppointmentStatusDeclined  AppointmentStatus = "declined"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

func ParseAppointmentStatus(s string) (AppointmentStatus, error) {
	switch st := AppointmentStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case AppointmentStatusPending, AppointmentStatusApproved, AppointmentStatusDeclined,
		AppointmentStatusCompleted, AppointmentStatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown appointment status %q", s)
}

func (s AppointmentStatus) Terminal() bool {
	switch s {
	case AppointmentStatusCompleted, AppointmentStatusDeclined, AppointmentStatusCancelled:
		return true
	}
	return false
}

// Active appointments hold their doctor's slot.
func (s AppointmentStatus) Active() bool {
	return s == AppointmentStatusPending || s == AppointmentStatusApproved
}

const dateLayout = "2006-01-02"

// Date is a calendar day without a time of day or zone.
type Date struct {
	time.Time
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}

func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		*d = Date{time.Date(v.Year(), v.Month(), v.Day(), 0, 0, 0, 0, time.UTC)}
		return nil
	case string:
		parsed, err := ParseDate(v)
		*d = parsed
		return err
	case []byte:
		parsed, err := ParseDate(string(v))
		*d = parsed
		return err
	}
	return fmt.Errorf("cannot scan %T into Date", src)
}

type Appointment struct {
	Base
	PatientID     uuid.UUID         `db:"patient_id" json:"patient_id"`
	DoctorID      uuid.UUID         `db:"doctor_id" json:"doctor_id"`
	Type          AppointmentType   `db:"type" json:"type"`
	Date          Date              `db:"date" json:"date"`
	TimeSlot      string            `db:"time_slot" json:"time"`
	Reason        string            `db:"reason" json:"reason"`
	Status        AppointmentStatus `db:"status" json:"status"`
	VideoCallLink *string           `db:"video_call_link" json:"video_call_link"`
}

func (a *Appointment) Clone() *Appointment {
	if a == nil {
		return nil
	}
	c := *a
	if a.VideoCallLink != nil {
		v := *a.VideoCallLink
		c.VideoCallLink = &v
	}
	return &c
}

// Involves reports whether the account is the patient or doctor on a.
func (a *Appointment) Involves(accountID uuid.UUID) bool {
	return a.PatientID == accountID || a.DoctorID == accountID
}

type CreateAppointmentRequest struct {
	// PatientID may be omitted; it defaults to the caller.
	PatientID *uuid.UUID `json:"patient_id"`
	DoctorID  uuid.UUID  `json:"doctor_id" binding:"required"`
	Type      string     `json:"type" binding:"required,appointment_type"`
	Date      string     `json:"date" binding:"required,datetime=2006-01-02"`
	Time      string     `json:"time" binding:"required,max=50"`
	Reason    string     `json:"reason" binding:"max=2000"`
}

type UpdateAppointmentStatusRequest struct {
	Status string `json:"status" binding:"required,appointment_status"`
}

// RescheduleRequest leaves nil fields untouched.
type RescheduleRequest struct {
	Date   *string `json:"date" binding:"omitempty,datetime=2006-01-02"`
	Time   *string `json:"time" binding:"omitempty,min=1,max=50"`
	Reason *string `json:"reason" binding:"omitempty,max=2000"`
}

type AppointmentFilter struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	Status    *AppointmentStatus
}

// VideoLinkResponse is returned by the video-link routes.
type VideoLinkResponse struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	VideoCallLink string    `json:"video_call_link"`
}
