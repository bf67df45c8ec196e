package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Medication struct {
	Name      string `json:"name" binding:"required,max=200"`
	Dosage    string `json:"dosage" binding:"required,max=100"`
	Frequency string `json:"frequency" binding:"required,max=100"`
	Duration  string `json:"duration" binding:"max=100"`
}

// Medications is stored as a JSONB column and bound as text.
type Medications []Medication

func (m Medications) Value() (driver.Value, error) {
	if m == nil {
		return "[]", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *Medications) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Medications", src)
	}
	return json.Unmarshal(raw, m)
}

type Prescription struct {
	Base
	AppointmentID uuid.UUID   `db:"appointment_id" json:"appointment_id"`
	PatientID     uuid.UUID   `db:"patient_id" json:"patient_id"`
	DoctorID      uuid.UUID   `db:"doctor_id" json:"doctor_id"`
	Medications   Medications `db:"medications" json:"medications"`
	Notes         string      `db:"notes" json:"notes,omitempty"`
	IssuedAt      time.Time   `db:"issued_at" json:"issued_at"`
}

func (p *Prescription) Clone() *Prescription {
	if p == nil {
		return nil
	}
	c := *p
	if p.Medications != nil {
		c.Medications = append(Medications(nil), p.Medications...)
	}
	return &c
}

type IssuePrescriptionRequest struct {
	AppointmentID uuid.UUID    `json:"appointment_id" binding:"required"`
	Medications   []Medication `json:"medications" binding:"required,min=1,dive"`
	Notes         string       `json:"notes" binding:"max=4000"`
}
