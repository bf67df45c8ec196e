package model

import "github.com/google/uuid"

// Note is a doctor's private clinical note, optionally about one patient.
type Note struct {
	Base
	DoctorID  uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	PatientID *uuid.UUID `db:"patient_id" json:"patient_id,omitempty"`
	Title     string     `db:"title" json:"title"`
	Content   string     `db:"content" json:"content"`
}

func (n *Note) Clone() *Note {
	if n == nil {
		return nil
	}
	c := *n
	if n.PatientID != nil {
		id := *n.PatientID
		c.PatientID = &id
	}
	return &c
}

// NoteFilter narrows a note listing. Nil fields match everything.
type NoteFilter struct {
	DoctorID  *uuid.UUID
	PatientID *uuid.UUID
}

type CreateNoteRequest struct {
	PatientID *uuid.UUID `json:"patient_id"`
	Title     string     `json:"title" binding:"required,max=200"`
	Content   string     `json:"content" binding:"max=10000"`
}

type UpdateNoteRequest struct {
	Title   *string `json:"title" binding:"omitempty,max=200"`
	Content *string `json:"content" binding:"omitempty,max=10000"`
}
