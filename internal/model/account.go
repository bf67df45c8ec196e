package model

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RolePatient, RoleDoctor, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// DoctorStatus is the approval gate that controls a doctor's visibility to
// patients. Admins may move between any two values.
type DoctorStatus string

const (
	DoctorStatusPending  DoctorStatus = "pending"
	DoctorStatusApproved DoctorStatus = "approved"
	DoctorStatusRejected DoctorStatus = "rejected"
)

func ParseDoctorStatus(s string) (DoctorStatus, error) {
	switch st := DoctorStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case DoctorStatusPending, DoctorStatusApproved, DoctorStatusRejected:
		return st, nil
	}
	return "", fmt.Errorf("unknown doctor status %q", s)
}

type Account struct {
	Base
	FirstName    string `json:"first_name" db:"first_name"`
	LastName     string `json:"last_name" db:"last_name"`
	Email        string `json:"email" db:"email"`
	PasswordHash string `json:"-" db:"password_hash"`
	Role         Role   `json:"role" db:"role"`

	Phone    string `json:"phone,omitempty" db:"phone"`
	Province string `json:"province,omitempty" db:"province"`
	City     string `json:"city,omitempty" db:"city"`

	// Patient profile
	Age                   *int           `json:"age,omitempty" db:"age"`
	Gender                string         `json:"gender,omitempty" db:"gender"`
	DateOfBirth           string         `json:"date_of_birth,omitempty" db:"date_of_birth"`
	BloodType             string         `json:"blood_type,omitempty" db:"blood_type"`
	Allergies             pq.StringArray `json:"allergies,omitempty" db:"allergies"`
	ChronicConditions     pq.StringArray `json:"chronic_conditions,omitempty" db:"chronic_conditions"`
	CurrentMedications    pq.StringArray `json:"current_medications,omitempty" db:"current_medications"`
	PastProcedures        pq.StringArray `json:"past_procedures,omitempty" db:"past_procedures"`
	MedicalHistory        string         `json:"medical_history,omitempty" db:"medical_history"`
	EmergencyContactName  string         `json:"emergency_contact_name,omitempty" db:"emergency_contact_name"`
	EmergencyContactPhone string         `json:"emergency_contact_phone,omitempty" db:"emergency_contact_phone"`

	// Doctor profile
	Specialty          string        `json:"specialty,omitempty" db:"specialty"`
	RegistrationNumber string        `json:"registration_number,omitempty" db:"registration_number"`
	YearsOfExperience  *int          `json:"years_of_experience,omitempty" db:"years_of_experience"`
	ClinicName         string        `json:"clinic_name,omitempty" db:"clinic_name"`
	Status             *DoctorStatus `json:"status,omitempty" db:"status"`
}

// NormalizeEmail is applied before every lookup and write.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (a *Account) IsApprovedDoctor() bool {
	return a.Role == RoleDoctor && a.Status != nil && *a.Status == DoctorStatusApproved
}

// Clone returns a deep copy so callers can't mutate stored state.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	c.Allergies = cloneStrings(a.Allergies)
	c.ChronicConditions = cloneStrings(a.ChronicConditions)
	c.CurrentMedications = cloneStrings(a.CurrentMedications)
	c.PastProcedures = cloneStrings(a.PastProcedures)
	if a.Age != nil {
		v := *a.Age
		c.Age = &v
	}
	if a.YearsOfExperience != nil {
		v := *a.YearsOfExperience
		c.YearsOfExperience = &v
	}
	if a.Status != nil {
		v := *a.Status
		c.Status = &v
	}
	return &c
}

func cloneStrings(in pq.StringArray) pq.StringArray {
	if in == nil {
		return nil
	}
	out := make(pq.StringArray, len(in))
	copy(out, in)
	return out
}

// ProfileFields are the optional attributes shared by registration and
// profile updates.
type ProfileFields struct {
	Phone    string `json:"phone"`
	Province string `json:"province"`
	City     string `json:"city"`

	Age                   *int     `json:"age" binding:"omitempty,min=0,max=150"`
	Gender                string   `json:"gender"`
	DateOfBirth           string   `json:"date_of_birth" binding:"omitempty,datetime=2006-01-02"`
	BloodType             string   `json:"blood_type"`
	Allergies             []string `json:"allergies"`
	ChronicConditions     []string `json:"chronic_conditions"`
	CurrentMedications    []string `json:"current_medications"`
	PastProcedures        []string `json:"past_procedures"`
	MedicalHistory        string   `json:"medical_history"`
	EmergencyContactName  string   `json:"emergency_contact_name"`
	EmergencyContactPhone string   `json:"emergency_contact_phone"`

	Specialty          string `json:"specialty"`
	RegistrationNumber string `json:"registration_number"`
	YearsOfExperience  *int   `json:"years_of_experience" binding:"omitempty,min=0,max=80"`
	ClinicName         string `json:"clinic_name"`
}

type RegisterRequest struct {
	FirstName string `json:"first_name" binding:"required,max=100"`
	LastName  string `json:"last_name" binding:"required,max=100"`
	Email     string `json:"email" binding:"required"`
	Password  string `json:"password" binding:"required"`
	// Status is accepted so that clients sending it are not rejected; it is
	// always ignored.
	Status string `json:"status,omitempty"`
	ProfileFields
}

// UpdateProfileRequest leaves nil fields untouched. Email, role and doctor
// status are not updatable here.
type UpdateProfileRequest struct {
	FirstName *string `json:"first_name" binding:"omitempty,min=1,max=100"`
	LastName  *string `json:"last_name" binding:"omitempty,min=1,max=100"`

	Phone    *string `json:"phone"`
	Province *string `json:"province"`
	City     *string `json:"city"`

	Age                   *int      `json:"age" binding:"omitempty,min=0,max=150"`
	Gender                *string   `json:"gender"`
	DateOfBirth           *string   `json:"date_of_birth" binding:"omitempty,datetime=2006-01-02"`
	BloodType             *string   `json:"blood_type"`
	Allergies             *[]string `json:"allergies"`
	ChronicConditions     *[]string `json:"chronic_conditions"`
	CurrentMedications    *[]string `json:"current_medications"`
	PastProcedures        *[]string `json:"past_procedures"`
	MedicalHistory        *string   `json:"medical_history"`
	EmergencyContactName  *string   `json:"emergency_contact_name"`
	EmergencyContactPhone *string   `json:"emergency_contact_phone"`

	Specialty          *string `json:"specialty"`
	RegistrationNumber *string `json:"registration_number"`
	YearsOfExperience  *int    `json:"years_of_experience" binding:"omitempty,min=0,max=80"`
	ClinicName         *string `json:"clinic_name"`

	// Present only to detect attempts to change it.
	Status *string `json:"status"`
}

type SetDoctorStatusRequest struct {
	Status string `json:"status" binding:"required,doctor_status"`
}

type AccountFilter struct {
	Role Role
	// DoctorStatus narrows doctor listings; nil means any.
	DoctorStatus *DoctorStatus
}
