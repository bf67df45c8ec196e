package model

import (
	"time"

	"github.com/google/uuid"
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	Account     *Account  `json:"account"`
}

// Identity is the authenticated caller, resolved from a verified token.
type Identity struct {
	AccountID uuid.UUID
	Email     string
	Role      Role
}

func (i Identity) IsAdmin() bool   { return i.Role == RoleAdmin }
func (i Identity) IsDoctor() bool  { return i.Role == RoleDoctor }
func (i Identity) IsPatient() bool { return i.Role == RolePatient }

// Is reports whether the identity is the given account.
func (i Identity) Is(id uuid.UUID) bool {
	return i.AccountID == id
}
