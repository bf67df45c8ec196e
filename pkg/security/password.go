package security

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrHashingFailed    = errors.New("password hashing failed")
	ErrPasswordTooShort = errors.New("password too short")
	ErrPasswordTooLong  = errors.New("password too long")
	ErrMismatch         = errors.New("password mismatch")
)

// bcrypt ignores input past this many bytes.
const MaxPasswordLen = 72

// PasswordHasher provides interface for password operations
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hashedPassword, password string) error
}

type bcryptHasher struct {
	cost   int
	minLen int
}

// NewBcryptHasher creates a new password hasher using bcrypt
func NewBcryptHasher(cost, minLen int) PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	if minLen < 1 {
		minLen = 1
	}
	return &bcryptHasher{cost: cost, minLen: minLen}
}

func (b *bcryptHasher) Hash(password string) (string, error) {
	if len(password) < b.minLen {
		return "", fmt.Errorf("%w: minimum is %d characters", ErrPasswordTooShort, b.minLen)
	}
	if len(password) > MaxPasswordLen {
		return "", ErrPasswordTooLong
	}

	bytes, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", ErrHashingFailed
	}
	return string(bytes), nil
}

func (b *bcryptHasher) Compare(hashedPassword, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)); err != nil {
		return ErrMismatch
	}
	return nil
}
