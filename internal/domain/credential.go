package domain

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Role names known to the credential store.
const (
	RoleUser          = "user"
	RoleAdministrator = "administrator"
)

// ErrEmptyPasswordHash is returned when a credential carries no hash.
var ErrEmptyPasswordHash = fmt.Errorf("%w: password hash cannot be empty", ErrValidation)

// Credential is the login identity held by the credential store. Its ID is
// unrelated to the UserProfile ID; the two are matched by email.
type Credential struct {
	ID             uuid.UUID
	Name           string
	Email          string
	PasswordHash   string
	Roles          []string
	FailedAttempts int
	LockedUntil    *time.Time
	CreatedAt      time.Time
	UpdatedAt      *time.Time
}

// NewCredential creates a credential with the default user role.
func NewCredential(name, email, passwordHash string) (*Credential, error) {
	c := &Credential{
		ID:           uuid.New(),
		Name:         name,
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
		Roles:        []string{RoleUser},
		CreatedAt:    time.Now().UTC(),
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the credential's own invariants.
func (c *Credential) Validate() error {
	if c.ID == uuid.Nil {
		return NewValidationError("id", "cannot be empty", ErrInvalidID)
	}
	if c.Email == "" {
		return ErrEmptyEmail
	}
	if c.PasswordHash == "" {
		return ErrEmptyPasswordHash
	}
	return nil
}

// HasRole reports whether the credential is a member of role.
func (c *Credential) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

// LockedAt reports whether the credential is locked out at t.
func (c *Credential) LockedAt(t time.Time) bool {
	return c.LockedUntil != nil && t.Before(*c.LockedUntil)
}
