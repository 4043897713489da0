package service

import (
	"slices"

	"github.com/google/uuid"
	"github.com/phrazzld/storefront-api/internal/domain"
)

// Caller identifies the authenticated principal on whose behalf a service
// method runs. It is passed explicitly; services never read it from ambient
// state.
type Caller struct {
	CredentialID uuid.UUID
	Email        string
	Roles        []string
}

// IsAdmin reports whether the caller holds the administrator role.
func (c Caller) IsAdmin() bool {
	return slices.Contains(c.Roles, domain.RoleAdministrator)
}

// Anonymous reports whether no identity is attached.
func (c Caller) Anonymous() bool {
	return c.Email == ""
}

// RequireAdmin returns ErrUnauthenticated or ErrForbidden unless the caller
// is an administrator.
func (c Caller) RequireAdmin() error {
	if c.Anonymous() {
		return ErrUnauthenticated
	}
	if !c.IsAdmin() {
		return ErrForbidden
	}
	return nil
}
