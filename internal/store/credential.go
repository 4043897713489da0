package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/storefront-api/internal/domain"
)

// CredentialStore persists login credentials. It lives in its own schema and
// shares no keys with the domain store.
type CredentialStore interface {
	// Create saves a new credential and its roles.
	// Returns ErrEmailExists if the email is already registered.
	Create(ctx context.Context, credential *domain.Credential) error

	// GetByEmail retrieves a credential and its roles, case-insensitively.
	// Returns ErrCredentialNotFound if none exists.
	GetByEmail(ctx context.Context, email string) (*domain.Credential, error)

	// DeleteByEmail removes the credential and its roles.
	// Returns ErrCredentialNotFound if none exists.
	DeleteByEmail(ctx context.Context, email string) error

	// UpdatePassword replaces the stored hash.
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error

	// RecordFailedLogin increments the failure counter and sets the lockout
	// deadline, which may be nil. It returns the new counter value.
	RecordFailedLogin(ctx context.Context, id uuid.UUID, lockedUntil *time.Time) (int, error)

	// ResetFailedLogins clears the failure counter and any lockout.
	ResetFailedLogins(ctx context.Context, id uuid.UUID) error

	// AddRole grants role to the credential. Granting an existing role is a no-op.
	AddRole(ctx context.Context, id uuid.UUID, role string) error
}
