package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/storefront-api/internal/domain"
)

// UserProfileStore defines read access to user profiles in the domain store.
// Writes go through a UnitOfWork.
type UserProfileStore interface {
	// GetByID retrieves a profile by its unique ID. The library is not loaded.
	// Returns ErrUserNotFound if the profile does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.UserProfile, error)

	// GetByEmail retrieves a profile by email, case-insensitively.
	// Returns ErrUserNotFound if the profile does not exist.
	GetByEmail(ctx context.Context, email string) (*domain.UserProfile, error)

	// ExistsByEmail reports whether a profile with the email exists.
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// Query returns one page of profiles ordered by name, plus the total
	// number matching the filter.
	Query(ctx context.Context, page Page, filter UserFilter) ([]*domain.UserProfile, int, error)
}

// LibraryItem is a library entry together with the name of the owned game.
type LibraryItem struct {
	Entry    domain.LibraryEntry
	GameName string
}

// LibraryStore defines read access to user libraries.
// Writes go through a UnitOfWork.
type LibraryStore interface {
	// ListByUser returns every game the user owns, most recent purchase first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*LibraryItem, error)
}
