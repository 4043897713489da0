package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity (e.g., a profile with the same email).
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored, or violates a referential or check constraint.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrTransactionFailed is returned when a database transaction fails
	// to commit or when an operation within a transaction fails.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrUnitOfWorkClosed is returned when a unit of work is used after
	// Commit or Discard.
	ErrUnitOfWorkClosed = errors.New("unit of work already closed")

	// ErrNoRowsAffected is returned when a write completed without touching
	// any row, typically because the entity was changed or removed concurrently.
	ErrNoRowsAffected = errors.New("no rows affected")

	// ErrUnsupportedEntity is returned when a unit of work is asked to stage
	// a type it does not know how to persist.
	ErrUnsupportedEntity = errors.New("unsupported entity type")

	// Entity-specific "not found" errors

	// ErrUserNotFound indicates that the requested user profile does not exist.
	ErrUserNotFound = fmt.Errorf("%w: user", ErrNotFound)

	// ErrGameNotFound indicates that the requested game does not exist.
	ErrGameNotFound = fmt.Errorf("%w: game", ErrNotFound)

	// ErrPromotionNotFound indicates that the requested promotion does not exist.
	ErrPromotionNotFound = fmt.Errorf("%w: promotion", ErrNotFound)

	// ErrLibraryEntryNotFound indicates that the user does not own the game.
	ErrLibraryEntryNotFound = fmt.Errorf("%w: library entry", ErrNotFound)

	// ErrCredentialNotFound indicates that no credential is registered for the email.
	ErrCredentialNotFound = fmt.Errorf("%w: credential", ErrNotFound)

	// ErrGameReferenced indicates that a game cannot be removed because users own it.
	ErrGameReferenced = fmt.Errorf("%w: game is referenced by library entries", ErrInvalidEntity)

	// Entity-specific "duplicate" errors

	// ErrEmailExists indicates that a profile or credential with the given email already exists.
	ErrEmailExists = fmt.Errorf("%w: email", ErrDuplicate)

	// ErrLibraryEntryExists indicates that the user already owns the game.
	ErrLibraryEntryExists = fmt.Errorf("%w: library entry", ErrDuplicate)

	// ErrPromotionOverlap indicates that the store rejected a promotion whose
	// window intersects another promotion of the same game.
	ErrPromotionOverlap = fmt.Errorf("%w: overlapping promotion", ErrDuplicate)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateError checks if the error is any kind of "duplicate" error.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// StoreError is a custom error type for store-specific errors with additional context.
type StoreError struct {
	Entity    string // The entity type (e.g., "game", "promotion")
	Operation string // The operation that failed (e.g., "create", "update")
	Message   string // Error message
	Err       error  // Original error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf(
			"%s operation on %s failed: %s: %v",
			e.Operation,
			e.Entity,
			e.Message,
			e.Err,
		)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError with the given entity, operation, message, and wrapped error.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
