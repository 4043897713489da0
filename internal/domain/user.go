package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	// MaxNameLength is the longest display name accepted for users and games.
	MaxNameLength = 255

	// MaxEmailLength is the longest email address accepted for a user profile.
	MaxEmailLength = 100
)

// Common validation errors
var (
	ErrEmptyUserID = fmt.Errorf("%w: user ID cannot be empty", ErrValidation)
	ErrEmptyEmail  = fmt.Errorf("%w: email cannot be empty", ErrValidation)
	ErrEmptyName   = fmt.Errorf("%w: name cannot be empty", ErrValidation)
	ErrNameTooLong = fmt.Errorf("%w: name must be at most 255 characters long", ErrValidation)
)

var fieldValidator = validator.New()

// UserProfile is the domain-side record of a registered user. It is linked to
// the login credential only through the email address.
type UserProfile struct {
	ID        uuid.UUID      `json:"id"`
	Name      string         `json:"name"`
	Email     string         `json:"email"`
	Library   []LibraryEntry `json:"library,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt *time.Time     `json:"updated_at,omitempty"`
}

// NewUserProfile creates a new profile with a fresh ID.
// The email is normalized to lower case before validation.
func NewUserProfile(name, email string) (*UserProfile, error) {
	u := &UserProfile{
		ID:        uuid.New(),
		Name:      strings.TrimSpace(name),
		Email:     NormalizeEmail(email),
		CreatedAt: time.Now().UTC(),
	}

	if err := u.Validate(); err != nil {
		return nil, err
	}

	return u, nil
}

// NormalizeEmail trims and lower-cases an email address so lookups are
// case-insensitive across both stores.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validate checks if the UserProfile has valid data.
func (u *UserProfile) Validate() error {
	if u.ID == uuid.Nil {
		return ErrEmptyUserID
	}

	if err := validateName(u.Name); err != nil {
		return err
	}

	if u.Email == "" {
		return ErrEmptyEmail
	}
	if len(u.Email) > MaxEmailLength {
		return NewValidationError("email", "must be at most 100 characters long", ErrInvalidEmail)
	}
	if err := fieldValidator.Var(u.Email, "email"); err != nil {
		return ErrInvalidEmail
	}

	return nil
}

// Rename changes the display name of the profile.
func (u *UserProfile) Rename(name string) error {
	name = strings.TrimSpace(name)
	if err := validateName(name); err != nil {
		return err
	}
	u.Name = name
	u.touch()
	return nil
}

// Owns reports whether the profile's loaded library contains the game.
func (u *UserProfile) Owns(gameID uuid.UUID) bool {
	for _, entry := range u.Library {
		if entry.GameID == gameID {
			return true
		}
	}
	return false
}

// AddGame appends a library entry. A user can own each game at most once.
func (u *UserProfile) AddGame(entry LibraryEntry) error {
	if entry.UserID != u.ID {
		return NewValidationError("user_id", "does not match the profile", ErrInvalidID)
	}
	if u.Owns(entry.GameID) {
		return ErrGameAlreadyOwned
	}
	u.Library = append(u.Library, entry)
	u.touch()
	return nil
}

// RemoveGame drops the entry for gameID from the loaded library.
// It reports whether an entry was removed.
func (u *UserProfile) RemoveGame(gameID uuid.UUID) bool {
	for i, entry := range u.Library {
		if entry.GameID == gameID {
			u.Library = append(u.Library[:i], u.Library[i+1:]...)
			u.touch()
			return true
		}
	}
	return false
}

func (u *UserProfile) touch() {
	now := time.Now().UTC()
	u.UpdatedAt = &now
}

func validateName(name string) error {
	if name == "" {
		return ErrEmptyName
	}
	if len([]rune(name)) > MaxNameLength {
		return ErrNameTooLong
	}
	return nil
}
