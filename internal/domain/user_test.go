package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUserProfile(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		userName  string
		email     string
		wantError error
	}{
		{"valid", "Ada Lovelace", "ada@example.com", nil},
		{"empty name", "", "ada@example.com", ErrEmptyName},
		{"blank name", "   ", "ada@example.com", ErrEmptyName},
		{"long name", strings.Repeat("a", MaxNameLength+1), "ada@example.com", ErrNameTooLong},
		{"empty email", "Ada", "", ErrEmptyEmail},
		{"malformed email", "Ada", "not-an-email", ErrInvalidEmail},
		{"long email", "Ada", strings.Repeat("a", 95) + "@x.com", ErrInvalidEmail},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			u, err := NewUserProfile(tc.userName, tc.email)
			if tc.wantError != nil {
				assert.ErrorIs(t, err, tc.wantError)
				assert.True(t, IsValidationError(err))
				assert.Nil(t, u)
				return
			}
			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, u.ID)
			assert.Equal(t, tc.email, u.Email)
			assert.False(t, u.CreatedAt.IsZero())
		})
	}
}

func TestNewUserProfileNormalizesEmail(t *testing.T) {
	t.Parallel()

	u, err := NewUserProfile(" Ada ", "  Ada@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, "Ada", u.Name)
}

func TestUserProfileLibrary(t *testing.T) {
	t.Parallel()

	u, err := NewUserProfile("Ada", "ada@example.com")
	require.NoError(t, err)

	gameID := uuid.New()
	entry, err := NewLibraryEntry(u.ID, gameID, decimal.RequireFromString("59.90"), nil)
	require.NoError(t, err)

	require.NoError(t, u.AddGame(*entry))
	assert.True(t, u.Owns(gameID))
	assert.NotNil(t, u.UpdatedAt)

	again, err := NewLibraryEntry(u.ID, gameID, decimal.RequireFromString("10"), nil)
	require.NoError(t, err)
	assert.ErrorIs(t, u.AddGame(*again), ErrGameAlreadyOwned)
	assert.Len(t, u.Library, 1)

	foreign, err := NewLibraryEntry(uuid.New(), uuid.New(), decimal.Zero, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, u.AddGame(*foreign), ErrInvalidID)

	assert.True(t, u.RemoveGame(gameID))
	assert.False(t, u.Owns(gameID))
	assert.False(t, u.RemoveGame(gameID))
}

func TestUserProfileRename(t *testing.T) {
	t.Parallel()

	u, err := NewUserProfile("Ada", "ada@example.com")
	require.NoError(t, err)

	require.NoError(t, u.Rename("Countess"))
	assert.Equal(t, "Countess", u.Name)
	assert.ErrorIs(t, u.Rename(""), ErrEmptyName)
	assert.Equal(t, "Countess", u.Name)
}
