package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestNewGame(t *testing.T) {
	t.Parallel()

	release := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	g, err := NewGame(GameDetails{
		Name:        "  Hollow Depths ",
		Developer:   strPtr("Cave Works"),
		ReleaseDate: &release,
		Price:       decimal.RequireFromString("59.90"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Hollow Depths", g.Name)
	assert.True(t, g.Active)
	assert.Nil(t, g.UpdatedAt)

	_, err = NewGame(GameDetails{Name: "Free", Price: decimal.Zero})
	assert.NoError(t, err)

	_, err = NewGame(GameDetails{Name: "Broken", Price: decimal.RequireFromString("-0.01")})
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = NewGame(GameDetails{Name: "", Price: decimal.Zero})
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestGameUpdateKeepsStateOnFailure(t *testing.T) {
	t.Parallel()

	g, err := NewGame(GameDetails{Name: "Original", Price: decimal.RequireFromString("10")})
	require.NoError(t, err)

	err = g.Update(GameDetails{Name: "Renamed", Price: decimal.RequireFromString("-5")})
	assert.ErrorIs(t, err, ErrInvalidPrice)
	assert.Equal(t, "Original", g.Name)
	assert.Nil(t, g.UpdatedAt)

	require.NoError(t, g.Update(GameDetails{Name: "Renamed", Price: decimal.RequireFromString("12")}))
	assert.Equal(t, "Renamed", g.Name)
	assert.NotNil(t, g.UpdatedAt)
}

func TestGameActivation(t *testing.T) {
	t.Parallel()

	g, err := NewGame(GameDetails{Name: "Toggle", Price: decimal.RequireFromString("1")})
	require.NoError(t, err)

	g.Deactivate()
	assert.False(t, g.Active)
	g.Activate()
	assert.True(t, g.Active)
}
