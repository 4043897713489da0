package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPromotion(t *testing.T) {
	t.Parallel()

	gameID := uuid.New()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.FixedZone("BRT", -3*60*60))
	end := start.Add(9 * 24 * time.Hour)

	p, err := NewPromotion(gameID, decimal.NewFromInt(80), start, end)
	require.NoError(t, err)
	assert.Equal(t, gameID, p.GameID)
	assert.True(t, p.Active)
	assert.Equal(t, time.UTC, p.StartDate.Location())
	assert.True(t, p.StartDate.Equal(start))

	tests := []struct {
		name   string
		gameID uuid.UUID
		price  decimal.Decimal
		end    time.Time
		want   error
	}{
		{"missing game", uuid.Nil, decimal.NewFromInt(80), end, ErrInvalidID},
		{"negative price", gameID, decimal.NewFromInt(-1), end, ErrInvalidPrice},
		{"end equals start", gameID, decimal.NewFromInt(80), start, ErrInvalidWindow},
		{"end before start", gameID, decimal.NewFromInt(80), start.Add(-time.Hour), ErrInvalidWindow},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewPromotion(tc.gameID, tc.price, start, tc.end)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
			assert.True(t, IsValidationError(err))
		})
	}
}

func TestPromotion_ActiveAt(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	p, err := NewPromotion(uuid.New(), decimal.NewFromInt(80), start, end)
	require.NoError(t, err)

	assert.True(t, p.ActiveAt(start))
	assert.True(t, p.ActiveAt(end))
	assert.True(t, p.ActiveAt(start.Add(48*time.Hour)))
	assert.False(t, p.ActiveAt(start.Add(-time.Nanosecond)))
	assert.False(t, p.ActiveAt(end.Add(time.Nanosecond)))

	p.Deactivate()
	assert.True(t, p.ActiveAt(start), "administrative flag does not affect the window")
}

func TestPromotion_Edit(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	p, err := NewPromotion(uuid.New(), decimal.NewFromInt(80), start, end)
	require.NoError(t, err)

	err = p.Edit(decimal.NewFromInt(70), end, start)
	assert.ErrorIs(t, err, ErrInvalidWindow)
	assert.True(t, p.Price.Equal(decimal.NewFromInt(80)), "failed edit leaves the promotion unchanged")
	assert.Nil(t, p.UpdatedAt)

	assert.False(t, p.WindowChanged(start, end))
	assert.True(t, p.WindowChanged(start, end.Add(time.Hour)))

	require.NoError(t, p.Edit(decimal.NewFromInt(70), start, end.Add(time.Hour)))
	assert.True(t, p.Price.Equal(decimal.NewFromInt(70)))
	assert.True(t, p.EndDate.Equal(end.Add(time.Hour)))
	assert.NotNil(t, p.UpdatedAt)
}

func TestPromotion_ActivateDeactivate(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	p, err := NewPromotion(uuid.New(), decimal.NewFromInt(80), start, start.Add(time.Hour))
	require.NoError(t, err)

	p.Deactivate()
	assert.False(t, p.Active)
	require.NotNil(t, p.UpdatedAt)

	p.Activate()
	assert.True(t, p.Active)
}

func TestNewLibraryEntry(t *testing.T) {
	t.Parallel()

	userID, gameID, promotionID := uuid.New(), uuid.New(), uuid.New()

	e, err := NewLibraryEntry(userID, gameID, decimal.RequireFromString("12.50"), &promotionID)
	require.NoError(t, err)
	assert.Equal(t, userID, e.UserID)
	assert.Equal(t, gameID, e.GameID)
	assert.Equal(t, &promotionID, e.PromotionID)
	assert.False(t, e.PurchasedAt.IsZero())

	_, err = NewLibraryEntry(uuid.Nil, gameID, decimal.Zero, nil)
	assert.ErrorIs(t, err, ErrEmptyUserID)

	_, err = NewLibraryEntry(userID, uuid.Nil, decimal.Zero, nil)
	assert.ErrorIs(t, err, ErrInvalidID)

	_, err = NewLibraryEntry(userID, gameID, decimal.NewFromInt(-5), nil)
	assert.ErrorIs(t, err, ErrInvalidPrice)
}
