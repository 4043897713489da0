package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/storefront-api/internal/domain"
	"github.com/phrazzld/storefront-api/internal/domain/pricing"
	"github.com/phrazzld/storefront-api/internal/mocks"
	"github.com/phrazzld/storefront-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPricingEngine_NilDependencies(t *testing.T) {
	db := mocks.NewMemoryDB()

	_, err := NewPricingEngine(nil, db.Promotions(), nil)
	assert.Error(t, err)

	_, err = NewPricingEngine(db.Games(), nil, nil)
	assert.Error(t, err)
}

func TestPricingEngine_ValidateNewPromotion(t *testing.T) {
	ctx := context.Background()
	db := mocks.NewMemoryDB()
	game := seedGame(t, db, "Hollow Night", "100")
	seedPromotion(t, db, game, "80", "2024-01-01", "2024-01-10")
	engine := newTestEngine(t, db)

	tests := []struct {
		name    string
		gameID  uuid.UUID
		price   string
		start   string
		end     string
		wantErr error
	}{
		{"unknown game", uuid.New(), "50", "2024-03-01", "2024-03-02", store.ErrGameNotFound},
		{"end before start", game.ID, "50", "2024-03-02", "2024-03-01", domain.ErrInvalidWindow},
		{"end equals start", game.ID, "50", "2024-03-01", "2024-03-01", domain.ErrInvalidWindow},
		{"price equals base", game.ID, "100", "2024-03-01", "2024-03-02", pricing.ErrPriceNotBelowBase},
		{"price above base", game.ID, "120", "2024-03-01", "2024-03-02", pricing.ErrPriceNotBelowBase},
		{"touching endpoint overlaps", game.ID, "70", "2024-01-10", "2024-01-20", pricing.ErrOverlappingPromotion},
		{"contained window overlaps", game.ID, "70", "2024-01-03", "2024-01-04", pricing.ErrOverlappingPromotion},
		{"adjacent day is free", game.ID, "90", "2024-01-11", "2024-01-20", nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g, err := engine.ValidateNewPromotion(ctx, tc.gameID, price(tc.price), day(t, tc.start), day(t, tc.end))
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.Nil(t, g)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, game.ID, g.ID)
		})
	}
}

func TestPricingEngine_ValidateNewPromotion_CheckOrder(t *testing.T) {
	ctx := context.Background()
	db := mocks.NewMemoryDB()
	game := seedGame(t, db, "Order", "100")
	seedPromotion(t, db, game, "80", "2024-01-01", "2024-01-10")
	engine := newTestEngine(t, db)

	// Bad window, bad price and overlap all at once: the window wins.
	_, err := engine.ValidateNewPromotion(ctx, game.ID, price("150"), day(t, "2024-01-05"), day(t, "2024-01-02"))
	assert.ErrorIs(t, err, domain.ErrInvalidWindow)

	// Bad price and overlap: the price wins.
	_, err = engine.ValidateNewPromotion(ctx, game.ID, price("150"), day(t, "2024-01-05"), day(t, "2024-01-06"))
	assert.ErrorIs(t, err, pricing.ErrPriceNotBelowBase)
}

func TestPricingEngine_ValidateNewPromotion_DeactivatedStillBlocks(t *testing.T) {
	db := mocks.NewMemoryDB()
	game := seedGame(t, db, "Flagged", "100")
	p := seedPromotion(t, db, game, "80", "2024-01-01", "2024-01-10")
	p.Deactivate()
	db.SeedPromotion(p)

	_, err := newTestEngine(t, db).ValidateNewPromotion(context.Background(), game.ID, price("70"),
		day(t, "2024-01-05"), day(t, "2024-01-15"))
	assert.ErrorIs(t, err, pricing.ErrOverlappingPromotion)
}

func TestPricingEngine_ValidateNewPromotion_StoreFailure(t *testing.T) {
	db := mocks.NewMemoryDB()
	game := seedGame(t, db, "Broken", "100")
	promotions := db.Promotions()
	promotions.ListByGameFn = func(context.Context, uuid.UUID) ([]*domain.Promotion, error) {
		return nil, errors.New("connection reset")
	}
	engine, err := NewPricingEngine(db.Games(), promotions, testLogger())
	require.NoError(t, err)

	_, err = engine.ValidateNewPromotion(context.Background(), game.ID, price("10"),
		day(t, "2024-01-01"), day(t, "2024-01-02"))
	var svcErr *ServiceError
	assert.ErrorAs(t, err, &svcErr)
	assert.Equal(t, KindInternal, KindOf(err))
}

func TestPricingEngine_ValidateEditedPromotion(t *testing.T) {
	ctx := context.Background()
	db := mocks.NewMemoryDB()
	game := seedGame(t, db, "Edits", "100")
	a := seedPromotion(t, db, game, "80", "2024-01-01", "2024-01-10")
	seedPromotion(t, db, game, "90", "2024-01-11", "2024-01-20")
	engine := newTestEngine(t, db)

	t.Run("price change only", func(t *testing.T) {
		err := engine.ValidateEditedPromotion(ctx, a, price("60"), a.StartDate, a.EndDate)
		assert.NoError(t, err)
	})

	t.Run("price not below base", func(t *testing.T) {
		err := engine.ValidateEditedPromotion(ctx, a, price("100"), a.StartDate, a.EndDate)
		assert.ErrorIs(t, err, pricing.ErrPriceNotBelowBase)
	})

	t.Run("moving within own window ignores itself", func(t *testing.T) {
		err := engine.ValidateEditedPromotion(ctx, a, price("80"), day(t, "2024-01-02"), day(t, "2024-01-09"))
		assert.NoError(t, err)
	})

	t.Run("moving into another promotion", func(t *testing.T) {
		err := engine.ValidateEditedPromotion(ctx, a, price("80"), day(t, "2024-01-05"), day(t, "2024-01-11"))
		assert.ErrorIs(t, err, pricing.ErrOverlappingPromotion)
	})

	t.Run("inverted window", func(t *testing.T) {
		err := engine.ValidateEditedPromotion(ctx, a, price("80"), day(t, "2024-01-09"), day(t, "2024-01-02"))
		assert.ErrorIs(t, err, domain.ErrInvalidWindow)
	})

	t.Run("game removed", func(t *testing.T) {
		orphan := &domain.Promotion{ID: uuid.New(), GameID: uuid.New()}
		err := engine.ValidateEditedPromotion(ctx, orphan, price("1"), day(t, "2024-05-01"), day(t, "2024-05-02"))
		assert.ErrorIs(t, err, store.ErrGameNotFound)
	})

	t.Run("nil promotion", func(t *testing.T) {
		assert.Error(t, engine.ValidateEditedPromotion(ctx, nil, price("1"), time.Now(), time.Now()))
	})
}

func TestPricingEngine_ScenarioABC(t *testing.T) {
	ctx := context.Background()
	db := mocks.NewMemoryDB()
	game := seedGame(t, db, "Scenario", "100")
	engine := newTestEngine(t, db)

	_, err := engine.ValidateNewPromotion(ctx, game.ID, price("80"), day(t, "2024-01-01"), day(t, "2024-01-10"))
	require.NoError(t, err, "A is accepted")
	seedPromotion(t, db, game, "80", "2024-01-01", "2024-01-10")

	_, err = engine.ValidateNewPromotion(ctx, game.ID, price("70"), day(t, "2024-01-10"), day(t, "2024-01-20"))
	require.ErrorIs(t, err, pricing.ErrOverlappingPromotion, "B overlaps A on 01-10")

	_, err = engine.ValidateNewPromotion(ctx, game.ID, price("90"), day(t, "2024-01-11"), day(t, "2024-01-20"))
	require.NoError(t, err, "C is accepted")
	seedPromotion(t, db, game, "90", "2024-01-11", "2024-01-20")

	for at, want := range map[string]string{
		"2024-01-05": "80",
		"2024-01-15": "90",
		"2024-02-01": "100",
	} {
		q, err := engine.ResolveEffectivePrice(ctx, game, day(t, at))
		require.NoError(t, err)
		assert.True(t, price(want).Equal(q.Price), "price on %s: got %s want %s", at, q.Price, want)
	}
}

func TestPricingEngine_ResolveEffectivePrice(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	t.Run("no promotions", func(t *testing.T) {
		db := mocks.NewMemoryDB()
		game := seedGame(t, db, "Plain", "59.99")
		q, err := newTestEngine(t, db).ResolveEffectivePrice(ctx, game, now)
		require.NoError(t, err)
		assert.True(t, price("59.99").Equal(q.Price))
		assert.False(t, q.Discounted())
	})

	t.Run("deactivated promotion still applies", func(t *testing.T) {
		db := mocks.NewMemoryDB()
		game := seedGame(t, db, "Flag", "50")
		p := seedPromotion(t, db, game, "25", "2024-06-01", "2024-06-30")
		p.Deactivate()
		db.SeedPromotion(p)

		q, err := newTestEngine(t, db).ResolveEffectivePrice(ctx, game, now)
		require.NoError(t, err)
		assert.True(t, price("25").Equal(q.Price))
		assert.Equal(t, p.ID, q.Promotion.ID)
	})

	t.Run("earliest end wins and ties go to lowest id", func(t *testing.T) {
		db := mocks.NewMemoryDB()
		game := seedGame(t, db, "Ties", "50")
		end := day(t, "2024-06-20")
		low := &domain.Promotion{
			ID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), GameID: game.ID,
			Price: price("30"), StartDate: day(t, "2024-06-01"), EndDate: end,
		}
		high := &domain.Promotion{
			ID: uuid.MustParse("ffffffff-0000-0000-0000-000000000000"), GameID: game.ID,
			Price: price("20"), StartDate: day(t, "2024-06-10"), EndDate: end,
		}
		later := &domain.Promotion{
			ID: uuid.New(), GameID: game.ID,
			Price: price("10"), StartDate: day(t, "2024-06-01"), EndDate: day(t, "2024-06-25"),
		}
		// The store refuses overlapping windows, so feed them in directly.
		promotions := db.Promotions()
		promotions.ListCurrentByGamesFn = func(context.Context, []uuid.UUID, time.Time) (map[uuid.UUID][]*domain.Promotion, error) {
			return map[uuid.UUID][]*domain.Promotion{game.ID: {later, high, low}}, nil
		}
		engine, err := NewPricingEngine(db.Games(), promotions, testLogger())
		require.NoError(t, err)

		q, err := engine.ResolveEffectivePrice(ctx, game, now)
		require.NoError(t, err)
		assert.Equal(t, low.ID, q.Promotion.ID)
		assert.True(t, price("30").Equal(q.Price))
	})

	t.Run("nil game", func(t *testing.T) {
		_, err := newTestEngine(t, mocks.NewMemoryDB()).ResolveEffectivePrice(ctx, nil, now)
		assert.ErrorIs(t, err, pricing.ErrNilGame)
	})
}

func TestPricingEngine_ResolveEffectivePrices(t *testing.T) {
	ctx := context.Background()
	db := mocks.NewMemoryDB()
	a := seedGame(t, db, "A", "10")
	b := seedGame(t, db, "B", "20")
	seedPromotion(t, db, a, "5", "2024-01-01", "2024-01-31")

	quotes, err := newTestEngine(t, db).ResolveEffectivePrices(ctx, []*domain.Game{a, b, nil}, day(t, "2024-01-15"))
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	assert.True(t, price("5").Equal(quotes[a.ID].Price))
	assert.True(t, price("20").Equal(quotes[b.ID].Price))

	empty, err := newTestEngine(t, db).ResolveEffectivePrices(ctx, nil, time.Now())
	require.NoError(t, err)
	assert.Empty(t, empty)
}
