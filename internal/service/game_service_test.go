package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/storefront-api/internal/domain"
	"github.com/phrazzld/storefront-api/internal/mocks"
	"github.com/phrazzld/storefront-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGameService(t *testing.T, db *mocks.MemoryDB, now time.Time) *GameService {
	t.Helper()
	svc, err := NewGameService(newTestEngine(t, db), db.Games(), db, testLogger())
	require.NoError(t, err)
	return svc.WithClock(func() time.Time { return now })
}

func strPtr(s string) *string { return &s }

func TestGameService_Create(t *testing.T) {
	ctx := context.Background()
	db := mocks.NewMemoryDB()
	svc := newTestGameService(t, db, time.Now())
	release := day(t, "2018-01-25")

	details := domain.GameDetails{
		Name:        "Celeste",
		Developer:   strPtr("Maddy Makes Games"),
		ReleaseDate: &release,
		Price:       price("19.99"),
	}
	game, err := svc.Create(ctx, details)
	require.NoError(t, err)
	_, ok := db.Game(game.ID)
	assert.True(t, ok)

	details.Name = "CELESTE"
	_, err = svc.Create(ctx, details)
	assert.ErrorIs(t, err, ErrDuplicateGame)
	assert.Equal(t, KindConflict, KindOf(err))

	details.Developer = strPtr("Someone Else")
	_, err = svc.Create(ctx, details)
	assert.NoError(t, err, "a different developer is a different game")

	_, err = svc.Create(ctx, domain.GameDetails{Name: "", Price: price("1")})
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestGameService_Update(t *testing.T) {
	ctx := context.Background()
	db := mocks.NewMemoryDB()
	svc := newTestGameService(t, db, time.Now())
	a := seedGame(t, db, "Alpha", "10")
	seedGame(t, db, "Beta", "10")

	updated, err := svc.Update(ctx, a.ID, domain.GameDetails{Name: "Alpha", Price: price("12")})
	require.NoError(t, err, "keeping the same identity is not a duplicate")
	assert.True(t, price("12").Equal(updated.Price))

	_, err = svc.Update(ctx, a.ID, domain.GameDetails{Name: "beta", Price: price("12")})
	assert.ErrorIs(t, err, ErrDuplicateGame)

	_, err = svc.Update(ctx, uuid.New(), domain.GameDetails{Name: "X", Price: price("1")})
	assert.ErrorIs(t, err, store.ErrGameNotFound)
}

func TestGameService_ActivateDeactivate(t *testing.T) {
	ctx := context.Background()
	db := mocks.NewMemoryDB()
	svc := newTestGameService(t, db, time.Now())
	g := seedGame(t, db, "Toggle", "10")

	require.NoError(t, svc.Deactivate(ctx, g.ID))
	stored, _ := db.Game(g.ID)
	assert.False(t, stored.Active)

	require.NoError(t, svc.Activate(ctx, g.ID))
	stored, _ = db.Game(g.ID)
	assert.True(t, stored.Active)
}

func TestGameService_Remove(t *testing.T) {
	ctx := context.Background()

	t.Run("removes game and promotions", func(t *testing.T) {
		db := mocks.NewMemoryDB()
		svc := newTestGameService(t, db, time.Now())
		g := seedGame(t, db, "Gone", "10")
		p := seedPromotion(t, db, g, "5", "2024-01-01", "2024-01-02")

		require.NoError(t, svc.Remove(ctx, g.ID))
		_, ok := db.Game(g.ID)
		assert.False(t, ok)
		_, ok = db.Promotion(p.ID)
		assert.False(t, ok)
	})

	t.Run("owned game", func(t *testing.T) {
		db := mocks.NewMemoryDB()
		svc := newTestGameService(t, db, time.Now())
		g := seedGame(t, db, "Owned", "10")
		u, err := domain.NewUserProfile("Owner", "owner@example.com")
		require.NoError(t, err)
		db.SeedProfile(u)
		entry, err := domain.NewLibraryEntry(u.ID, g.ID, price("10"), nil)
		require.NoError(t, err)
		db.SeedLibraryEntry(entry)

		err = svc.Remove(ctx, g.ID)
		assert.ErrorIs(t, err, ErrGameInUse)
		assert.Equal(t, KindConflict, KindOf(err))
		_, ok := db.Game(g.ID)
		assert.True(t, ok)
	})

	t.Run("store failure", func(t *testing.T) {
		db := mocks.NewMemoryDB()
		svc := newTestGameService(t, db, time.Now())
		g := seedGame(t, db, "Broken", "10")
		db.CommitFn = func(context.Context, []mocks.StagedChange) (bool, error) {
			return false, errors.New("disk full")
		}

		err := svc.Remove(ctx, g.ID)
		var svcErr *ServiceError
		require.ErrorAs(t, err, &svcErr)
		assert.Equal(t, "remove_game", svcErr.Operation)
	})
}

func TestGameService_GetAndSearch_EffectivePrice(t *testing.T) {
	ctx := context.Background()
	db := mocks.NewMemoryDB()
	now := day(t, "2024-01-05")
	svc := newTestGameService(t, db, now)

	discounted := seedGame(t, db, "Discounted", "100")
	full := seedGame(t, db, "Full Price", "40")
	seedPromotion(t, db, discounted, "80", "2024-01-01", "2024-01-10")
	seedPromotion(t, db, full, "30", "2024-02-01", "2024-02-10")

	got, err := svc.Get(ctx, discounted.ID)
	require.NoError(t, err)
	assert.True(t, price("80").Equal(got.Quote.Price))
	assert.True(t, price("100").Equal(got.Quote.BasePrice))

	res, err := svc.Search(ctx, store.Page{Number: 1, Size: 10}, store.GameFilter{})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "Discounted", res.Items[0].Game.Name)
	assert.True(t, price("80").Equal(res.Items[0].Quote.Price))
	assert.True(t, price("40").Equal(res.Items[1].Quote.Price))
	assert.Equal(t, 1, res.TotalPages)

	_, err = svc.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrGameNotFound)

	_, err = svc.Search(ctx, store.Page{Number: 1, Size: 0}, store.GameFilter{})
	assert.Equal(t, KindValidation, KindOf(err))
}
