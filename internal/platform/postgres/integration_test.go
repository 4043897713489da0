//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/phrazzld/storefront-api/internal/domain"
	"github.com/phrazzld/storefront-api/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openIntegrationDB connects to DATABASE_URL and applies the migrations.
func openIntegrationDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}

	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, db.PingContext(ctx))
	require.NoError(t, Migrate(ctx, db, "up", nil))
	return db
}

func commitAll(t *testing.T, units *UnitOfWorkFactory, stage func(store.UnitOfWork) error) (bool, error) {
	t.Helper()
	unit := units.Begin()
	defer unit.Discard()
	require.NoError(t, stage(unit))
	return unit.Commit(context.Background())
}

func TestIntegration_StoreConstraints(t *testing.T) {
	db := openIntegrationDB(t)
	ctx := context.Background()
	units := NewUnitOfWorkFactory(db, nil)

	game, err := domain.NewGame(domain.GameDetails{
		Name:  "Integration " + uuid.NewString(),
		Price: decimal.NewFromInt(60),
	})
	require.NoError(t, err)
	ok, err := commitAll(t, units, func(u store.UnitOfWork) error { return u.StageAdd(game) })
	require.NoError(t, err)
	require.True(t, ok)
	t.Cleanup(func() {
		_, _ = db.ExecContext(context.Background(), `DELETE FROM games WHERE id = $1`, game.ID)
	})

	start := time.Now().UTC().Truncate(time.Second)
	first, err := domain.NewPromotion(game.ID, decimal.NewFromInt(40), start, start.Add(48*time.Hour))
	require.NoError(t, err)
	ok, err = commitAll(t, units, func(u store.UnitOfWork) error { return u.StageAdd(first) })
	require.NoError(t, err)
	require.True(t, ok)

	t.Run("touching window violates the exclusion constraint", func(t *testing.T) {
		touching, err := domain.NewPromotion(game.ID, decimal.NewFromInt(30), start.Add(48*time.Hour), start.Add(96*time.Hour))
		require.NoError(t, err)

		_, err = commitAll(t, units, func(u store.UnitOfWork) error { return u.StageAdd(touching) })
		require.Error(t, err)
		assert.True(t, errors.Is(err, store.ErrPromotionOverlap))
	})

	t.Run("current promotions are resolved by window", func(t *testing.T) {
		promotions := NewPostgresPromotionStore(db, nil)
		current, err := promotions.ListCurrentByGames(ctx, []uuid.UUID{game.ID}, start.Add(time.Hour))
		require.NoError(t, err)
		require.Len(t, current[game.ID], 1)
		assert.Equal(t, first.ID, current[game.ID][0].ID)
	})

	t.Run("owned game cannot be removed", func(t *testing.T) {
		profile, err := domain.NewUserProfile("Integration User", uuid.NewString()+"@example.com")
		require.NoError(t, err)
		entry, err := domain.NewLibraryEntry(profile.ID, game.ID, decimal.NewFromInt(40), &first.ID)
		require.NoError(t, err)

		ok, err := commitAll(t, units, func(u store.UnitOfWork) error {
			if err := u.StageAdd(profile); err != nil {
				return err
			}
			return u.StageAdd(entry)
		})
		require.NoError(t, err)
		require.True(t, ok)
		t.Cleanup(func() {
			_, _ = db.ExecContext(context.Background(), `DELETE FROM user_profiles WHERE id = $1`, profile.ID)
		})

		_, err = commitAll(t, units, func(u store.UnitOfWork) error { return u.StageRemove(game) })
		require.Error(t, err)
		assert.True(t, errors.Is(err, store.ErrGameReferenced))
	})
}
