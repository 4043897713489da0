package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/storefront-api/internal/domain"
)

// GameStore defines read access to the game catalog.
// Writes go through a UnitOfWork.
type GameStore interface {
	// GetByID retrieves a game by its unique ID.
	// Returns ErrGameNotFound if the game does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Game, error)

	// ExistsByNameAndRelease reports whether a game with the same name,
	// developer and release date is already registered. Name comparison is
	// case-insensitive; nil developer or release date only match nil.
	ExistsByNameAndRelease(
		ctx context.Context,
		name string,
		developer *string,
		releaseDate *time.Time,
	) (bool, error)

	// Query returns one page of games ordered by name, plus the total number
	// of games matching the filter.
	Query(ctx context.Context, page Page, filter GameFilter) ([]*domain.Game, int, error)
}

// PromotionView is a promotion together with the name of its game, used by listings.
type PromotionView struct {
	Promotion *domain.Promotion
	GameName  string
}

// PromotionStore defines read access to promotions.
// Writes go through a UnitOfWork.
type PromotionStore interface {
	// GetByID retrieves a promotion by its unique ID.
	// Returns ErrPromotionNotFound if the promotion does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Promotion, error)

	// ListByGame returns every promotion of the game regardless of its
	// administrative flag or window, ordered by start date.
	ListByGame(ctx context.Context, gameID uuid.UUID) ([]*domain.Promotion, error)

	// ListCurrentByGames returns, per game, the promotions whose window
	// contains at. Games without such promotions are absent from the map.
	ListCurrentByGames(
		ctx context.Context,
		gameIDs []uuid.UUID,
		at time.Time,
	) (map[uuid.UUID][]*domain.Promotion, error)

	// Query returns one page of promotions ordered by start date, plus the
	// total number matching the filter.
	Query(ctx context.Context, page Page, filter PromotionFilter) ([]*PromotionView, int, error)
}
