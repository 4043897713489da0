package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/storefront-api/internal/domain"
	"github.com/phrazzld/storefront-api/internal/domain/pricing"
	"github.com/phrazzld/storefront-api/internal/platform/logger"
	"github.com/phrazzld/storefront-api/internal/store"
)

// PricedGame is a game with its effective price at the time of the request.
type PricedGame struct {
	Game  *domain.Game
	Quote pricing.Quote
}

// GameService manages the catalog and attaches effective prices to reads.
type GameService struct {
	engine *PricingEngine
	games  store.GameStore
	units  store.UnitOfWorkFactory
	logger *slog.Logger
	now    func() time.Time
}

// NewGameService creates a GameService.
func NewGameService(
	engine *PricingEngine,
	games store.GameStore,
	units store.UnitOfWorkFactory,
	logger *slog.Logger,
) (*GameService, error) {
	if engine == nil {
		return nil, domain.NewValidationError("engine", "cannot be nil", domain.ErrValidation)
	}
	if games == nil {
		return nil, domain.NewValidationError("games", "cannot be nil", domain.ErrValidation)
	}
	if units == nil {
		return nil, domain.NewValidationError("units", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GameService{
		engine: engine,
		games:  games,
		units:  units,
		logger: logger.With(slog.String("component", "game_service")),
		now:    time.Now,
	}, nil
}

// WithClock replaces the time source used for price resolution.
func (s *GameService) WithClock(now func() time.Time) *GameService {
	s.now = now
	return s
}

// Create adds a game to the catalog. A game with the same name, developer
// and release date is rejected with ErrDuplicateGame.
func (s *GameService) Create(ctx context.Context, details domain.GameDetails) (*domain.Game, error) {
	game, err := domain.NewGame(details)
	if err != nil {
		return nil, err
	}

	if err := s.ensureUnique(ctx, game); err != nil {
		return nil, err
	}

	if err := s.commit(ctx, "create_game", func(u store.UnitOfWork) error {
		return u.StageAdd(game)
	}); err != nil {
		return nil, err
	}

	logger.FromContextOrDefault(ctx, s.logger).Info("game created",
		slog.String("game_id", game.ID.String()),
		slog.String("name", game.Name))
	return game, nil
}

// Update replaces the attributes of game id.
func (s *GameService) Update(ctx context.Context, id uuid.UUID, details domain.GameDetails) (*domain.Game, error) {
	game, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	before := *game
	if err := game.Update(details); err != nil {
		return nil, err
	}
	if identityChanged(&before, game) {
		if err := s.ensureUnique(ctx, game); err != nil {
			return nil, err
		}
	}

	if err := s.commit(ctx, "update_game", func(u store.UnitOfWork) error {
		return u.StageUpdate(game)
	}); err != nil {
		return nil, err
	}
	return game, nil
}

// Activate shows game id in the catalog.
func (s *GameService) Activate(ctx context.Context, id uuid.UUID) error {
	game, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	game.Activate()
	return s.commit(ctx, "activate_game", func(u store.UnitOfWork) error {
		return u.StageUpdate(game)
	})
}

// Deactivate hides game id from the catalog.
func (s *GameService) Deactivate(ctx context.Context, id uuid.UUID) error {
	game, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	game.Deactivate()
	return s.commit(ctx, "deactivate_game", func(u store.UnitOfWork) error {
		return u.StageUpdate(game)
	})
}

// Remove deletes game id and its promotions. Games that users own cannot be
// removed.
func (s *GameService) Remove(ctx context.Context, id uuid.UUID) error {
	game, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	return s.commit(ctx, "remove_game", func(u store.UnitOfWork) error {
		return u.StageRemove(game)
	})
}

// Get returns game id with its effective price.
func (s *GameService) Get(ctx context.Context, id uuid.UUID) (*PricedGame, error) {
	game, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	quote, err := s.engine.ResolveEffectivePrice(ctx, game, s.now())
	if err != nil {
		return nil, err
	}
	return &PricedGame{Game: game, Quote: quote}, nil
}

// Search returns one page of games with effective prices.
func (s *GameService) Search(
	ctx context.Context,
	page store.Page,
	filter store.GameFilter,
) (store.PageResult[*PricedGame], error) {
	if err := page.Validate(); err != nil {
		return store.PageResult[*PricedGame]{}, err
	}

	games, total, err := s.games.Query(ctx, page, filter)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to query games",
			slog.String("error", err.Error()))
		return store.PageResult[*PricedGame]{}, NewServiceError("search_games", "failed to query games", err)
	}

	quotes, err := s.engine.ResolveEffectivePrices(ctx, games, s.now())
	if err != nil {
		return store.PageResult[*PricedGame]{}, err
	}

	items := make([]*PricedGame, 0, len(games))
	for _, g := range games {
		items = append(items, &PricedGame{Game: g, Quote: quotes[g.ID]})
	}
	return store.NewPageResult(items, page, total), nil
}

func (s *GameService) load(ctx context.Context, id uuid.UUID) (*domain.Game, error) {
	game, err := s.games.GetByID(ctx, id)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, store.ErrGameNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get game",
			slog.String("error", err.Error()),
			slog.String("game_id", id.String()))
		return nil, NewServiceError("get_game", "failed to retrieve game", err)
	}
	return game, nil
}

func (s *GameService) ensureUnique(ctx context.Context, g *domain.Game) error {
	exists, err := s.games.ExistsByNameAndRelease(ctx, g.Name, g.Developer, g.ReleaseDate)
	if err != nil {
		return NewServiceError("check_game", "failed to check for duplicate game", err)
	}
	if exists {
		return ErrDuplicateGame
	}
	return nil
}

func (s *GameService) commit(ctx context.Context, op string, stage func(store.UnitOfWork) error) error {
	unit := s.units.Begin()
	defer unit.Discard()

	if err := stage(unit); err != nil {
		return err
	}
	err := commitErr(unit.Commit(ctx))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrGameReferenced):
		return ErrGameInUse
	case errors.Is(err, store.ErrNoRowsAffected), domain.IsValidationError(err):
		return err
	}
	logger.FromContextOrDefault(ctx, s.logger).Error("failed to commit game change",
		slog.String("operation", op),
		slog.String("error", err.Error()))
	return NewServiceError(op, "failed to save game", err)
}

func identityChanged(before, after *domain.Game) bool {
	if !strings.EqualFold(before.Name, after.Name) {
		return true
	}
	if (before.Developer == nil) != (after.Developer == nil) ||
		(before.Developer != nil && *before.Developer != *after.Developer) {
		return true
	}
	if (before.ReleaseDate == nil) != (after.ReleaseDate == nil) ||
		(before.ReleaseDate != nil && !before.ReleaseDate.Equal(*after.ReleaseDate)) {
		return true
	}
	return false
}
