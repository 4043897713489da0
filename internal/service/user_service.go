package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/storefront-api/internal/domain"
	"github.com/phrazzld/storefront-api/internal/platform/logger"
	"github.com/phrazzld/storefront-api/internal/store"
	"github.com/shopspring/decimal"
)

// AddToLibraryInput describes a purchase to record in a user's library.
type AddToLibraryInput struct {
	UserID uuid.UUID
	GameID uuid.UUID
	// PurchasePrice defaults to the game's effective price when nil.
	PurchasePrice *decimal.Decimal
	PromotionID   *uuid.UUID
}

// UserService answers profile queries and manages user libraries. Creating
// and removing users is the Coordinator's job.
type UserService struct {
	engine     *PricingEngine
	profiles   store.UserProfileStore
	library    store.LibraryStore
	games      store.GameStore
	promotions store.PromotionStore
	units      store.UnitOfWorkFactory
	logger     *slog.Logger
	now        func() time.Time
}

// NewUserService creates a UserService.
func NewUserService(
	engine *PricingEngine,
	profiles store.UserProfileStore,
	library store.LibraryStore,
	games store.GameStore,
	promotions store.PromotionStore,
	units store.UnitOfWorkFactory,
	logger *slog.Logger,
) (*UserService, error) {
	switch {
	case engine == nil:
		return nil, domain.NewValidationError("engine", "cannot be nil", domain.ErrValidation)
	case profiles == nil:
		return nil, domain.NewValidationError("profiles", "cannot be nil", domain.ErrValidation)
	case library == nil:
		return nil, domain.NewValidationError("library", "cannot be nil", domain.ErrValidation)
	case games == nil:
		return nil, domain.NewValidationError("games", "cannot be nil", domain.ErrValidation)
	case promotions == nil:
		return nil, domain.NewValidationError("promotions", "cannot be nil", domain.ErrValidation)
	case units == nil:
		return nil, domain.NewValidationError("units", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{
		engine:     engine,
		profiles:   profiles,
		library:    library,
		games:      games,
		promotions: promotions,
		units:      units,
		logger:     logger.With(slog.String("component", "user_service")),
		now:        time.Now,
	}, nil
}

// WithClock replaces the time source used to price purchases.
func (s *UserService) WithClock(now func() time.Time) *UserService {
	s.now = now
	return s
}

// Get returns the profile of user id.
func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*domain.UserProfile, error) {
	profile, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, store.ErrUserNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to retrieve user",
			slog.String("error", err.Error()),
			slog.String("user_id", id.String()))
		return nil, NewServiceError("get_user", "failed to retrieve user", err)
	}
	return profile, nil
}

// Search returns one page of profiles matching filter.
func (s *UserService) Search(
	ctx context.Context,
	page store.Page,
	filter store.UserFilter,
) (store.PageResult[*domain.UserProfile], error) {
	if err := page.Validate(); err != nil {
		return store.PageResult[*domain.UserProfile]{}, err
	}
	users, total, err := s.profiles.Query(ctx, page, filter)
	if err != nil {
		return store.PageResult[*domain.UserProfile]{}, NewServiceError("search_users", "failed to query users", err)
	}
	return store.NewPageResult(users, page, total), nil
}

// AddGame records that user in.UserID bought game in.GameID.
func (s *UserService) AddGame(ctx context.Context, in AddToLibraryInput) (*store.LibraryItem, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	profile, err := s.Get(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	game, err := s.games.GetByID(ctx, in.GameID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, store.ErrGameNotFound
		}
		return nil, NewServiceError("add_game", "failed to retrieve game", err)
	}

	var promotion *domain.Promotion
	if in.PromotionID != nil {
		promotion, err = s.promotions.GetByID(ctx, *in.PromotionID)
		if err != nil {
			if store.IsNotFoundError(err) {
				return nil, store.ErrPromotionNotFound
			}
			return nil, NewServiceError("add_game", "failed to retrieve promotion", err)
		}
		if promotion.GameID != game.ID {
			return nil, ErrPromotionNotForGame
		}
	}

	owned, err := s.library.ListByUser(ctx, profile.ID)
	if err != nil {
		return nil, NewServiceError("add_game", "failed to load library", err)
	}
	for _, item := range owned {
		profile.Library = append(profile.Library, item.Entry)
	}

	price, promotionID, err := s.purchasePrice(ctx, game, promotion, in)
	if err != nil {
		return nil, err
	}

	entry, err := domain.NewLibraryEntry(profile.ID, game.ID, price, promotionID)
	if err != nil {
		return nil, err
	}
	if err := profile.AddGame(*entry); err != nil {
		return nil, err
	}

	unit := s.units.Begin()
	defer unit.Discard()
	if err := unit.StageAdd(entry); err != nil {
		return nil, err
	}
	if err := commitErr(unit.Commit(ctx)); err != nil {
		if errors.Is(err, store.ErrLibraryEntryExists) {
			return nil, ErrGameAlreadyOwned
		}
		log.Error("failed to save library entry",
			slog.String("error", err.Error()),
			slog.String("user_id", profile.ID.String()),
			slog.String("game_id", game.ID.String()))
		return nil, NewServiceError("add_game", "failed to save library entry", err)
	}

	log.Info("game added to library",
		slog.String("user_id", profile.ID.String()),
		slog.String("game_id", game.ID.String()))
	return &store.LibraryItem{Entry: *entry, GameName: game.Name}, nil
}

// purchasePrice returns the explicit price of in. Without one, a referenced
// promotion charges its own price and must be running now; otherwise the
// game's effective price is charged together with the promotion that set it.
func (s *UserService) purchasePrice(
	ctx context.Context,
	game *domain.Game,
	promotion *domain.Promotion,
	in AddToLibraryInput,
) (decimal.Decimal, *uuid.UUID, error) {
	if in.PurchasePrice != nil {
		return *in.PurchasePrice, in.PromotionID, nil
	}

	now := s.now()
	if promotion != nil {
		if !promotion.ActiveAt(now) {
			return decimal.Zero, nil, ErrPromotionNotRunning
		}
		id := promotion.ID
		return promotion.Price, &id, nil
	}

	quote, err := s.engine.ResolveEffectivePrice(ctx, game, now)
	if err != nil {
		return decimal.Zero, nil, err
	}
	var promotionID *uuid.UUID
	if quote.Promotion != nil {
		id := quote.Promotion.ID
		promotionID = &id
	}
	return quote.Price, promotionID, nil
}

// Library lists the games owned by the caller. The caller's profile is
// resolved by email.
func (s *UserService) Library(ctx context.Context, caller Caller) ([]*store.LibraryItem, error) {
	if caller.Anonymous() {
		return nil, ErrUnauthenticated
	}

	profile, err := s.profiles.GetByEmail(ctx, caller.Email)
	if err != nil {
		if store.IsNotFoundError(err) {
			logger.FromContextOrDefault(ctx, s.logger).Warn("authenticated caller has no profile",
				slog.String("email", caller.Email))
			return nil, store.ErrUserNotFound
		}
		return nil, NewServiceError("get_library", "failed to retrieve user", err)
	}

	items, err := s.library.ListByUser(ctx, profile.ID)
	if err != nil {
		return nil, NewServiceError("get_library", "failed to load library", err)
	}
	if items == nil {
		items = []*store.LibraryItem{}
	}
	return items, nil
}
