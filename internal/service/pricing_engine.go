package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/storefront-api/internal/domain"
	"github.com/phrazzld/storefront-api/internal/domain/pricing"
	"github.com/phrazzld/storefront-api/internal/metrics"
	"github.com/phrazzld/storefront-api/internal/platform/logger"
	"github.com/phrazzld/storefront-api/internal/store"
	"github.com/shopspring/decimal"
)

// Rejection reasons recorded in metrics.
const (
	reasonGameNotFound  = "game_not_found"
	reasonInvalidWindow = "invalid_window"
	reasonPriceNotBelow = "price_not_below_base"
	reasonOverlap       = "overlapping_promotion"
	reasonInvalidPrice  = "invalid_price"
)

// PricingEngine applies the promotion rules against stored games and
// promotions. It reads through the stores it is given and never writes.
type PricingEngine struct {
	games      store.GameStore
	promotions store.PromotionStore
	logger     *slog.Logger
}

// NewPricingEngine creates a PricingEngine.
func NewPricingEngine(games store.GameStore, promotions store.PromotionStore, logger *slog.Logger) (*PricingEngine, error) {
	if games == nil {
		return nil, domain.NewValidationError("games", "cannot be nil", domain.ErrValidation)
	}
	if promotions == nil {
		return nil, domain.NewValidationError("promotions", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PricingEngine{
		games:      games,
		promotions: promotions,
		logger:     logger.With(slog.String("component", "pricing_engine")),
	}, nil
}

// ValidateNewPromotion checks a promotion about to be created for gameID and
// returns the owning game. Checks run in order: game exists, window, price
// below base, no overlap with any other promotion of the game.
func (e *PricingEngine) ValidateNewPromotion(
	ctx context.Context,
	gameID uuid.UUID,
	price decimal.Decimal,
	start, end time.Time,
) (*domain.Game, error) {
	game, err := e.loadGame(ctx, gameID)
	if err != nil {
		return nil, err
	}

	window := pricing.Window{Start: start.UTC(), End: end.UTC()}
	if err := e.check(ctx, game, price, window, uuid.Nil, true); err != nil {
		return nil, err
	}
	return game, nil
}

// ValidateEditedPromotion re-checks an existing promotion against new values.
// The price is always compared with the game's current base price; the
// overlap check only runs when the window moves, and ignores the promotion
// itself.
func (e *PricingEngine) ValidateEditedPromotion(
	ctx context.Context,
	existing *domain.Promotion,
	newPrice decimal.Decimal,
	start, end time.Time,
) error {
	if existing == nil {
		return domain.NewValidationError("promotion", "cannot be nil", domain.ErrValidation)
	}

	game, err := e.loadGame(ctx, existing.GameID)
	if err != nil {
		return err
	}

	window := pricing.Window{Start: start.UTC(), End: end.UTC()}
	return e.check(ctx, game, newPrice, window, existing.ID, existing.WindowChanged(window.Start, window.End))
}

func (e *PricingEngine) check(
	ctx context.Context,
	game *domain.Game,
	price decimal.Decimal,
	window pricing.Window,
	exclude uuid.UUID,
	checkOverlap bool,
) error {
	var existing []*domain.Promotion
	if checkOverlap {
		var err error
		existing, err = e.promotions.ListByGame(ctx, game.ID)
		if err != nil {
			return NewServiceError("validate_promotion", "failed to load promotions", err)
		}
	}

	if err := pricing.CheckCandidate(game, price, window, existing, exclude); err != nil {
		reason := rejectionReason(err)
		metrics.RecordPromotionRejection(reason)
		logger.FromContextOrDefault(ctx, e.logger).Debug("promotion rejected",
			slog.String("game_id", game.ID.String()),
			slog.String("reason", reason))
		return err
	}
	return nil
}

// ResolveEffectivePrice returns the price of game at now. The result is
// computed on every call and never stored.
func (e *PricingEngine) ResolveEffectivePrice(ctx context.Context, game *domain.Game, now time.Time) (pricing.Quote, error) {
	if game == nil {
		return pricing.Quote{}, pricing.ErrNilGame
	}
	quotes, err := e.ResolveEffectivePrices(ctx, []*domain.Game{game}, now)
	if err != nil {
		return pricing.Quote{}, err
	}
	return quotes[game.ID], nil
}

// ResolveEffectivePrices resolves several games with one promotion query.
func (e *PricingEngine) ResolveEffectivePrices(
	ctx context.Context,
	games []*domain.Game,
	now time.Time,
) (map[uuid.UUID]pricing.Quote, error) {
	quotes := make(map[uuid.UUID]pricing.Quote, len(games))
	if len(games) == 0 {
		return quotes, nil
	}

	ids := make([]uuid.UUID, 0, len(games))
	for _, g := range games {
		if g != nil {
			ids = append(ids, g.ID)
		}
	}

	current, err := e.promotions.ListCurrentByGames(ctx, ids, now)
	if err != nil {
		logger.FromContextOrDefault(ctx, e.logger).Error("failed to load current promotions",
			slog.String("error", err.Error()),
			slog.Int("game_count", len(ids)))
		return nil, NewServiceError("resolve_price", "failed to load promotions", err)
	}

	for _, g := range games {
		if g == nil {
			continue
		}
		q, err := pricing.Resolve(g, current[g.ID], now)
		if err != nil {
			return nil, err
		}
		quotes[g.ID] = q
	}
	return quotes, nil
}

func (e *PricingEngine) loadGame(ctx context.Context, id uuid.UUID) (*domain.Game, error) {
	game, err := e.games.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrGameNotFound) {
			metrics.RecordPromotionRejection(reasonGameNotFound)
			return nil, fmt.Errorf("%w: %s", store.ErrGameNotFound, id)
		}
		return nil, NewServiceError("validate_promotion", "failed to load game", err)
	}
	return game, nil
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidWindow):
		return reasonInvalidWindow
	case errors.Is(err, pricing.ErrPriceNotBelowBase):
		return reasonPriceNotBelow
	case errors.Is(err, pricing.ErrOverlappingPromotion):
		return reasonOverlap
	default:
		return reasonInvalidPrice
	}
}
