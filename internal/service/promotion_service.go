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
	"github.com/phrazzld/storefront-api/internal/events"
	"github.com/phrazzld/storefront-api/internal/platform/logger"
	"github.com/phrazzld/storefront-api/internal/store"
	"github.com/shopspring/decimal"
)

// PromotionInput carries the price and window of a promotion.
type PromotionInput struct {
	GameID    uuid.UUID
	Price     decimal.Decimal
	StartDate time.Time
	EndDate   time.Time
	// Active defaults to true when nil.
	Active *bool
}

// PromotionService manages the promotion lifecycle. Every create and edit is
// checked by the PricingEngine before it is staged.
type PromotionService struct {
	engine     *PricingEngine
	promotions store.PromotionStore
	units      store.UnitOfWorkFactory
	events     events.EventEmitter
	logger     *slog.Logger
}

// NewPromotionService creates a PromotionService. The emitter may be nil.
func NewPromotionService(
	engine *PricingEngine,
	promotions store.PromotionStore,
	units store.UnitOfWorkFactory,
	emitter events.EventEmitter,
	logger *slog.Logger,
) (*PromotionService, error) {
	if engine == nil {
		return nil, domain.NewValidationError("engine", "cannot be nil", domain.ErrValidation)
	}
	if promotions == nil {
		return nil, domain.NewValidationError("promotions", "cannot be nil", domain.ErrValidation)
	}
	if units == nil {
		return nil, domain.NewValidationError("units", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PromotionService{
		engine:     engine,
		promotions: promotions,
		units:      units,
		events:     emitter,
		logger:     logger.With(slog.String("component", "promotion_service")),
	}, nil
}

// Create validates and stores a new promotion.
func (s *PromotionService) Create(ctx context.Context, in PromotionInput) (*domain.Promotion, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if _, err := s.engine.ValidateNewPromotion(ctx, in.GameID, in.Price, in.StartDate, in.EndDate); err != nil {
		return nil, err
	}

	promotion, err := domain.NewPromotion(in.GameID, in.Price, in.StartDate, in.EndDate)
	if err != nil {
		return nil, err
	}
	if in.Active != nil && !*in.Active {
		promotion.Active = false
	}

	if err := s.commit(ctx, "create_promotion", func(u store.UnitOfWork) error {
		return u.StageAdd(promotion)
	}); err != nil {
		return nil, err
	}

	log.Info("promotion created",
		slog.String("promotion_id", promotion.ID.String()),
		slog.String("game_id", promotion.GameID.String()))
	s.changed(ctx, promotion, "created")
	return promotion, nil
}

// Edit replaces price and window of promotion id after re-validating them.
// The owning game cannot change.
func (s *PromotionService) Edit(ctx context.Context, id uuid.UUID, in PromotionInput) (*domain.Promotion, error) {
	promotion, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.engine.ValidateEditedPromotion(ctx, promotion, in.Price, in.StartDate, in.EndDate); err != nil {
		return nil, err
	}
	if err := promotion.Edit(in.Price, in.StartDate, in.EndDate); err != nil {
		return nil, err
	}

	if err := s.commit(ctx, "edit_promotion", func(u store.UnitOfWork) error {
		return u.StageUpdate(promotion)
	}); err != nil {
		return nil, err
	}

	s.changed(ctx, promotion, "edited")
	return promotion, nil
}

// Activate sets the administrative flag. It does not affect pricing.
func (s *PromotionService) Activate(ctx context.Context, id uuid.UUID) error {
	return s.setActive(ctx, id, true)
}

// Deactivate clears the administrative flag. It does not affect pricing.
func (s *PromotionService) Deactivate(ctx context.Context, id uuid.UUID) error {
	return s.setActive(ctx, id, false)
}

func (s *PromotionService) setActive(ctx context.Context, id uuid.UUID, active bool) error {
	promotion, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	op, change := "deactivate_promotion", "deactivated"
	if active {
		op, change = "activate_promotion", "activated"
		promotion.Activate()
	} else {
		promotion.Deactivate()
	}

	if err := s.commit(ctx, op, func(u store.UnitOfWork) error {
		return u.StageUpdate(promotion)
	}); err != nil {
		return err
	}
	s.changed(ctx, promotion, change)
	return nil
}

// Remove deletes promotion id.
func (s *PromotionService) Remove(ctx context.Context, id uuid.UUID) error {
	promotion, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.commit(ctx, "remove_promotion", func(u store.UnitOfWork) error {
		return u.StageRemove(promotion)
	}); err != nil {
		return err
	}
	s.changed(ctx, promotion, "removed")
	return nil
}

// Get returns promotion id.
func (s *PromotionService) Get(ctx context.Context, id uuid.UUID) (*domain.Promotion, error) {
	promotion, err := s.promotions.GetByID(ctx, id)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, store.ErrPromotionNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get promotion",
			slog.String("error", err.Error()),
			slog.String("promotion_id", id.String()))
		return nil, NewServiceError("get_promotion", "failed to retrieve promotion", err)
	}
	return promotion, nil
}

// Search returns one page of promotions with their game names.
func (s *PromotionService) Search(
	ctx context.Context,
	page store.Page,
	filter store.PromotionFilter,
) (store.PageResult[*store.PromotionView], error) {
	if err := page.Validate(); err != nil {
		return store.PageResult[*store.PromotionView]{}, err
	}
	if err := filter.Validate(); err != nil {
		return store.PageResult[*store.PromotionView]{}, err
	}

	views, total, err := s.promotions.Query(ctx, page, filter)
	if err != nil {
		return store.PageResult[*store.PromotionView]{}, NewServiceError("search_promotions", "failed to query promotions", err)
	}
	return store.NewPageResult(views, page, total), nil
}

func (s *PromotionService) commit(ctx context.Context, op string, stage func(store.UnitOfWork) error) error {
	unit := s.units.Begin()
	defer unit.Discard()

	if err := stage(unit); err != nil {
		return err
	}
	err := commitErr(unit.Commit(ctx))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrPromotionOverlap):
		// Lost a race with a concurrent write; the exclusion constraint caught it.
		return fmt.Errorf("%w: %w", pricing.ErrOverlappingPromotion, err)
	case errors.Is(err, store.ErrNoRowsAffected), store.IsNotFoundError(err), domain.IsValidationError(err):
		return err
	}
	logger.FromContextOrDefault(ctx, s.logger).Error("failed to commit promotion change",
		slog.String("operation", op),
		slog.String("error", err.Error()))
	return NewServiceError(op, "failed to save promotion", err)
}

func (s *PromotionService) changed(ctx context.Context, p *domain.Promotion, change string) {
	if s.events == nil {
		return
	}
	event, err := events.NewEvent(events.TypePromotionChanged, events.PromotionPayload{
		PromotionID: p.ID,
		GameID:      p.GameID,
		Change:      change,
	})
	if err == nil {
		err = s.events.EmitEvent(context.WithoutCancel(ctx), event)
	}
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Warn("failed to emit promotion event",
			slog.String("error", err.Error()))
	}
}
