package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/phrazzld/storefront-api/internal/api/shared"
	"github.com/phrazzld/storefront-api/internal/domain"
	"github.com/phrazzld/storefront-api/internal/service"
	"github.com/phrazzld/storefront-api/internal/store"
)

// Promotions manages promotion lifecycles.
type Promotions interface {
	Create(ctx context.Context, in service.PromotionInput) (*domain.Promotion, error)
	Edit(ctx context.Context, id uuid.UUID, in service.PromotionInput) (*domain.Promotion, error)
	Activate(ctx context.Context, id uuid.UUID) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	Remove(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Promotion, error)
	Search(ctx context.Context, page store.Page, filter store.PromotionFilter) (store.PageResult[*store.PromotionView], error)
}

// PromotionHandler serves the promotion endpoints.
type PromotionHandler struct {
	promotions Promotions
}

// NewPromotionHandler creates a PromotionHandler.
func NewPromotionHandler(promotions Promotions) *PromotionHandler {
	return &PromotionHandler{promotions: promotions}
}

// List handles GET /promotions?game_id=&min_price=&max_price=&page=&page_size=.
func (h *PromotionHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	var filter store.PromotionFilter
	if filter.MinPrice, err = decimalFromQuery(r, "min_price"); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	if filter.MaxPrice, err = decimalFromQuery(r, "max_price"); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	if v := r.URL.Query().Get("game_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			HandleAPIError(w, r, domain.NewValidationError("game_id", "has invalid format", domain.ErrInvalidID), "")
			return
		}
		filter.GameID = &id
	}

	res, err := h.promotions.Search(r.Context(), page, filter)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list promotions")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, toPageResponse(res, func(v *store.PromotionView) PromotionResponse {
		return promotionToResponse(v.Promotion, v.GameName)
	}))
}

// Get handles GET /promotions/{id}.
func (h *PromotionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	p, err := h.promotions.Get(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get promotion")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, promotionToResponse(p, ""))
}

// Create handles POST /promotions. Overlapping windows and prices not below
// the game's base price are rejected with 400.
func (h *PromotionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req PromotionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if req.GameID == "" {
		HandleAPIError(w, r, domain.NewValidationError("game_id", "is required", domain.ErrValidation), "")
		return
	}

	p, err := h.promotions.Create(r.Context(), service.PromotionInput{
		GameID:    uuid.MustParse(req.GameID),
		Price:     req.Price,
		StartDate: req.StartDate.Time,
		EndDate:   req.EndDate.Time,
		Active:    req.Active,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create promotion")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, promotionToResponse(p, ""))
}

// Edit handles PUT /promotions/{id}.
func (h *PromotionHandler) Edit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req PromotionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	p, err := h.promotions.Edit(r.Context(), id, service.PromotionInput{
		Price:     req.Price,
		StartDate: req.StartDate.Time,
		EndDate:   req.EndDate.Time,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to edit promotion")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, promotionToResponse(p, ""))
}

// Activate handles PATCH /promotions/{id}/activate.
func (h *PromotionHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.promotions.Activate, "Failed to activate promotion")
}

// Deactivate handles PATCH /promotions/{id}/deactivate.
func (h *PromotionHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.promotions.Deactivate, "Failed to deactivate promotion")
}

// Delete handles DELETE /promotions/{id}.
func (h *PromotionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.promotions.Remove, "Failed to delete promotion")
}

func (h *PromotionHandler) mutate(
	w http.ResponseWriter,
	r *http.Request,
	fn func(context.Context, uuid.UUID) error,
	fallback string,
) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := fn(r.Context(), id); err != nil {
		HandleAPIError(w, r, err, fallback)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
