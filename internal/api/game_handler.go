package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/phrazzld/storefront-api/internal/api/shared"
	"github.com/phrazzld/storefront-api/internal/domain"
	"github.com/phrazzld/storefront-api/internal/service"
	"github.com/phrazzld/storefront-api/internal/store"
)

// Catalog manages games and prices them on read.
type Catalog interface {
	Create(ctx context.Context, details domain.GameDetails) (*domain.Game, error)
	Update(ctx context.Context, id uuid.UUID, details domain.GameDetails) (*domain.Game, error)
	Activate(ctx context.Context, id uuid.UUID) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	Remove(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*service.PricedGame, error)
	Search(ctx context.Context, page store.Page, filter store.GameFilter) (store.PageResult[*service.PricedGame], error)
}

// GameHandler serves the game catalog.
type GameHandler struct {
	games  Catalog
	logger *slog.Logger
}

// NewGameHandler creates a GameHandler.
func NewGameHandler(games Catalog, logger *slog.Logger) *GameHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GameHandler{games: games, logger: logger.With(slog.String("component", "game_handler"))}
}

// List handles GET /games?name=&active_only=&page=&page_size=. Callers
// without the administrator role only see active games.
func (h *GameHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	filter := store.GameFilter{Name: r.URL.Query().Get("name")}
	if v := r.URL.Query().Get("active_only"); v != "" {
		only, err := strconv.ParseBool(v)
		if err != nil {
			HandleAPIError(w, r, domain.NewValidationError("active_only", "must be true or false", domain.ErrValidation), "")
			return
		}
		filter.OnlyActive = only
	}
	if caller, ok := shared.CallerFrom(r.Context()); !ok || !caller.IsAdmin() {
		filter.OnlyActive = true
	}

	res, err := h.games.Search(r.Context(), page, filter)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list games")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, toPageResponse(res, gameToResponse))
}

// Get handles GET /games/{id}.
func (h *GameHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	game, err := h.games.Get(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get game")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, gameToResponse(game))
}

// Create handles POST /games.
func (h *GameHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req GameRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	game, err := h.games.Create(r.Context(), req.details())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create game")
		return
	}
	h.respondPriced(w, r, http.StatusCreated, game.ID)
}

// Update handles PUT /games/{id}.
func (h *GameHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req GameRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if _, err := h.games.Update(r.Context(), id, req.details()); err != nil {
		HandleAPIError(w, r, err, "Failed to update game")
		return
	}
	h.respondPriced(w, r, http.StatusOK, id)
}

// Activate handles PATCH /games/{id}/activate.
func (h *GameHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.games.Activate, "Failed to activate game")
}

// Deactivate handles PATCH /games/{id}/deactivate.
func (h *GameHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.games.Deactivate, "Failed to deactivate game")
}

// Delete handles DELETE /games/{id}.
func (h *GameHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.games.Remove, "Failed to delete game")
}

func (h *GameHandler) mutate(
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

// respondPriced re-reads game id so the response carries its effective price.
func (h *GameHandler) respondPriced(w http.ResponseWriter, r *http.Request, status int, id uuid.UUID) {
	game, err := h.games.Get(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load game")
		return
	}
	shared.RespondWithJSON(w, r, status, gameToResponse(game))
}
