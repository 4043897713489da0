package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/phrazzld/storefront-api/internal/api/shared"
	"github.com/phrazzld/storefront-api/internal/domain"
	"github.com/phrazzld/storefront-api/internal/platform/logger"
	"github.com/phrazzld/storefront-api/internal/service"
	"github.com/phrazzld/storefront-api/internal/store"
)

// UserDirectory answers profile queries and manages libraries.
type UserDirectory interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.UserProfile, error)
	Search(ctx context.Context, page store.Page, filter store.UserFilter) (store.PageResult[*domain.UserProfile], error)
	AddGame(ctx context.Context, in service.AddToLibraryInput) (*store.LibraryItem, error)
	Library(ctx context.Context, caller service.Caller) ([]*store.LibraryItem, error)
}

// UserHandler serves the user administration and library endpoints.
type UserHandler struct {
	users       UserDirectory
	provisioner Provisioner
	logger      *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(users UserDirectory, provisioner Provisioner, logger *slog.Logger) *UserHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserHandler{
		users:       users,
		provisioner: provisioner,
		logger:      logger.With(slog.String("component", "user_handler")),
	}
}

// List handles GET /users?search=&page=&page_size=.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromQuery(r)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	res, err := h.users.Search(r.Context(), page, store.UserFilter{Term: r.URL.Query().Get("search")})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list users")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, toPageResponse(res, userToResponse))
}

// Get handles GET /users/{id}.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get user")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, userToResponse(user))
}

// Create handles POST /users. Administrators provision users the same way
// self-registration does.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	id, err := h.provisioner.CreateUser(r.Context(), service.CreateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create user")
		return
	}

	w.Header().Set("Location", "/api/users/"+id.String())
	shared.RespondWithJSON(w, r, http.StatusCreated, RegisterResponse{UserID: id})
}

// Delete handles DELETE /users/{id}.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if _, err := h.provisioner.RemoveUser(r.Context(), id); err != nil {
		HandleAPIError(w, r, err, "Failed to remove user")
		return
	}

	logger.FromContextOrDefault(r.Context(), h.logger).Info("user removed via API",
		slog.String("user_id", id.String()))
	w.WriteHeader(http.StatusNoContent)
}

// AddToLibrary handles POST /users/{id}/library.
func (h *UserHandler) AddToLibrary(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req AddToLibraryRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	item, err := h.users.AddGame(r.Context(), service.AddToLibraryInput{
		UserID:        userID,
		GameID:        uuid.MustParse(req.GameID),
		PurchasePrice: req.PurchasePrice,
		PromotionID:   optionalUUID(req.PromotionID),
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to add game to library")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, libraryItemToResponse(item))
}

// Library handles GET /library and lists the caller's own games.
func (h *UserHandler) Library(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	items, err := h.users.Library(r.Context(), caller)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to load library")
		return
	}

	resp := make([]LibraryItemResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, libraryItemToResponse(item))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}
