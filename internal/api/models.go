package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/storefront-api/internal/domain"
	"github.com/phrazzld/storefront-api/internal/service"
	"github.com/phrazzld/storefront-api/internal/store"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// Date is a calendar date or an RFC 3339 timestamp in JSON. Dates are read
// as midnight UTC.
type Date struct {
	time.Time
}

// UnmarshalJSON accepts "2006-01-02" and RFC 3339 strings.
func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	s, err := strconv.Unquote(string(b))
	if err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		d.Time = t.UTC()
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("date %q is neither YYYY-MM-DD nor RFC 3339", s)
	}
	d.Time = t.UTC()
	return nil
}

// MarshalJSON writes the timestamp in RFC 3339.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Time.Format(time.RFC3339))
}

// RegisterRequest defines the payload for self-registration and for
// administrators creating users.
type RegisterRequest struct {
	Name     string `json:"name"     validate:"required,max=255"`
	Email    string `json:"email"    validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=72"`
}

// LoginRequest defines the payload for the user login endpoint.
type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=1"`
}

// RefreshTokenRequest defines the payload for the token refresh endpoint.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// ChangePasswordRequest defines the payload for the password change endpoint.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password"     validate:"required,max=72"`
}

// AuthResponse is returned by login and refresh.
type AuthResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	// ExpiresAt is the RFC 3339 timestamp when the access token expires
	ExpiresAt string `json:"expires_at"`
}

// RegisterResponse is returned when a user has been provisioned.
type RegisterResponse struct {
	UserID uuid.UUID `json:"user_id"`
}

// ProfileResponse describes the authenticated caller.
type ProfileResponse struct {
	CredentialID uuid.UUID `json:"credential_id"`
	Email        string    `json:"email"`
	Roles        []string  `json:"roles"`
}

// GameRequest carries the attributes of a game to create or update.
type GameRequest struct {
	Name        string          `json:"name"         validate:"required,max=255"`
	Description *string         `json:"description"  validate:"omitempty,max=4000"`
	Developer   *string         `json:"developer"    validate:"omitempty,max=255"`
	ReleaseDate *Date           `json:"release_date"`
	Price       decimal.Decimal `json:"price"`
}

func (r GameRequest) details() domain.GameDetails {
	d := domain.GameDetails{
		Name:        r.Name,
		Description: r.Description,
		Developer:   r.Developer,
		Price:       r.Price,
	}
	if r.ReleaseDate != nil {
		t := r.ReleaseDate.Time
		d.ReleaseDate = &t
	}
	return d
}

// GameResponse is a game with the price a buyer pays right now.
type GameResponse struct {
	ID             uuid.UUID       `json:"id"`
	Name           string          `json:"name"`
	Description    *string         `json:"description,omitempty"`
	Developer      *string         `json:"developer,omitempty"`
	ReleaseDate    *time.Time      `json:"release_date,omitempty"`
	BasePrice      decimal.Decimal `json:"base_price"`
	EffectivePrice decimal.Decimal `json:"effective_price"`
	Discounted     bool            `json:"discounted"`
	PromotionID    *uuid.UUID      `json:"promotion_id,omitempty"`
	Active         bool            `json:"active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      *time.Time      `json:"updated_at,omitempty"`
}

func gameToResponse(pg *service.PricedGame) GameResponse {
	g := pg.Game
	resp := GameResponse{
		ID:             g.ID,
		Name:           g.Name,
		Description:    g.Description,
		Developer:      g.Developer,
		ReleaseDate:    g.ReleaseDate,
		BasePrice:      pg.Quote.BasePrice,
		EffectivePrice: pg.Quote.Price,
		Discounted:     pg.Quote.Discounted(),
		Active:         g.Active,
		CreatedAt:      g.CreatedAt,
		UpdatedAt:      g.UpdatedAt,
	}
	if pg.Quote.Promotion != nil {
		id := pg.Quote.Promotion.ID
		resp.PromotionID = &id
	}
	return resp
}

// PromotionRequest carries a promotion to create. GameID is ignored on edit.
type PromotionRequest struct {
	GameID    string          `json:"game_id"    validate:"omitempty,uuid"`
	Price     decimal.Decimal `json:"price"`
	StartDate Date            `json:"start_date"`
	EndDate   Date            `json:"end_date"`
	Active    *bool           `json:"active"`
}

// PromotionResponse describes a promotion. GameName is only set in listings.
type PromotionResponse struct {
	ID        uuid.UUID       `json:"id"`
	GameID    uuid.UUID       `json:"game_id"`
	GameName  string          `json:"game_name,omitempty"`
	Price     decimal.Decimal `json:"price"`
	StartDate time.Time       `json:"start_date"`
	EndDate   time.Time       `json:"end_date"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt *time.Time      `json:"updated_at,omitempty"`
}

func promotionToResponse(p *domain.Promotion, gameName string) PromotionResponse {
	return PromotionResponse{
		ID:        p.ID,
		GameID:    p.GameID,
		GameName:  gameName,
		Price:     p.Price,
		StartDate: p.StartDate,
		EndDate:   p.EndDate,
		Active:    p.Active,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// UserResponse describes a user profile.
type UserResponse struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func userToResponse(u *domain.UserProfile) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// AddToLibraryRequest records a purchase. Without a price the current
// effective price is charged.
type AddToLibraryRequest struct {
	GameID        string           `json:"game_id"        validate:"required,uuid"`
	PurchasePrice *decimal.Decimal `json:"purchase_price"`
	PromotionID   *string          `json:"promotion_id"   validate:"omitempty,uuid"`
}

// LibraryItemResponse is one owned game.
type LibraryItemResponse struct {
	ID            uuid.UUID       `json:"id"`
	GameID        uuid.UUID       `json:"game_id"`
	GameName      string          `json:"game_name"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	PromotionID   *uuid.UUID      `json:"promotion_id,omitempty"`
	PurchasedAt   time.Time       `json:"purchased_at"`
}

func libraryItemToResponse(item *store.LibraryItem) LibraryItemResponse {
	return LibraryItemResponse{
		ID:            item.Entry.ID,
		GameID:        item.Entry.GameID,
		GameName:      item.GameName,
		PurchasePrice: item.Entry.PurchasePrice,
		PromotionID:   item.Entry.PromotionID,
		PurchasedAt:   item.Entry.PurchasedAt,
	}
}

// PageResponse is the pagination envelope of every listing.
type PageResponse[T any] struct {
	Items        []T `json:"items"`
	Page         int `json:"page"`
	PageSize     int `json:"page_size"`
	TotalRecords int `json:"total_records"`
	TotalPages   int `json:"total_pages"`
}

func toPageResponse[S, T any](res store.PageResult[S], convert func(S) T) PageResponse[T] {
	items := make([]T, 0, len(res.Items))
	for _, item := range res.Items {
		items = append(items, convert(item))
	}
	return PageResponse[T]{
		Items:        items,
		Page:         res.Page,
		PageSize:     res.PageSize,
		TotalRecords: res.Total,
		TotalPages:   res.TotalPages,
	}
}
