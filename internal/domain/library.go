package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LibraryEntry records that a user owns a game and what they paid for it.
type LibraryEntry struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"user_id"`
	GameID        uuid.UUID       `json:"game_id"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	PromotionID   *uuid.UUID      `json:"promotion_id,omitempty"`
	PurchasedAt   time.Time       `json:"purchased_at"`
}

// NewLibraryEntry creates an entry for a purchase made now.
func NewLibraryEntry(
	userID, gameID uuid.UUID,
	price decimal.Decimal,
	promotionID *uuid.UUID,
) (*LibraryEntry, error) {
	e := &LibraryEntry{
		ID:            uuid.New(),
		UserID:        userID,
		GameID:        gameID,
		PurchasePrice: price,
		PromotionID:   promotionID,
		PurchasedAt:   time.Now().UTC(),
	}

	if err := e.Validate(); err != nil {
		return nil, err
	}

	return e, nil
}

// Validate checks the entry's own invariants.
func (e *LibraryEntry) Validate() error {
	if e.ID == uuid.Nil {
		return NewValidationError("id", "cannot be empty", ErrInvalidID)
	}
	if e.UserID == uuid.Nil {
		return ErrEmptyUserID
	}
	if e.GameID == uuid.Nil {
		return NewValidationError("game_id", "cannot be empty", ErrInvalidID)
	}
	if err := ValidatePrice(e.PurchasePrice); err != nil {
		return err
	}
	return nil
}
