package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Promotion is a time-boxed discounted price for a single game.
//
// The Active flag is administrative only. Whether a promotion applies to a
// price is decided by its date window, see ActiveAt.
type Promotion struct {
	ID        uuid.UUID       `json:"id"`
	GameID    uuid.UUID       `json:"game_id"`
	Price     decimal.Decimal `json:"price"`
	StartDate time.Time       `json:"start_date"`
	EndDate   time.Time       `json:"end_date"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt *time.Time      `json:"updated_at,omitempty"`
}

// NewPromotion creates an active promotion for gameID.
// Checks that need the owning game (price below base, overlap) are the
// caller's responsibility.
func NewPromotion(gameID uuid.UUID, price decimal.Decimal, start, end time.Time) (*Promotion, error) {
	p := &Promotion{
		ID:        uuid.New(),
		GameID:    gameID,
		Price:     price,
		StartDate: start.UTC(),
		EndDate:   end.UTC(),
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	return p, nil
}

// Validate checks the invariants that a promotion can enforce on its own.
func (p *Promotion) Validate() error {
	if p.ID == uuid.Nil {
		return NewValidationError("id", "cannot be empty", ErrInvalidID)
	}
	if p.GameID == uuid.Nil {
		return NewValidationError("game_id", "cannot be empty", ErrInvalidID)
	}
	if err := ValidatePrice(p.Price); err != nil {
		return err
	}
	if !p.EndDate.After(p.StartDate) {
		return ErrInvalidWindow
	}
	return nil
}

// Edit replaces price and window. On failure the promotion is left unchanged.
func (p *Promotion) Edit(price decimal.Decimal, start, end time.Time) error {
	next := *p
	next.Price = price
	next.StartDate = start.UTC()
	next.EndDate = end.UTC()
	if err := next.Validate(); err != nil {
		return err
	}
	*p = next
	p.touch()
	return nil
}

// WindowChanged reports whether start/end differ from the current window.
func (p *Promotion) WindowChanged(start, end time.Time) bool {
	return !p.StartDate.Equal(start) || !p.EndDate.Equal(end)
}

// ActiveAt reports whether t falls inside the closed window [StartDate, EndDate].
func (p *Promotion) ActiveAt(t time.Time) bool {
	return !t.Before(p.StartDate) && !t.After(p.EndDate)
}

// Activate sets the administrative flag.
func (p *Promotion) Activate() {
	p.Active = true
	p.touch()
}

// Deactivate clears the administrative flag.
func (p *Promotion) Deactivate() {
	p.Active = false
	p.touch()
}

func (p *Promotion) touch() {
	now := time.Now().UTC()
	p.UpdatedAt = &now
}
