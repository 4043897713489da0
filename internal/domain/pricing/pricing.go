// Package pricing holds the pure rules for promotional pricing: window and
// price checks, overlap detection and effective price resolution. Nothing in
// this package performs I/O; callers load the game and its promotions first.
package pricing

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/storefront-api/internal/domain"
	"github.com/shopspring/decimal"
)

// Common errors
var (
	// ErrPriceNotBelowBase is returned when a promotional price is not strictly
	// lower than the game's base price.
	ErrPriceNotBelowBase = fmt.Errorf("%w: promotional price must be lower than the game price", domain.ErrValidation)

	// ErrOverlappingPromotion is returned when a promotion window intersects
	// another promotion of the same game.
	ErrOverlappingPromotion = fmt.Errorf("%w: a promotion already exists for this period", domain.ErrValidation)

	// ErrNilGame is returned when a rule is evaluated without its game.
	ErrNilGame = errors.New("game cannot be nil")
)

// Window is a closed time interval [Start, End].
type Window struct {
	Start time.Time
	End   time.Time
}

// WindowOf returns the window of an existing promotion.
func WindowOf(p *domain.Promotion) Window {
	return Window{Start: p.StartDate, End: p.EndDate}
}

// Valid reports whether End is strictly after Start.
func (w Window) Valid() bool {
	return w.End.After(w.Start)
}

// Overlaps reports whether two closed windows share at least one instant.
// Touching endpoints count as overlap.
func (w Window) Overlaps(other Window) bool {
	return !w.Start.After(other.End) && !other.Start.After(w.End)
}

// Contains reports whether t lies inside the closed window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// CheckWindow returns domain.ErrInvalidWindow unless end > start.
func CheckWindow(w Window) error {
	if !w.Valid() {
		return domain.ErrInvalidWindow
	}
	return nil
}

// CheckPrice enforces 0 <= price < game.Price at the stored scale.
func CheckPrice(game *domain.Game, price decimal.Decimal) error {
	if game == nil {
		return ErrNilGame
	}
	if err := domain.ValidatePrice(price); err != nil {
		return err
	}
	if !price.LessThan(game.Price) {
		return ErrPriceNotBelowBase
	}
	return nil
}

// FindOverlap returns the first promotion in existing whose window overlaps w,
// skipping the promotion with ID exclude. It returns nil when there is none.
// The administrative flag is ignored: deactivated promotions still block
// their window.
func FindOverlap(w Window, existing []*domain.Promotion, exclude uuid.UUID) *domain.Promotion {
	for _, p := range existing {
		if p == nil || p.ID == exclude {
			continue
		}
		if w.Overlaps(WindowOf(p)) {
			return p
		}
	}
	return nil
}

// CheckCandidate runs every rule for a promotion about to be stored, in order:
// window, price, overlap. existing must hold the other promotions of the same
// game; exclude names the promotion being edited (uuid.Nil for new ones).
func CheckCandidate(
	game *domain.Game,
	price decimal.Decimal,
	w Window,
	existing []*domain.Promotion,
	exclude uuid.UUID,
) error {
	if err := CheckWindow(w); err != nil {
		return err
	}
	if err := CheckPrice(game, price); err != nil {
		return err
	}
	if conflict := FindOverlap(w, existing, exclude); conflict != nil {
		return fmt.Errorf("%w: conflicts with promotion %s", ErrOverlappingPromotion, conflict.ID)
	}
	return nil
}

// Quote is the price a buyer sees for a game at a given instant.
type Quote struct {
	GameID    uuid.UUID
	BasePrice decimal.Decimal
	Price     decimal.Decimal
	// Promotion is the promotion that set Price, nil when the base price applies.
	Promotion *domain.Promotion
}

// Discounted reports whether a promotion set the quoted price.
func (q Quote) Discounted() bool {
	return q.Promotion != nil
}

// Resolve computes the effective price of game at now. Among promotions whose
// window contains now, the one ending first wins; ties go to the lowest
// promotion ID in byte order. With no candidate the base price applies.
// Promotions of other games are ignored.
func Resolve(game *domain.Game, promotions []*domain.Promotion, now time.Time) (Quote, error) {
	if game == nil {
		return Quote{}, ErrNilGame
	}

	q := Quote{
		GameID:    game.ID,
		BasePrice: game.Price,
		Price:     game.Price,
	}

	var best *domain.Promotion
	for _, p := range promotions {
		if p == nil || p.GameID != game.ID || !p.ActiveAt(now) {
			continue
		}
		if best == nil || precedes(p, best) {
			best = p
		}
	}

	if best != nil {
		q.Price = best.Price
		q.Promotion = best
	}
	return q, nil
}

func precedes(a, b *domain.Promotion) bool {
	if !a.EndDate.Equal(b.EndDate) {
		return a.EndDate.Before(b.EndDate)
	}
	return bytes.Compare(a.ID[:], b.ID[:]) < 0
}
