package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Game is a catalog item that users can buy and own.
type Game struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Description *string         `json:"description,omitempty"`
	Developer   *string         `json:"developer,omitempty"`
	ReleaseDate *time.Time      `json:"release_date,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Active      bool            `json:"active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   *time.Time      `json:"updated_at,omitempty"`
}

// GameDetails carries the mutable attributes of a game.
type GameDetails struct {
	Name        string
	Description *string
	Developer   *string
	ReleaseDate *time.Time
	Price       decimal.Decimal
}

// NewGame creates an active game from the given details.
func NewGame(details GameDetails) (*Game, error) {
	g := &Game{
		ID:        uuid.New(),
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	g.apply(details)

	if err := g.Validate(); err != nil {
		return nil, err
	}

	return g, nil
}

// Validate checks the game invariants.
func (g *Game) Validate() error {
	if g.ID == uuid.Nil {
		return NewValidationError("id", "cannot be empty", ErrInvalidID)
	}
	if err := validateName(g.Name); err != nil {
		return err
	}
	if err := ValidatePrice(g.Price); err != nil {
		return err
	}
	return nil
}

// Update replaces the mutable attributes and re-validates the game.
// On failure the game is left unchanged.
func (g *Game) Update(details GameDetails) error {
	next := *g
	next.apply(details)
	if err := next.Validate(); err != nil {
		return err
	}
	*g = next
	g.touch()
	return nil
}

// Activate marks the game as available in the catalog.
func (g *Game) Activate() {
	g.Active = true
	g.touch()
}

// Deactivate hides the game from the catalog.
func (g *Game) Deactivate() {
	g.Active = false
	g.touch()
}

func (g *Game) apply(details GameDetails) {
	g.Name = strings.TrimSpace(details.Name)
	g.Description = details.Description
	g.Developer = details.Developer
	if details.ReleaseDate != nil {
		d := details.ReleaseDate.UTC()
		g.ReleaseDate = &d
	} else {
		g.ReleaseDate = nil
	}
	g.Price = details.Price
}

func (g *Game) touch() {
	now := time.Now().UTC()
	g.UpdatedAt = &now
}
