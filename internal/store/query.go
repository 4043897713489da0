package store

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/storefront-api/internal/domain"
	"github.com/shopspring/decimal"
)

// Page selects one page of a listing. Number is 1-based.
type Page struct {
	Number int
	Size   int
}

// MaxPageSize bounds the number of rows a single listing query may return.
const MaxPageSize = 100

// Validate checks that both page number and size are positive and the size
// is within MaxPageSize.
func (p Page) Validate() error {
	if p.Number < 1 {
		return domain.NewValidationError("page", "must be at least 1", nil)
	}
	if p.Size < 1 {
		return domain.NewValidationError("page_size", "must be at least 1", nil)
	}
	if p.Size > MaxPageSize {
		return domain.NewValidationError("page_size", fmt.Sprintf("must be at most %d", MaxPageSize), nil)
	}
	return nil
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// PageResult is a page of items plus the totals needed to render pagination.
type PageResult[T any] struct {
	Items      []T
	Page       int
	PageSize   int
	Total      int
	TotalPages int
}

// NewPageResult builds a PageResult, computing TotalPages as ceil(total/size).
func NewPageResult[T any](items []T, page Page, total int) PageResult[T] {
	totalPages := 0
	if page.Size > 0 {
		totalPages = (total + page.Size - 1) / page.Size
	}
	if items == nil {
		items = []T{}
	}
	return PageResult[T]{
		Items:      items,
		Page:       page.Number,
		PageSize:   page.Size,
		Total:      total,
		TotalPages: totalPages,
	}
}

// GameFilter narrows a game listing. Empty fields do not filter.
type GameFilter struct {
	// Name matches games whose name contains it, case-insensitively.
	Name string
	// OnlyActive hides deactivated games.
	OnlyActive bool
}

// PromotionFilter narrows a promotion listing. Nil bounds do not filter.
type PromotionFilter struct {
	GameID   *uuid.UUID
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
}

// Validate rejects negative bounds and an inverted range.
func (f PromotionFilter) Validate() error {
	if f.MinPrice != nil && f.MinPrice.IsNegative() {
		return domain.NewValidationError("min_price", "cannot be negative", domain.ErrInvalidPrice)
	}
	if f.MaxPrice != nil && f.MaxPrice.IsNegative() {
		return domain.NewValidationError("max_price", "cannot be negative", domain.ErrInvalidPrice)
	}
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		return domain.NewValidationError("min_price", "cannot exceed max_price", nil)
	}
	return nil
}

// UserFilter narrows a user listing. Term matches name or email, case-insensitively.
type UserFilter struct {
	Term string
}
