package domain

import "github.com/shopspring/decimal"

// PriceDecimals is the number of decimal places prices are stored with.
const PriceDecimals = 2

// ValidatePrice checks that price is not negative and carries no more
// precision than the store keeps. Trailing zeros beyond PriceDecimals are
// accepted.
func ValidatePrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return ErrInvalidPrice
	}
	if !price.Equal(price.Truncate(PriceDecimals)) {
		return ErrInvalidPriceScale
	}
	return nil
}
