package core

import "github.com/shopspring/decimal"

// Quantize rounds value down to the precision implied by increment, e.g.
// increment 0.01 keeps two fractional digits. Rounding down (truncation)
// matches what the exchange accepts: excess precision is rejected, and
// rounding up could spend more than the caller asked for. Quantizing an
// already quantized value is a no-op.
func Quantize(value, increment decimal.Decimal) decimal.Decimal {
	if increment.Cmp(decimal.Zero) <= 0 {
		return value
	}
	return value.Div(increment).Floor().Mul(increment)
}

// RealizedPrice computes the effective market price of a terminal order,
// executedValue/filledSize quantized to the pair's quote increment. A zero
// filled size (e.g. an immediately rejected order) yields ErrNoFill instead
// of a division fault.
func RealizedPrice(executedValue, filledSize, quoteIncrement decimal.Decimal) (decimal.Decimal, error) {
	if filledSize.Cmp(decimal.Zero) <= 0 {
		return decimal.Zero, ErrNoFill
	}
	return Quantize(executedValue.Div(filledSize), quoteIncrement), nil
}
