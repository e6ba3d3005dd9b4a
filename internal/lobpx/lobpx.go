// Package lobpx supplies the decimal price/quantity/timestamp primitives
// shared by the book and stream packages.
package lobpx

import (
	"github.com/shopspring/decimal"
)

// TS is a nanosecond timestamp, matching books.h's tv_t.
type TS uint64

// NATV is the "not a timestamp" sentinel, books.h's NATV.
const NATV TS = 1<<64 - 1

const (
	NSECS = 1_000_000_000
	USECS = 1_000_000
	MSECS = 1_000
)

// Price wraps decimal.Decimal with a NaN flag: shopspring/decimal has no
// native NaN, but an L1 quote needs one to mean "clear this side".
type Price struct {
	Val decimal.Decimal
	NaN bool
}

// PriceFrom wraps a concrete decimal as a non-NaN price.
func PriceFrom(d decimal.Decimal) Price {
	return Price{Val: d}
}

// NaNPrice is the "clear this side" sentinel price.
var NaNPrice = Price{NaN: true}

// IsNaN reports whether p is the clear-side sentinel.
func (p Price) IsNaN() bool {
	return p.NaN
}

// Quantize rounds x to the decimal exponent of tickDonor, e.g. a donor of
// 0.01 rounds x to two fractional digits.
func Quantize(x, tickDonor decimal.Decimal) decimal.Decimal {
	return x.Round(-tickDonor.Exponent())
}

// SaturateNonNeg clamps d to zero if it is negative.
func SaturateNonNeg(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
