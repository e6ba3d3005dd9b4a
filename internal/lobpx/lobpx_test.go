package lobpx

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestQuantizeRoundsToTickExponent(t *testing.T) {
	tick := decimal.RequireFromString("0.01")
	x := decimal.RequireFromString("199.4567")

	got := Quantize(x, tick)

	require.True(t, decimal.RequireFromString("199.46").Equal(got))
}

func TestQuantizeCoarserTick(t *testing.T) {
	tick := decimal.RequireFromString("5") // exponent 0
	x := decimal.RequireFromString("103.2")

	got := Quantize(x, tick)

	require.True(t, decimal.RequireFromString("103").Equal(got))
}

func TestSaturateNonNegClampsNegative(t *testing.T) {
	got := SaturateNonNeg(decimal.RequireFromString("-5"))
	require.True(t, got.IsZero())
}

func TestSaturateNonNegLeavesPositive(t *testing.T) {
	pos := decimal.RequireFromString("3.5")
	got := SaturateNonNeg(pos)
	require.True(t, pos.Equal(got))
}

func TestNaNPriceIsNaN(t *testing.T) {
	require.True(t, NaNPrice.IsNaN())
	require.False(t, PriceFrom(decimal.Zero).IsNaN())
}
