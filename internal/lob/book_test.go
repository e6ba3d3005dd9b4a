package lob

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"book2book/internal/lobpx"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func px(s string) lobpx.Price {
	return lobpx.PriceFrom(d(s))
}

func TestL2RoundTrip(t *testing.T) {
	b := New()

	_, _, ok := b.Apply(Quote{Side: SideAsk, Flav: Lvl2, Price: px("199.0"), Qty: d("50"), Ts: 1})
	require.True(t, ok)
	_, _, ok = b.Apply(Quote{Side: SideAsk, Flav: Lvl2, Price: px("199.0"), Qty: d("50"), Ts: 1})
	require.True(t, ok)

	top, ok := b.Top(SideAsk)
	require.True(t, ok)
	require.True(t, d("199.0").Equal(top.Price))
	require.True(t, d("50").Equal(top.Qty))
}

func TestL3SaturatesAtZero(t *testing.T) {
	b := New()
	_, _, ok := b.Apply(Quote{Side: SideBid, Flav: Lvl3, Price: px("100"), Qty: d("5"), Ts: 1})
	require.True(t, ok)

	pre, _, ok := b.Apply(Quote{Side: SideBid, Flav: Lvl3, Price: px("100"), Qty: d("-20"), Ts: 2})
	require.True(t, ok)
	require.True(t, d("5").Equal(pre.Qty))

	_, ok = b.Top(SideBid)
	require.False(t, ok, "a level saturated to zero is not a top")
	cell, _ := b.bid.Get(d("100"))
	require.True(t, cell.Qty.IsZero())
}

func TestL1UnwindsStaleTop(t *testing.T) {
	b := New()
	b.Apply(Quote{Side: SideAsk, Flav: Lvl2, Price: px("198.0"), Qty: d("30"), Ts: 1})
	b.Apply(Quote{Side: SideAsk, Flav: Lvl2, Price: px("199.0"), Qty: d("40"), Ts: 1})

	_, unwound, ok := b.Apply(Quote{Side: SideAsk, Flav: Lvl1, Price: px("199.0"), Qty: d("50"), Ts: 2})
	require.True(t, ok)
	require.Len(t, unwound, 1)
	require.True(t, d("198.0").Equal(unwound[0].Price))
	require.True(t, d("30").Equal(unwound[0].Qty))

	top, _ := b.Top(SideAsk)
	require.True(t, d("199.0").Equal(top.Price))
	require.True(t, d("50").Equal(top.Qty))
}

func TestL1NegativeQtyInvalid(t *testing.T) {
	b := New()
	_, _, ok := b.Apply(Quote{Side: SideAsk, Flav: Lvl1, Price: px("100"), Qty: d("-1"), Ts: 1})
	require.False(t, ok)
}

func TestL1NaNPriceClearsSide(t *testing.T) {
	b := New()
	b.Apply(Quote{Side: SideBid, Flav: Lvl2, Price: px("100"), Qty: d("10"), Ts: 1})

	_, unwound, ok := b.Apply(Quote{Side: SideBid, Flav: Lvl1, Price: lobpx.NaNPrice, Qty: d("0"), Ts: 2})
	require.True(t, ok)
	require.Len(t, unwound, 1)

	_, hasTop := b.Top(SideBid)
	require.False(t, hasTop)
}

func TestClearEmptiesBothSides(t *testing.T) {
	b := New()
	b.Apply(Quote{Side: SideAsk, Flav: Lvl2, Price: px("198.0"), Qty: d("30"), Ts: 1})
	b.Apply(Quote{Side: SideBid, Flav: Lvl2, Price: px("197.0"), Qty: d("30"), Ts: 1})

	_, unwound, ok := b.Apply(Quote{Side: SideClear})
	require.True(t, ok)
	require.Len(t, unwound, 2)

	_, hasAsk := b.Top(SideAsk)
	_, hasBid := b.Top(SideBid)
	require.False(t, hasAsk)
	require.False(t, hasBid)
}

func TestDeleteConsumesBothSidesFromReferencePrice(t *testing.T) {
	b := New()
	b.Apply(Quote{Side: SideAsk, Flav: Lvl2, Price: px("198.0"), Qty: d("30"), Ts: 1})
	b.Apply(Quote{Side: SideAsk, Flav: Lvl2, Price: px("199.0"), Qty: d("40"), Ts: 1})
	b.Apply(Quote{Side: SideBid, Flav: Lvl2, Price: px("197.0"), Qty: d("20"), Ts: 1})
	b.Apply(Quote{Side: SideBid, Flav: Lvl2, Price: px("196.0"), Qty: d("25"), Ts: 1})

	_, _, ok := b.Apply(Quote{Side: SideDelete, Price: px("198.0"), Qty: d("10"), Ts: 2})
	require.True(t, ok)

	askTop, _ := b.Top(SideAsk)
	require.True(t, d("198.0").Equal(askTop.Price))
	require.True(t, d("20").Equal(askTop.Qty))

	bidTop, hasBid := b.Top(SideBid)
	require.True(t, hasBid)
	require.True(t, d("197.0").Equal(bidTop.Price))
	require.True(t, d("20").Equal(bidTop.Qty))
}

func TestCTopConsolidatesAtExactBoundary(t *testing.T) {
	b := New()
	b.Apply(Quote{Side: SideAsk, Flav: Lvl2, Price: px("199.0"), Qty: d("200"), Ts: 1})
	b.Apply(Quote{Side: SideAsk, Flav: Lvl2, Price: px("200.0"), Qty: d("200"), Ts: 1})

	lvl, ok := b.CTop(SideAsk, d("400"))
	require.True(t, ok)
	require.True(t, d("400").Equal(lvl.Qty))
	require.True(t, d("199.5").Equal(lvl.Price))
}

func TestCTopCorrectsOvershootMidLevel(t *testing.T) {
	b := New()
	b.Apply(Quote{Side: SideAsk, Flav: Lvl2, Price: px("199.0"), Qty: d("200"), Ts: 1})
	b.Apply(Quote{Side: SideAsk, Flav: Lvl2, Price: px("200.0"), Qty: d("200"), Ts: 1})

	// Target of 300 only partially consumes the second (overshooting)
	// level; the returned aggregate must land exactly on 300, not 400.
	lvl, ok := b.CTop(SideAsk, d("300"))
	require.True(t, ok)
	require.True(t, d("300").Equal(lvl.Qty))

	top, _ := b.Top(SideAsk)
	require.True(t, d("199.0").Equal(top.Price))
	require.True(t, d("200").Equal(top.Qty), "CTop is non-mutating")
}

func TestPDOWithLimitPrice(t *testing.T) {
	b := New()
	b.Apply(Quote{Side: SideAsk, Flav: Lvl2, Price: px("199.0"), Qty: d("200"), Ts: 1})
	b.Apply(Quote{Side: SideAsk, Flav: Lvl2, Price: px("200.0"), Qty: d("200"), Ts: 2})
	b.Apply(Quote{Side: SideAsk, Flav: Lvl2, Price: px("205.0"), Qty: d("200"), Ts: 3})
	b.Apply(Quote{Side: SideAsk, Flav: Lvl2, Price: px("210.0"), Qty: d("200"), Ts: 4})

	res := b.PDO(SideAsk, d("500"), px("204"))
	require.False(t, res.Filled)
	require.True(t, d("400").Equal(res.Base))
	require.True(t, d("79800").Equal(res.Term))
}

func TestPDOStopsAtLimitPriceWithoutFilling(t *testing.T) {
	b := New()
	b.Apply(Quote{Side: SideAsk, Flav: Lvl2, Price: px("199.0"), Qty: d("100"), Ts: 1})

	res := b.PDO(SideAsk, d("500"), px("199.0"))
	require.False(t, res.Filled)
	require.True(t, d("100").Equal(res.Base))
}
