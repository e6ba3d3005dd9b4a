package pricemap

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestAscendingTopIsLowestPrice(t *testing.T) {
	m := New(false)
	m.Put(d("101"), Cell{Qty: d("10")})
	m.Put(d("100"), Cell{Qty: d("5")})
	m.Put(d("102"), Cell{Qty: d("7")})

	p, c, ok := m.Top()
	require.True(t, ok)
	require.True(t, d("100").Equal(p))
	require.True(t, d("5").Equal(c.Qty))
}

func TestDescendingTopIsHighestPrice(t *testing.T) {
	m := New(true)
	m.Put(d("101"), Cell{Qty: d("10")})
	m.Put(d("100"), Cell{Qty: d("5")})
	m.Put(d("102"), Cell{Qty: d("7")})

	p, _, ok := m.Top()
	require.True(t, ok)
	require.True(t, d("102").Equal(p))
}

func TestTopSkipsZeroQuantityLevels(t *testing.T) {
	m := New(false)
	m.Put(d("100"), Cell{Qty: d("0")})
	m.Put(d("101"), Cell{Qty: d("5")})

	p, _, ok := m.Top()
	require.True(t, ok)
	require.True(t, d("101").Equal(p))
}

func TestAscendSeesZeroLevels(t *testing.T) {
	m := New(false)
	m.Put(d("100"), Cell{Qty: d("0")})
	m.Put(d("101"), Cell{Qty: d("5")})

	var seen int
	m.Ascend(func(decimal.Decimal, Cell) bool {
		seen++
		return true
	})
	require.Equal(t, 2, seen)
}

func TestRemoveAndLen(t *testing.T) {
	m := New(false)
	m.Put(d("100"), Cell{Qty: d("5")})
	require.Equal(t, 1, m.Len())

	_, ok := m.Remove(d("100"))
	require.True(t, ok)
	require.Equal(t, 0, m.Len())
}

func TestTopN(t *testing.T) {
	m := New(false)
	m.Put(d("103"), Cell{Qty: d("1")})
	m.Put(d("101"), Cell{Qty: d("1")})
	m.Put(d("102"), Cell{Qty: d("1")})

	levels := m.TopN(2)
	require.Len(t, levels, 2)
	require.True(t, d("101").Equal(levels[0].Price))
	require.True(t, d("102").Equal(levels[1].Price))
}
