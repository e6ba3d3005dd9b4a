// Package pricemap implements the OrderedPriceMap component: a
// side-ordered map from price to (quantity, timestamp) cell. The
// structural choice of balanced tree is not observable from outside
// this package, so it is backed by github.com/google/btree's generic
// B-tree rather than a hand-rolled structure.
package pricemap

import (
	"github.com/google/btree"
	"github.com/shopspring/decimal"
)

// degree mirrors the original B+tree's fixed fanout of roughly 64 keys
// per node; google/btree's degree d yields nodes of d-1..2d-1 items,
// i.e. up to 63 at degree 32.
const degree = 32

// Cell is the value stored at a price level: a resting quantity and the
// timestamp it was last touched.
type Cell struct {
	Qty decimal.Decimal
	Ts  uint64
}

// IsZero reports whether the cell carries no resting quantity.
func (c Cell) IsZero() bool {
	return c.Qty.IsZero()
}

type entry struct {
	price decimal.Decimal
	cell  Cell
}

// Map is an ordered price -> Cell map, ascending or descending per side.
type Map struct {
	t        *btree.BTreeG[entry]
	desc     bool
	len      int
}

// New constructs an empty Map. desc selects descending iteration order
// (bid side); ascending (ask side) otherwise.
func New(desc bool) *Map {
	less := func(a, b entry) bool {
		if desc {
			return a.price.GreaterThan(b.price)
		}
		return a.price.LessThan(b.price)
	}
	return &Map{t: btree.NewG[entry](degree, less), desc: desc}
}

// Get returns the cell at price and whether it is present.
func (m *Map) Get(price decimal.Decimal) (Cell, bool) {
	e, ok := m.t.Get(entry{price: price})
	return e.cell, ok
}

// Put replaces or inserts the cell at price, returning the previous cell
// (zero value if none existed) and whether one existed.
func (m *Map) Put(price decimal.Decimal, cell Cell) (Cell, bool) {
	prev, had := m.t.ReplaceOrInsert(entry{price: price, cell: cell})
	if !had {
		m.len++
	}
	return prev.cell, had
}

// Remove deletes the price level, returning the removed cell if present.
func (m *Map) Remove(price decimal.Decimal) (Cell, bool) {
	e, ok := m.t.Delete(entry{price: price})
	if ok {
		m.len--
	}
	return e.cell, ok
}

// Clear empties the map.
func (m *Map) Clear() {
	m.t.Clear(false)
	m.len = 0
}

// Len returns the number of distinct price levels, including zero-qty ones.
func (m *Map) Len() int {
	return m.len
}

// Top returns the first level in iteration order whose quantity is
// strictly positive, skipping zero-quantity levels left behind by prior
// unwinds.
func (m *Map) Top() (price decimal.Decimal, cell Cell, ok bool) {
	var found entry
	m.ascendRaw(func(e entry) bool {
		if e.cell.Qty.IsPositive() {
			found = e
			ok = true
			return false
		}
		return true
	})
	return found.price, found.cell, ok
}

// TopN returns up to n levels with strictly positive quantity, in
// iteration order.
func (m *Map) TopN(n int) []struct {
	Price decimal.Decimal
	Cell  Cell
} {
	out := make([]struct {
		Price decimal.Decimal
		Cell  Cell
	}, 0, n)
	m.ascendRaw(func(e entry) bool {
		if len(out) >= n {
			return false
		}
		if e.cell.Qty.IsPositive() {
			out = append(out, struct {
				Price decimal.Decimal
				Cell  Cell
			}{e.price, e.cell})
		}
		return true
	})
	return out
}

// Ascend walks every physically present level (including zero-qty ones)
// in iteration order, calling fn until it returns false or the map is
// exhausted. Per-level emitters need this raw view, not the Top/TopN
// filtered view.
func (m *Map) Ascend(fn func(price decimal.Decimal, cell Cell) bool) {
	m.ascendRaw(func(e entry) bool {
		return fn(e.price, e.cell)
	})
}

func (m *Map) ascendRaw(fn func(entry) bool) {
	m.t.Ascend(func(e entry) bool {
		return fn(e)
	})
}
