// Package lob implements the order book: two ordered price maps (ask
// ascending, bid descending), the quote update dispatch table, and the
// top/consolidated/value-consolidated/partial-fill-out query operators.
package lob

import (
	"github.com/shopspring/decimal"

	"book2book/internal/lobpx"
	"book2book/internal/pricemap"
)

// Side names both storage sides (Ask, Bid) and the verb sides (Clear,
// Delete) a Quote can carry.
type Side uint8

const (
	SideUnknown Side = iota
	SideAsk
	SideBid
	SideClear
	SideDelete
)

// Char returns the A/B wire character for a storage side, matching the
// original's side^'@' trick (ASK->A, BID->B).
func (s Side) Char() byte {
	switch s {
	case SideAsk:
		return 'A'
	case SideBid:
		return 'B'
	default:
		return '?'
	}
}

// LevelFlavour selects how a Quote's quantity is interpreted.
type LevelFlavour uint8

const (
	// LvlInvalid marks a quote with no recognised flavour.
	LvlInvalid LevelFlavour = iota
	// Lvl1 is a top-of-book quote: setting it implies every
	// strictly-better resting level on that side is removed.
	Lvl1
	// Lvl2 is an absolute "this level now holds exactly Q" quote.
	Lvl2
	// Lvl3 is a signed delta applied to whatever quantity already
	// rests at that level, saturating at zero.
	Lvl3
)

// Quote is one line's worth of book update or query result.
type Quote struct {
	Side  Side
	Flav  LevelFlavour
	Price lobpx.Price
	Qty   decimal.Decimal
	Ts    lobpx.TS
}

// PDO is the partial-fill-out aggregate returned by Book.PDO.
type PDO struct {
	Base   decimal.Decimal // aggregate quantity filled
	Term   decimal.Decimal // aggregate cash value (price*qty sum)
	Yngt   lobpx.TS        // youngest timestamp touched
	Oldt   lobpx.TS        // oldest timestamp touched
	Filled bool
}

// Level is a single (price, qty) pair as returned by Top/TopN/CTop/VTop.
type Level struct {
	Price decimal.Decimal
	Qty   decimal.Decimal
}

// Unwound is one level zeroed as a side effect of an L1 top-set or a
// CLEAR/DELETE verb (or, for DELETE's exact-match level, reduced), with
// its quantity before the update — Side-tagged so per-level emitters
// (prq2/prq3) can report the correct book for each synthesized quote.
type Unwound struct {
	Side Side
	Price decimal.Decimal
	Qty   decimal.Decimal
}

func cellOf(qty decimal.Decimal, ts lobpx.TS) pricemap.Cell {
	return pricemap.Cell{Qty: qty, Ts: uint64(ts)}
}
