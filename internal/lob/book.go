package lob

import (
	"github.com/shopspring/decimal"

	"book2book/internal/lobpx"
	"book2book/internal/pricemap"
)

// Book holds the two sides of a single instrument's order book.
type Book struct {
	ask *pricemap.Map
	bid *pricemap.Map
}

// New constructs an empty Book.
func New() *Book {
	return &Book{
		ask: pricemap.New(false),
		bid: pricemap.New(true),
	}
}

func (b *Book) mapFor(s Side) *pricemap.Map {
	if s == SideBid {
		return b.bid
	}
	return b.ask
}

// Apply applies q to the book and returns the pre-image quote (the
// state at q's price/side before the update), any levels zeroed as a
// side effect (L1 unwind, CLEAR, DELETE — used by per-level emitters to
// synthesize the intermediate quotes they must report; DELETE also lists
// its exact-match level, which is reduced by q.Qty rather than zeroed),
// each with its quantity before the update, and
// whether q was a valid, applied update at all.
func (b *Book) Apply(q Quote) (preimage Quote, unwound []Unwound, ok bool) {
	switch q.Side {
	case SideClear:
		unwound = b.snapshotNonZero()
		b.Clear()
		return Quote{}, unwound, true
	case SideDelete:
		return b.applyDelete(q)
	case SideAsk, SideBid:
		switch q.Flav {
		case Lvl3:
			pre, ok := b.applyLvl3(q)
			return pre, nil, ok
		case Lvl2:
			pre, ok := b.applyLvl2(q)
			return pre, nil, ok
		case Lvl1:
			return b.applyLvl1(q)
		default:
			return Quote{}, nil, false
		}
	default:
		return Quote{}, nil, false
	}
}

func (b *Book) applyLvl3(q Quote) (Quote, bool) {
	m := b.mapFor(q.Side)
	cell, _ := m.Get(q.Price.Val)
	preimage := Quote{Side: q.Side, Flav: Lvl3, Price: q.Price, Qty: cell.Qty, Ts: lobpx.TS(cell.Ts)}
	newQty := lobpx.SaturateNonNeg(cell.Qty.Add(q.Qty))
	m.Put(q.Price.Val, cellOf(newQty, q.Ts))
	return preimage, true
}

func (b *Book) applyLvl2(q Quote) (Quote, bool) {
	m := b.mapFor(q.Side)
	cell, _ := m.Get(q.Price.Val)
	preimage := Quote{Side: q.Side, Flav: Lvl2, Price: q.Price, Qty: cell.Qty, Ts: lobpx.TS(cell.Ts)}
	m.Put(q.Price.Val, cellOf(lobpx.SaturateNonNeg(q.Qty), q.Ts))
	return preimage, true
}

func (b *Book) applyLvl1(q Quote) (preimage Quote, unwound []Unwound, ok bool) {
	if q.Qty.IsNegative() {
		return Quote{}, nil, false
	}
	m := b.mapFor(q.Side)

	if q.Price.IsNaN() {
		unwound = b.zeroAllNonZero(m, q.Side, q.Ts)
		return Quote{}, unwound, true
	}

	cell, _ := m.Get(q.Price.Val)
	preimage = Quote{Side: q.Side, Flav: Lvl1, Price: q.Price, Qty: cell.Qty, Ts: lobpx.TS(cell.Ts)}
	m.Put(q.Price.Val, cellOf(q.Qty, q.Ts))

	var toZero []decimal.Decimal
	m.Ascend(func(p decimal.Decimal, c pricemap.Cell) bool {
		if !p.Equal(q.Price.Val) && c.Qty.IsPositive() {
			unwound = append(unwound, Unwound{Side: q.Side, Price: p, Qty: c.Qty})
			toZero = append(toZero, p)
		}
		return true
	})
	for _, p := range toZero {
		m.Put(p, cellOf(decimal.Zero, q.Ts))
	}
	return preimage, unwound, true
}

func (b *Book) zeroAllNonZero(m *pricemap.Map, side Side, ts lobpx.TS) []Unwound {
	var levels []Unwound
	var prices []decimal.Decimal
	m.Ascend(func(p decimal.Decimal, c pricemap.Cell) bool {
		if c.Qty.IsPositive() {
			levels = append(levels, Unwound{Side: side, Price: p, Qty: c.Qty})
			prices = append(prices, p)
		}
		return true
	})
	for _, p := range prices {
		m.Put(p, cellOf(decimal.Zero, ts))
	}
	return levels
}

func (b *Book) snapshotNonZero() []Unwound {
	var levels []Unwound
	b.ask.Ascend(func(p decimal.Decimal, c pricemap.Cell) bool {
		if c.Qty.IsPositive() {
			levels = append(levels, Unwound{Side: SideAsk, Price: p, Qty: c.Qty})
		}
		return true
	})
	b.bid.Ascend(func(p decimal.Decimal, c pricemap.Cell) bool {
		if c.Qty.IsPositive() {
			levels = append(levels, Unwound{Side: SideBid, Price: p, Qty: c.Qty})
		}
		return true
	})
	return levels
}

// applyDelete implements the DELETE verb: a single reference price
// consumes resting liquidity at or better than it on BOTH sides at
// once — on ask, every level strictly below the price is zeroed and
// the exact-match level has q.Qty subtracted (saturating); symmetric on
// bid with "strictly above".
func (b *Book) applyDelete(q Quote) (preimage Quote, unwound []Unwound, ok bool) {
	if q.Price.IsNaN() {
		return Quote{}, nil, false
	}
	unwound = append(unwound, b.deleteSide(b.ask, SideAsk, q.Price.Val, q.Qty, q.Ts, true)...)
	unwound = append(unwound, b.deleteSide(b.bid, SideBid, q.Price.Val, q.Qty, q.Ts, false)...)
	return Quote{}, unwound, true
}

// deleteSide zeroes levels better than ref (below ref for ask, above ref
// for bid) and subtracts amt at the exact-match level, saturating at 0.
func (b *Book) deleteSide(m *pricemap.Map, side Side, ref decimal.Decimal, amt decimal.Decimal, ts lobpx.TS, isAsk bool) []Unwound {
	var levels []Unwound
	type touch struct {
		price decimal.Decimal
		qty   decimal.Decimal
	}
	var touches []touch
	m.Ascend(func(p decimal.Decimal, c pricemap.Cell) bool {
		if !c.Qty.IsPositive() {
			return true
		}
		better := (isAsk && p.LessThan(ref)) || (!isAsk && p.GreaterThan(ref))
		if better {
			touches = append(touches, touch{p, decimal.Zero})
			levels = append(levels, Unwound{Side: side, Price: p, Qty: c.Qty})
		} else if p.Equal(ref) {
			newQty := lobpx.SaturateNonNeg(c.Qty.Sub(amt))
			touches = append(touches, touch{p, newQty})
			levels = append(levels, Unwound{Side: side, Price: p, Qty: c.Qty})
		}
		return true
	})
	for _, t := range touches {
		m.Put(t.price, cellOf(t.qty, ts))
	}
	return levels
}

// Clear empties both sides entirely.
func (b *Book) Clear() {
	b.ask.Clear()
	b.bid.Clear()
}

// Expire zeroes every cell whose timestamp is at or before t.
func (b *Book) Expire(t lobpx.TS) {
	b.expireSide(b.ask, t)
	b.expireSide(b.bid, t)
}

func (b *Book) expireSide(m *pricemap.Map, t lobpx.TS) {
	var stale []decimal.Decimal
	m.Ascend(func(p decimal.Decimal, c pricemap.Cell) bool {
		if c.Qty.IsPositive() && lobpx.TS(c.Ts) <= t {
			stale = append(stale, p)
		}
		return true
	})
	for _, p := range stale {
		cell, _ := m.Get(p)
		m.Put(p, cellOf(decimal.Zero, lobpx.TS(cell.Ts)))
	}
}

// Top returns the best level on side s.
func (b *Book) Top(s Side) (Level, bool) {
	p, c, ok := b.mapFor(s).Top()
	if !ok {
		return Level{}, false
	}
	return Level{Price: p, Qty: c.Qty}, true
}

// TopN returns up to n best levels on side s.
func (b *Book) TopN(s Side, n int) []Level {
	raw := b.mapFor(s).TopN(n)
	out := make([]Level, len(raw))
	for i, r := range raw {
		out[i] = Level{Price: r.Price, Qty: r.Cell.Qty}
	}
	return out
}

// Levels returns every positive-quantity level on side s, in side order
// (ask ascending, bid descending) — an unbounded counterpart to TopN
// used for full-book snapshots.
func (b *Book) Levels(s Side) []Level {
	var out []Level
	b.mapFor(s).Ascend(func(p decimal.Decimal, c pricemap.Cell) bool {
		if c.Qty.IsPositive() {
			out = append(out, Level{Price: p, Qty: c.Qty})
		}
		return true
	})
	return out
}

// CTop returns the single VWAP level that accumulates at least q
// quantity, correcting the final contributing level's price for any
// overshoot past exactly q (spec's Δ-correction; the original C
// book_ctop omits this, but the spec text is authoritative here).
func (b *Book) CTop(s Side, q decimal.Decimal) (Level, bool) {
	levels, ok := b.consolidate(s, []decimal.Decimal{q}, false)
	if !ok || len(levels) == 0 {
		return Level{}, false
	}
	return levels[0], true
}

// CTopN returns up to n consolidated levels, level i reaching a
// cumulative quantity of exactly i*q.
func (b *Book) CTopN(s Side, q decimal.Decimal, n int) []Level {
	targets := make([]decimal.Decimal, n)
	acc := decimal.Zero
	for i := 0; i < n; i++ {
		acc = acc.Add(q)
		targets[i] = acc
	}
	levels, _ := b.consolidate(s, targets, false)
	return levels
}

// VTop is CTop's value-consolidated counterpart: accumulate by cash
// value (price*qty) instead of raw quantity.
func (b *Book) VTop(s Side, v decimal.Decimal) (Level, bool) {
	levels, ok := b.consolidate(s, []decimal.Decimal{v}, true)
	if !ok || len(levels) == 0 {
		return Level{}, false
	}
	return levels[0], true
}

// VTopN is CTopN's value-consolidated counterpart.
func (b *Book) VTopN(s Side, v decimal.Decimal, n int) []Level {
	targets := make([]decimal.Decimal, n)
	acc := decimal.Zero
	for i := 0; i < n; i++ {
		acc = acc.Add(v)
		targets[i] = acc
	}
	levels, _ := b.consolidate(s, targets, true)
	return levels
}

// consolidate accumulates levels in side order until each successive
// target is met. byValue selects value-consolidation (accumulate
// price*qty) over quantity-consolidation (accumulate qty). When a
// level's contribution overshoots its target, the overshoot is
// corrected out of that level's price contribution (Δ-correction) so
// the returned aggregate lands exactly on the target, not past it.
func (b *Book) consolidate(s Side, targets []decimal.Decimal, byValue bool) ([]Level, bool) {
	m := b.mapFor(s)
	out := make([]Level, 0, len(targets))

	var cash, qty decimal.Decimal
	var done bool
	ti := 0
	m.Ascend(func(p decimal.Decimal, c pricemap.Cell) bool {
		if done || ti >= len(targets) {
			return false
		}
		if !c.Qty.IsPositive() {
			return true
		}
		contribQty := c.Qty
		contribCash := p.Mul(c.Qty)

		for ti < len(targets) {
			target := targets[ti]
			var already decimal.Decimal
			if byValue {
				already = cash
			} else {
				already = qty
			}
			remaining := target.Sub(already)
			if remaining.Sign() <= 0 {
				ti++
				continue
			}

			var useQty, useCash decimal.Decimal
			var levelMeetsTarget bool
			if byValue {
				if contribCash.GreaterThanOrEqual(remaining) {
					// Δ-correction: only take the cash needed to hit
					// the target exactly, converting back to qty at
					// this level's price.
					useCash = remaining
					if p.IsZero() {
						useQty = decimal.Zero
					} else {
						useQty = remaining.Div(p)
					}
					levelMeetsTarget = true
				} else {
					useCash = contribCash
					useQty = contribQty
				}
			} else {
				if contribQty.GreaterThanOrEqual(remaining) {
					useQty = remaining
					useCash = remaining.Mul(p)
					levelMeetsTarget = true
				} else {
					useQty = contribQty
					useCash = contribCash
				}
			}

			cash = cash.Add(useCash)
			qty = qty.Add(useQty)
			contribQty = contribQty.Sub(useQty)
			contribCash = contribCash.Sub(useCash)

			if levelMeetsTarget {
				avgPx := decimal.Zero
				if qty.IsPositive() {
					avgPx = cash.Div(qty)
				}
				// Quantize to the last contributing cell's tick cohort
				// (spec's quantize_to_last_tick): the price rounds to
				// p's own decimal exponent, and the reported quantity
				// quantizes the value that defines this level — the
				// target itself for quantity-consolidation, the
				// accumulated quantity for value-consolidation.
				outQty := target
				if byValue {
					outQty = qty
				}
				out = append(out, Level{
					Price: lobpx.Quantize(avgPx, p),
					Qty:   lobpx.Quantize(outQty, p),
				})
				ti++
				if contribQty.IsZero() {
					break
				}
				continue
			}
			break
		}
		return true
	})

	if len(out) < len(targets) {
		return out, false
	}
	return out, true
}

// PDO computes a partial-fill-out aggregate on side s for quantity q,
// stopping at limitPrice (permissive in the direction of s: an ask PDO
// only accepts levels at or below limitPrice, a bid PDO only levels at
// or above it). limitPrice.NaN is treated as ±∞, i.e. no limit.
func (b *Book) PDO(s Side, q decimal.Decimal, limitPrice lobpx.Price) PDO {
	m := b.mapFor(s)
	var base, term decimal.Decimal
	var yngt, oldt lobpx.TS
	oldt = lobpx.NATV
	touched := false

	m.Ascend(func(p decimal.Decimal, c pricemap.Cell) bool {
		if base.GreaterThanOrEqual(q) {
			return false
		}
		if !c.Qty.IsPositive() {
			return true
		}
		if !limitPrice.IsNaN() {
			outOfRange := (s == SideAsk && p.GreaterThan(limitPrice.Val)) ||
				(s == SideBid && p.LessThan(limitPrice.Val))
			if outOfRange {
				return false
			}
		}

		remaining := q.Sub(base)
		use := c.Qty
		if use.GreaterThan(remaining) {
			use = remaining
		}
		base = base.Add(use)
		term = term.Add(use.Mul(p))

		ts := lobpx.TS(c.Ts)
		if !touched || ts > yngt {
			yngt = ts
		}
		if !touched || ts < oldt {
			oldt = ts
		}
		touched = true
		return true
	})

	return PDO{Base: base, Term: term, Yngt: yngt, Oldt: oldt, Filled: base.GreaterThanOrEqual(q)}
}
