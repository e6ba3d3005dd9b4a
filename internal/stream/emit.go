package stream

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"

	"book2book/internal/lob"
)

// alignedView is the cached state behind the "only emit on change"
// dedupe rule for prq1 (design note: cache lives on the
// BookHandle, not in a package global).
type alignedView struct {
	bidPx, askPx decimal.Decimal
	bidQ, askQ   decimal.Decimal
}

func (a alignedView) equal(b alignedView) bool {
	return a.bidPx.Equal(b.bidPx) && a.askPx.Equal(b.askPx) &&
		a.bidQ.Equal(b.bidQ) && a.askQ.Equal(b.askQ)
}

// alignedPx is prqc/prqv's dedupe cache: the original only compares the
// two sides' prices ("bc.p == xb->bid && ac.p == xb->ask"), not quantity.
type alignedPx struct {
	bidPx, askPx decimal.Decimal
}

func (a alignedPx) equal(b alignedPx) bool {
	return a.bidPx.Equal(b.bidPx) && a.askPx.Equal(b.askPx)
}

// alignedPxN is prqcn/prqvn's dedupe cache: the price arrays for both
// sides (memcmp(b, xb->bids) && memcmp(a, xb->asks)), again ignoring
// quantity.
type alignedPxN struct {
	bidPx, askPx []decimal.Decimal
}

func pricesEqual(a, b []decimal.Decimal) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func sideChar(s lob.Side) byte { return s.Char() }

// alignedLevelCount implements the original's level-count formula:
// "n = ntop<bn && ntop<an ? ntop : bn<an ? an : bn".
func alignedLevelCount(ntop, bn, an int) int {
	if ntop < bn && ntop < an {
		return ntop
	}
	if bn < an {
		return an
	}
	return bn
}

// EmitPRQ1 writes the aligned top-of-book line ("c1 bid ask bsz asz")
// only when it differs from the handle's cached previous view.
func EmitPRQ1(w io.Writer, prefix string, h *BookHandle) {
	bid, _ := h.Book.Top(lob.SideBid)
	ask, _ := h.Book.Top(lob.SideAsk)
	cur := alignedView{bidPx: bid.Price, askPx: ask.Price, bidQ: bid.Qty, askQ: ask.Qty}
	if h.haveAligned && cur.equal(h.prevAligned) {
		return
	}
	h.prevAligned = cur
	h.haveAligned = true
	fmt.Fprintf(w, "%sc1\t%s\t%s\t%s\t%s\n", prefix, dec(bid.Price), dec(ask.Price), dec(bid.Qty), dec(ask.Qty))
}

// EmitPRQ2 writes a raw L2 diff line: "<X>2\tprice\tqty".
func EmitPRQ2(w io.Writer, prefix string, side lob.Side, price, qty decimal.Decimal) {
	fmt.Fprintf(w, "%s%c2\t%s\t%s\n", prefix, sideChar(side), dec(price), dec(qty))
}

// EmitPRQ3 writes an L3 delta line: "<X>3\tprice\tdelta" where delta is
// new quantity minus old quantity.
func EmitPRQ3(w io.Writer, prefix string, side lob.Side, price, oldQty, newQty decimal.Decimal) {
	delta := newQty.Sub(oldQty)
	fmt.Fprintf(w, "%s%c3\t%s\t%s\n", prefix, sideChar(side), dec(price), dec(delta))
}

// EmitPRQN writes the aligned top-N view: one "c<i>" row per level,
// level count = min(n, max(bidCount, askCount)) matching the original's
// "n = ntop<bn && ntop<an ? ntop : bn<an ? an : bn" formula.
func EmitPRQN(w io.Writer, prefix string, h *BookHandle, ntop int) {
	bids := h.Book.TopN(lob.SideBid, ntop)
	asks := h.Book.TopN(lob.SideAsk, ntop)
	bn, an := len(bids), len(asks)
	n := alignedLevelCount(ntop, bn, an)

	cur := make([]lob.Level, 0, 2*n)
	cur = append(cur, bids...)
	cur = append(cur, asks...)
	if h.prevTopN != nil && levelsEqual(cur, h.prevTopN) {
		return
	}
	h.prevTopN = cur

	for i := 0; i < n; i++ {
		var bp, bq, ap, aq string
		if i < bn {
			bp, bq = dec(bids[i].Price), dec(bids[i].Qty)
		}
		if i < an {
			ap, aq = dec(asks[i].Price), dec(asks[i].Qty)
		}
		fmt.Fprintf(w, "%sc%d\t%s\t%s\t%s\t%s\n", prefix, i+1, bp, ap, bq, aq)
	}
}

func levelsEqual(a, b []lob.Level) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Price.Equal(b[i].Price) || !a[i].Qty.Equal(b[i].Qty) {
			return false
		}
	}
	return true
}

// EmitPRQC writes the aligned consolidated-quantity top: one "c1" line
// with both sides' consolidated level, computed and deduped together —
// grounded in book2book.c's prqc, which computes bc/ac as a pair and
// suppresses the line when neither side's price moved.
func EmitPRQC(w io.Writer, prefix string, h *BookHandle, q decimal.Decimal) {
	bc, _ := h.Book.CTop(lob.SideBid, q)
	ac, _ := h.Book.CTop(lob.SideAsk, q)
	emitConsolAligned(w, prefix, h, bc, ac)
}

// EmitPRQV is EmitPRQC's value-consolidated counterpart, grounded in
// book2book.c's prqv.
func EmitPRQV(w io.Writer, prefix string, h *BookHandle, v decimal.Decimal) {
	bc, _ := h.Book.VTop(lob.SideBid, v)
	ac, _ := h.Book.VTop(lob.SideAsk, v)
	emitConsolAligned(w, prefix, h, bc, ac)
}

func emitConsolAligned(w io.Writer, prefix string, h *BookHandle, bc, ac lob.Level) {
	cur := alignedPx{bidPx: bc.Price, askPx: ac.Price}
	if h.haveConsolAligned && cur.equal(h.prevConsolAligned) {
		return
	}
	h.prevConsolAligned = cur
	h.haveConsolAligned = true
	fmt.Fprintf(w, "%sc1\t%s\t%s\t%s\t%s\n", prefix, dec(bc.Price), dec(ac.Price), dec(bc.Qty), dec(ac.Qty))
}

// EmitPRQCN is EmitPRQC's top-N counterpart, grounded in book2book.c's
// prqcn: one "c<i>" line per level, both sides aligned, deduped on the
// price arrays alone (memcmp(b, xb->bids) && memcmp(a, xb->asks)).
func EmitPRQCN(w io.Writer, prefix string, h *BookHandle, q decimal.Decimal, n int) {
	bids := h.Book.CTopN(lob.SideBid, q, n)
	asks := h.Book.CTopN(lob.SideAsk, q, n)
	emitConsolAlignedN(w, prefix, h, bids, asks, n)
}

// EmitPRQVN is EmitPRQCN's value-consolidated counterpart, grounded in
// book2book.c's prqvn.
func EmitPRQVN(w io.Writer, prefix string, h *BookHandle, v decimal.Decimal, n int) {
	bids := h.Book.VTopN(lob.SideBid, v, n)
	asks := h.Book.VTopN(lob.SideAsk, v, n)
	emitConsolAlignedN(w, prefix, h, bids, asks, n)
}

func emitConsolAlignedN(w io.Writer, prefix string, h *BookHandle, bids, asks []lob.Level, n int) {
	bidPx := make([]decimal.Decimal, len(bids))
	for i, l := range bids {
		bidPx[i] = l.Price
	}
	askPx := make([]decimal.Decimal, len(asks))
	for i, l := range asks {
		askPx[i] = l.Price
	}
	if h.prevConsolNAligned.bidPx != nil && pricesEqual(bidPx, h.prevConsolNAligned.bidPx) &&
		pricesEqual(askPx, h.prevConsolNAligned.askPx) {
		return
	}
	h.prevConsolNAligned = alignedPxN{bidPx: bidPx, askPx: askPx}

	bn, an := len(bids), len(asks)
	lvls := alignedLevelCount(n, bn, an)
	for i := 0; i < lvls; i++ {
		var bp, bq, ap, aq string
		if i < bn {
			bp, bq = dec(bids[i].Price), dec(bids[i].Qty)
		}
		if i < an {
			ap, aq = dec(asks[i].Price), dec(asks[i].Qty)
		}
		fmt.Fprintf(w, "%sc%d\t%s\t%s\t%s\t%s\n", prefix, i+1, bp, ap, bq, aq)
	}
}

// EmitSnap1 is EmitPRQ1's unconditional counterpart for snapshot mode:
// it always writes the aligned top-of-book line, grounded in
// booksnap.c's snap1, which fires on every metronome tick regardless of
// whether the top changed.
func EmitSnap1(w io.Writer, prefix string, h *BookHandle) {
	bid, _ := h.Book.Top(lob.SideBid)
	ask, _ := h.Book.Top(lob.SideAsk)
	fmt.Fprintf(w, "%sc1\t%s\t%s\t%s\t%s\n", prefix, dec(bid.Price), dec(ask.Price), dec(bid.Qty), dec(ask.Qty))
}

// EmitSnapN is EmitPRQN's unconditional counterpart, grounded in
// booksnap.c's snapn.
func EmitSnapN(w io.Writer, prefix string, h *BookHandle, ntop int) {
	bids := h.Book.TopN(lob.SideBid, ntop)
	asks := h.Book.TopN(lob.SideAsk, ntop)
	bn, an := len(bids), len(asks)
	n := alignedLevelCount(ntop, bn, an)
	for i := 0; i < n; i++ {
		var bp, bq, ap, aq string
		if i < bn {
			bp, bq = dec(bids[i].Price), dec(bids[i].Qty)
		}
		if i < an {
			ap, aq = dec(asks[i].Price), dec(asks[i].Qty)
		}
		fmt.Fprintf(w, "%sc%d\t%s\t%s\t%s\t%s\n", prefix, i+1, bp, ap, bq, aq)
	}
}

// EmitSnapC is EmitPRQC's unconditional counterpart, grounded in
// booksnap.c's snapc.
func EmitSnapC(w io.Writer, prefix string, h *BookHandle, q decimal.Decimal) {
	bc, _ := h.Book.CTop(lob.SideBid, q)
	ac, _ := h.Book.CTop(lob.SideAsk, q)
	fmt.Fprintf(w, "%sc1\t%s\t%s\t%s\t%s\n", prefix, dec(bc.Price), dec(ac.Price), dec(bc.Qty), dec(ac.Qty))
}

// EmitSnapCN is EmitPRQCN's unconditional counterpart, grounded in
// booksnap.c's snapcn.
func EmitSnapCN(w io.Writer, prefix string, h *BookHandle, q decimal.Decimal, n int) {
	bids := h.Book.CTopN(lob.SideBid, q, n)
	asks := h.Book.CTopN(lob.SideAsk, q, n)
	emitSnapAlignedN(w, prefix, bids, asks, n)
}

// EmitSnapV is EmitPRQV's unconditional counterpart, grounded in
// booksnap.c's snapv.
func EmitSnapV(w io.Writer, prefix string, h *BookHandle, v decimal.Decimal) {
	bc, _ := h.Book.VTop(lob.SideBid, v)
	ac, _ := h.Book.VTop(lob.SideAsk, v)
	fmt.Fprintf(w, "%sc1\t%s\t%s\t%s\t%s\n", prefix, dec(bc.Price), dec(ac.Price), dec(bc.Qty), dec(ac.Qty))
}

// EmitSnapVN is EmitPRQVN's unconditional counterpart, grounded in
// booksnap.c's snapvn.
func EmitSnapVN(w io.Writer, prefix string, h *BookHandle, v decimal.Decimal, n int) {
	bids := h.Book.VTopN(lob.SideBid, v, n)
	asks := h.Book.VTopN(lob.SideAsk, v, n)
	emitSnapAlignedN(w, prefix, bids, asks, n)
}

func emitSnapAlignedN(w io.Writer, prefix string, bids, asks []lob.Level, n int) {
	bn, an := len(bids), len(asks)
	lvls := alignedLevelCount(n, bn, an)
	for i := 0; i < lvls; i++ {
		var bp, bq, ap, aq string
		if i < bn {
			bp, bq = dec(bids[i].Price), dec(bids[i].Qty)
		}
		if i < an {
			ap, aq = dec(asks[i].Price), dec(asks[i].Qty)
		}
		fmt.Fprintf(w, "%sc%d\t%s\t%s\t%s\t%s\n", prefix, i+1, bp, ap, bq, aq)
	}
}

// EmitSnap2 is the full-book unconditional raw-level dump, grounded in
// booksnap.c's snap2: every positive-quantity level on both sides,
// tagged "B2"/"A2", with no change-gating and no delta against any
// prior snapshot.
func EmitSnap2(w io.Writer, prefix string, h *BookHandle) {
	for _, lvl := range h.Book.Levels(lob.SideBid) {
		fmt.Fprintf(w, "%sB2\t%s\t%s\n", prefix, dec(lvl.Price), dec(lvl.Qty))
	}
	for _, lvl := range h.Book.Levels(lob.SideAsk) {
		fmt.Fprintf(w, "%sA2\t%s\t%s\n", prefix, dec(lvl.Price), dec(lvl.Qty))
	}
}

// EmitSnap3 writes the delta between the current full book and the
// handle's last snapshot, tagged "B2"/"A2" (booksnap.c's snap3 reuses
// the 2-book tag even though its payload is a delta), then updates the
// handle's snapshot cache to the current book.
func EmitSnap3(w io.Writer, prefix string, h *BookHandle) {
	bids := h.Book.Levels(lob.SideBid)
	asks := h.Book.Levels(lob.SideAsk)

	for _, d := range diffLevels(bids, h.prevSnapBid, true) {
		fmt.Fprintf(w, "%sB2\t%s\t%s\n", prefix, dec(d.Price), dec(d.Qty))
	}
	for _, d := range diffLevels(asks, h.prevSnapAsk, false) {
		fmt.Fprintf(w, "%sA2\t%s\t%s\n", prefix, dec(d.Price), dec(d.Qty))
	}

	h.prevSnapBid = bids
	h.prevSnapAsk = asks
}

// diffLevels merges two side-ordered level lists (both ascending for
// ask, both descending for bid — matching pricemap.Map.Ascend's own
// per-side order) into per-price deltas: a level present in both gets
// newQty-oldQty, a level only in cur gets its full quantity, and a
// level only in prev (now gone) gets its negated quantity — the same
// three cases as booksnap.c's snap3 merge against its cached arrays.
func diffLevels(cur, prev []lob.Level, desc bool) []lob.Level {
	var out []lob.Level
	i, j := 0, 0
	better := func(p, q decimal.Decimal) bool {
		if desc {
			return p.GreaterThan(q)
		}
		return p.LessThan(q)
	}
	for i < len(cur) && j < len(prev) {
		switch {
		case cur[i].Price.Equal(prev[j].Price):
			delta := cur[i].Qty.Sub(prev[j].Qty)
			if !delta.IsZero() {
				out = append(out, lob.Level{Price: cur[i].Price, Qty: delta})
			}
			i++
			j++
		case better(cur[i].Price, prev[j].Price):
			out = append(out, cur[i])
			i++
		default:
			out = append(out, lob.Level{Price: prev[j].Price, Qty: prev[j].Qty.Neg()})
			j++
		}
	}
	for ; i < len(cur); i++ {
		out = append(out, cur[i])
	}
	for ; j < len(prev); j++ {
		out = append(out, lob.Level{Price: prev[j].Price, Qty: prev[j].Qty.Neg()})
	}
	return out
}

// dec formats d keeping its own exponent, so a price read as "197.0"
// prints as "197.0" rather than with its trailing zeros trimmed.
func dec(d decimal.Decimal) string {
	if d.Exponent() < 0 {
		return d.StringFixed(-d.Exponent())
	}
	return d.String()
}
