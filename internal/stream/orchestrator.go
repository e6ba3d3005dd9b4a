package stream

import (
	"bufio"
	"io"

	"github.com/shopspring/decimal"

	"book2book/internal/lob"
	"book2book/internal/lobpx"
	"book2book/internal/metrics"
)

// View selects which emitter(s) the orchestrator drives per event.
type View int

const (
	ViewAligned1 View = iota // prq1
	ViewRaw2                 // prq2
	ViewDelta3               // prq3
	ViewAlignedN             // prqn
	ViewConsolQ              // prqc / prqcn
	ViewConsolV              // prqv / prqvn
)

// Config drives one Orchestrator run; it is the no-globals alternative
// to the original's static configuration variables (design note #2/#9).
type Config struct {
	View View
	TopN int

	// ConsolQty is the per-level quantity (or value, for ViewConsolV)
	// target driving prqc/prqv/prqcn/prqvn.
	ConsolQty decimal.Decimal

	// UncrossTop1 enables the optional, off-by-default uncross policy
	// for the aligned L1 view (spec.md Design Notes, second Open
	// Question).
	UncrossTop1 bool
}

// Orchestrator drives Parser -> Registry -> Book.Apply -> emitters for
// a whole input stream.
type Orchestrator struct {
	Parser   Parser
	Registry *Registry
	Config   Config
}

// NewOrchestrator builds an Orchestrator over reg with cfg.
func NewOrchestrator(reg *Registry, cfg Config) *Orchestrator {
	return &Orchestrator{Registry: reg, Config: cfg}
}

// Run consumes r line by line, writing emitted views to w. onDrop, if
// non-nil, is called for every line that fails to parse or resolve to
// a registered instrument, with the reason.
func (o *Orchestrator) Run(r io.Reader, w io.Writer, onDrop func(reason string)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		if err := o.HandleLine(line, w); err != nil {
			if onDrop != nil {
				onDrop(err.Error())
			}
			continue
		}
		metrics.LinesProcessed.Inc()
	}
	return sc.Err()
}

// HandleLine processes a single already-split line.
func (o *Orchestrator) HandleLine(line string, w io.Writer) error {
	parsed, err := o.Parser.Parse(line)
	if err != nil {
		return err
	}
	h, ok := o.Registry.Lookup(parsed.Instr)
	if !ok {
		return &ErrParse{Reason: "unknown instrument: " + parsed.Instr}
	}

	prefix := string(parsed.Prefix)
	if prefix != "" {
		prefix += "\t"
	}
	prefix += parsed.Instr + "\t"

	q := parsed.Quote

	switch o.Config.View {
	case ViewRaw2, ViewDelta3:
		o.applyPerLevel(h, q, prefix, w)
	default:
		o.applyAligned(h, q, prefix, w)
	}
	return nil
}

// applyPerLevel drives the prq2/prq3 emitters, which need the full
// unwind sequence (every level an L1 top-set or a CLEAR/DELETE verb
// zeroed, or DELETE reduced) reported as its own line, in book order,
// before the real update's own line.
func (o *Orchestrator) applyPerLevel(h *BookHandle, q lob.Quote, prefix string, w io.Writer) {
	preimage, unwound, ok := h.Book.Apply(q)
	if !ok {
		return
	}

	emitLevel := func(side lob.Side, price, oldQty, newQty decimal.Decimal) {
		if o.Config.View == ViewDelta3 {
			EmitPRQ3(w, prefix, side, price, oldQty, newQty)
		} else {
			EmitPRQ2(w, prefix, side, price, newQty)
		}
	}

	switch q.Side {
	case lob.SideClear, lob.SideDelete:
		for _, lvl := range unwound {
			newQty := decimal.Zero
			if q.Side == lob.SideDelete && lvl.Price.Equal(q.Price.Val) {
				// DELETE's exact-match level is reduced, not zeroed.
				newQty = lobpx.SaturateNonNeg(lvl.Qty.Sub(q.Qty))
			}
			emitLevel(lvl.Side, lvl.Price, lvl.Qty, newQty)
		}
		return
	}

	if q.Flav == lob.Lvl1 {
		for _, lvl := range unwound {
			emitLevel(lvl.Side, lvl.Price, lvl.Qty, decimal.Zero)
		}
		if !q.Price.IsNaN() {
			emitLevel(q.Side, q.Price.Val, preimage.Qty, q.Qty)
		}
		return
	}

	// Lvl2/Lvl3: a single level changed.
	newQty := q.Qty
	if q.Flav == lob.Lvl3 {
		newQty = lobpx.SaturateNonNeg(preimage.Qty.Add(q.Qty))
	}
	emitLevel(q.Side, q.Price.Val, preimage.Qty, newQty)
}

// applyAligned drives the prq1/prqn/prqc/prqv emitters, which only
// care about the book's resulting state, not the intermediate unwind.
func (o *Orchestrator) applyAligned(h *BookHandle, q lob.Quote, prefix string, w io.Writer) {
	_, _, ok := h.Book.Apply(q)
	if !ok {
		return
	}

	if o.Config.UncrossTop1 && o.Config.View == ViewAligned1 {
		o.uncross(h)
	}

	switch o.Config.View {
	case ViewAligned1:
		EmitPRQ1(w, prefix, h)
	case ViewAlignedN:
		EmitPRQN(w, prefix, h, o.Config.TopN)
	case ViewConsolQ:
		if o.Config.TopN > 1 {
			EmitPRQCN(w, prefix, h, o.Config.ConsolQty, o.Config.TopN)
		} else {
			EmitPRQC(w, prefix, h, o.Config.ConsolQty)
		}
	case ViewConsolV:
		if o.Config.TopN > 1 {
			EmitPRQVN(w, prefix, h, o.Config.ConsolQty, o.Config.TopN)
		} else {
			EmitPRQV(w, prefix, h, o.Config.ConsolQty)
		}
	}
}

// uncross implements the optional historical uncross policy: while the
// top-of-book is self-crossing (ask <= bid), zero the lower-priority
// side's top and re-check.
func (o *Orchestrator) uncross(h *BookHandle) {
	for {
		bid, hasBid := h.Book.Top(lob.SideBid)
		ask, hasAsk := h.Book.Top(lob.SideAsk)
		if !hasBid || !hasAsk || ask.Price.GreaterThan(bid.Price) {
			return
		}
		// Zero the bid's top; it is the "later" quote by convention
		// when both are present and crossing.
		h.Book.Apply(lob.Quote{
			Side:  lob.SideBid,
			Flav:  lob.Lvl3,
			Price: lobpx.PriceFrom(bid.Price),
			Qty:   bid.Qty.Neg(),
		})
	}
}
