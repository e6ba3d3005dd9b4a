package stream

import (
	"bufio"
	"io"
	"strconv"

	"book2book/internal/lobpx"
	"book2book/internal/metrics"
)

// Metronome produces the sequence of snapshot instants. Interval mode
// computes the next instant from a formula; stamp-list mode reads
// instants from an external source (one per line), reporting no further
// instant at EOF (the snapshot loop then parks at NATV) — grounded in
// original_source/src/booksnap.c's metronome loop.
type Metronome struct {
	// Interval mode.
	Interval   uint64
	Offset     int64
	Invalidate uint64

	// Stamp-list mode; when Stamps is non-nil, it takes priority over
	// interval mode.
	Stamps *bufio.Scanner

	cur lobpx.TS
}

// NewIntervalMetronome builds an interval-mode metronome.
func NewIntervalMetronome(interval uint64, offset int64, invalidate uint64) *Metronome {
	return &Metronome{Interval: interval, Offset: offset, Invalidate: invalidate}
}

// NewStampMetronome builds a stamp-list-mode metronome reading
// newline-separated nanosecond timestamps from r.
func NewStampMetronome(r io.Reader) *Metronome {
	sc := bufio.NewScanner(r)
	return &Metronome{Stamps: sc}
}

// Next returns the next snapshot instant strictly after t, or
// (0, false) if no more snapshots are due (stamp-list EOF).
func (m *Metronome) Next(t lobpx.TS) (lobpx.TS, bool) {
	if m.Stamps != nil {
		if !m.Stamps.Scan() {
			return 0, false
		}
		v, err := strconv.ParseUint(m.Stamps.Text(), 10, 64)
		if err != nil {
			return 0, false
		}
		return lobpx.TS(v), true
	}

	if m.Interval == 0 {
		return 0, false
	}
	// next(t) = (floor((t - offset) / interval) + 1) * interval + offset,
	// the first grid instant strictly after t.
	iv := int64(m.Interval)
	shifted := int64(t) - m.Offset
	k := shifted / iv
	if shifted < 0 && shifted%iv != 0 {
		k--
	}
	next := (k+1)*iv + m.Offset
	nt := lobpx.TS(next)
	if m.Invalidate > 0 && uint64(nt) > uint64(t)+m.Invalidate {
		return 0, false
	}
	return nt, true
}

// SnapshotOrchestrator wraps an Orchestrator with a Metronome: on every
// processed event whose timestamp passes the current metronome instant,
// it repeatedly expires stale levels (only when the metronome's
// Invalidate is set), emits a snapshot view, and advances the
// metronome, finally firing one last snapshot at EOF.
type SnapshotOrchestrator struct {
	*Orchestrator
	Metronome *Metronome
	metr      lobpx.TS
	started   bool
}

// NewSnapshotOrchestrator builds a SnapshotOrchestrator over reg with
// cfg, driven by met.
func NewSnapshotOrchestrator(reg *Registry, cfg Config, met *Metronome) *SnapshotOrchestrator {
	return &SnapshotOrchestrator{
		Orchestrator: NewOrchestrator(reg, cfg),
		Metronome:    met,
	}
}

// Run consumes r line by line, maintaining every registered book and
// firing periodic snapshots to w per the metronome schedule, with a
// final snapshot at EOF.
func (s *SnapshotOrchestrator) Run(r io.Reader, w io.Writer, onDrop func(reason string)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		parsed, err := s.Parser.Parse(line)
		if err != nil {
			if onDrop != nil {
				onDrop(err.Error())
			}
			continue
		}
		h, ok := s.Registry.Lookup(parsed.Instr)
		if !ok {
			if onDrop != nil {
				onDrop("unknown instrument: " + parsed.Instr)
			}
			continue
		}

		t := parsed.Quote.Ts
		if !s.started {
			if next, ok := s.Metronome.Next(0); ok {
				s.metr = next
			}
			s.started = true
		}
		for t > s.metr {
			if s.Metronome.Invalidate > 0 {
				for _, rh := range s.Registry.All() {
					rh.Book.Expire(s.metr)
				}
			}
			s.snapshotAll(w)
			next, ok := s.Metronome.Next(s.metr)
			if !ok {
				s.metr = lobpx.NATV
				break
			}
			s.metr = next
		}

		// Snapshot mode only mutates the book here; it never runs the prq
		// converter per event — booksnap.c's main loop calls only
		// book_add per line and emits solely from snap() at metronome
		// ticks.
		h.Book.Apply(parsed.Quote)
		metrics.LinesProcessed.Inc()
	}
	s.snapshotAll(w)
	return sc.Err()
}

// snapshotAll fires one unconditional snapshot per registered book for
// every View, prefixed with the firing instant (booksnap.c's
// tvtostr(metr)) followed by the instrument name — grounded in
// booksnap.c's snap1/snap2/snap3/snapn/snapc/snapcn/snapv/snapvn, none of
// which gate on whether the book changed since the last tick.
func (s *SnapshotOrchestrator) snapshotAll(w io.Writer) {
	metrics.SnapshotsFired.Inc()
	ts := strconv.FormatUint(uint64(s.metr), 10)
	for _, h := range s.Registry.All() {
		prefix := ts + "\t" + h.Name + "\t"
		switch s.Config.View {
		case ViewAligned1:
			EmitSnap1(w, prefix, h)
		case ViewRaw2:
			EmitSnap2(w, prefix, h)
		case ViewDelta3:
			EmitSnap3(w, prefix, h)
		case ViewAlignedN:
			EmitSnapN(w, prefix, h, s.Config.TopN)
		case ViewConsolQ:
			if s.Config.TopN > 1 {
				EmitSnapCN(w, prefix, h, s.Config.ConsolQty, s.Config.TopN)
			} else {
				EmitSnapC(w, prefix, h, s.Config.ConsolQty)
			}
		case ViewConsolV:
			if s.Config.TopN > 1 {
				EmitSnapVN(w, prefix, h, s.Config.ConsolQty, s.Config.TopN)
			} else {
				EmitSnapV(w, prefix, h, s.Config.ConsolQty)
			}
		}
	}
}
