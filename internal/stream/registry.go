package stream

import (
	"hash/maphash"

	"book2book/internal/lob"
)

// CatchAllHash is the sentinel hash for a wildcard registry entry,
// mirroring the original's HX_CATCHALL = (hx_t)-1ULL.
const CatchAllHash uint64 = 1<<64 - 1

// BookHandle bundles one instrument's Book together with the aligned
// emitters' cached previous view, so that state lives on the handle
// rather than in package globals.
type BookHandle struct {
	Name string
	Book *lob.Book

	prevAligned alignedView
	haveAligned bool
	prevTopN    []lob.Level

	// prevConsolAligned/prevConsolNAligned cache the aligned two-sided
	// consolidated views (EmitPRQC/EmitPRQV and their N variants),
	// which dedupe on price alone, mirroring book2book.c's prqc/prqv
	// ("bc.p == xb->bid && ac.p == xb->ask").
	prevConsolAligned  alignedPx
	haveConsolAligned  bool
	prevConsolNAligned alignedPxN

	// prevSnapBid/prevSnapAsk hold the last full-book snapshot taken by
	// the snapshot emitters, for the delta-style snap3 view.
	prevSnapBid, prevSnapAsk []lob.Level
}

func newHandle(name string) *BookHandle {
	return &BookHandle{Name: name, Book: lob.New()}
}

// Registry maps an instrument name to its BookHandle. It supports an
// explicit fixed set of instruments (registered up front, optionally
// with one catch-all wildcard) or a dynamic mode that grows on first
// sight of a new instrument.
type Registry struct {
	seed    maphash.Seed
	byHash  map[uint64]*BookHandle
	dynamic bool
	catchAll *BookHandle
}

// NewRegistry builds a registry. If instruments is empty or contains
// "*", a catch-all entry is installed. If dynamic is true, unknown
// instruments are registered lazily on first use, ahead of any
// catch-all; if false, unknown instruments go to the catch-all when
// there is one and are rejected otherwise.
func NewRegistry(instruments []string, dynamic bool) *Registry {
	r := &Registry{
		seed:   maphash.MakeSeed(),
		byHash: make(map[uint64]*BookHandle, 8),
		dynamic: dynamic,
	}
	if len(instruments) == 0 {
		r.catchAll = newHandle("*")
		return r
	}
	for _, ins := range instruments {
		if ins == "*" {
			r.catchAll = newHandle("*")
			continue
		}
		h := r.hash(ins)
		r.byHash[h] = newHandle(ins)
	}
	return r
}

func (r *Registry) hash(name string) uint64 {
	var h maphash.Hash
	h.SetSeed(r.seed)
	_, _ = h.WriteString(name)
	return h.Sum64()
}

// Lookup returns the handle for name, registering it on the fly when
// the registry is in dynamic mode, or falling back to the catch-all
// entry, or reporting not-found.
func (r *Registry) Lookup(name string) (*BookHandle, bool) {
	hv := r.hash(name)
	if h, ok := r.byHash[hv]; ok {
		return h, true
	}
	if r.dynamic {
		h := newHandle(name)
		r.byHash[hv] = h
		return h, true
	}
	if r.catchAll != nil {
		return r.catchAll, true
	}
	return nil, false
}

// All returns every handle currently registered (for snapshot sweeps).
func (r *Registry) All() []*BookHandle {
	out := make([]*BookHandle, 0, len(r.byHash)+1)
	for _, h := range r.byHash {
		out = append(out, h)
	}
	if r.catchAll != nil {
		out = append(out, r.catchAll)
	}
	return out
}
