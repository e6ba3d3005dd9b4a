// Package stream implements the line parser, instrument registry,
// orchestrator, view emitters, and snapshot metronome that together
// turn a tab-separated event feed into derived book views.
package stream

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"book2book/internal/lob"
	"book2book/internal/lobpx"
)

// Line is one fully parsed input row.
type Line struct {
	Prefix []byte // everything before the instrument token, verbatim
	Instr  string
	Quote  lob.Quote
}

// Parser splits a tab-separated line right-to-left: quantity last,
// then price, then the two-character side+flavour token, with the
// instrument token immediately before it and everything else kept as
// an opaque prefix. Grounded in original_source/src/xquo.c's
// read_xquo/strtotv.
type Parser struct{}

// ErrParse is returned for any malformed line, and by
// Orchestrator.HandleLine for an unknown instrument.
type ErrParse struct {
	Reason string
}

func (e *ErrParse) Error() string {
	return "parse: " + e.Reason
}

// Parse decodes one line. The trailing newline, if any, must already
// be stripped by the caller.
func (p *Parser) Parse(line string) (Line, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 4 {
		return Line{}, &ErrParse{Reason: "fewer than 4 tab fields"}
	}

	n := len(fields)
	qtyField := fields[n-1]
	priceField := fields[n-2]
	sfField := fields[n-3]
	instr := fields[n-4]
	prefix := strings.Join(fields[:n-4], "\t")

	side, flav, err := decodeSideFlavour(sfField)
	if err != nil {
		return Line{}, err
	}

	price, err := decodePrice(priceField)
	if err != nil {
		return Line{}, err
	}

	qty, err := decimal.NewFromString(qtyField)
	if err != nil {
		return Line{}, &ErrParse{Reason: "bad quantity: " + err.Error()}
	}

	var ts lobpx.TS
	if prefix != "" {
		// strtotv only ever consumes a leading numeric run; a malformed
		// or absent leading timestamp just leaves ts at zero, same as
		// strtotv's NOT_A_TIME did for the original reader.
		ts, _ = ParseTS(fields[0])
	}

	return Line{
		Prefix: []byte(prefix),
		Instr:  instr,
		Quote: lob.Quote{
			Side:  side,
			Flav:  flav,
			Price: price,
			Qty:   qty,
			Ts:    ts,
		},
	}, nil
}

// decodeSideFlavour decodes a two-character token like "A1", "B3",
// "C" (clear), "T"/"t" (delete). Side char: A/a -> ask, B/b -> bid,
// C/c -> clear, T/t -> delete (spec.md's ABNF adds T/t; the original C
// xquo.c only ever recognised A/a/B/b/C/c).
func decodeSideFlavour(tok string) (lob.Side, lob.LevelFlavour, error) {
	if len(tok) == 0 {
		return 0, 0, &ErrParse{Reason: "empty side/flavour token"}
	}
	sideCh := tok[0]
	var side lob.Side
	switch sideCh {
	case 'A', 'a':
		side = lob.SideAsk
	case 'B', 'b':
		side = lob.SideBid
	case 'C', 'c':
		side = lob.SideClear
		return side, lob.LvlInvalid, nil
	case 'T', 't':
		side = lob.SideDelete
		return side, lob.LvlInvalid, nil
	default:
		return 0, 0, &ErrParse{Reason: fmt.Sprintf("unknown side char %q", sideCh)}
	}

	if len(tok) < 2 {
		return 0, 0, &ErrParse{Reason: "missing level flavour digit"}
	}
	switch tok[1] {
	case '1':
		return side, lob.Lvl1, nil
	case '2':
		return side, lob.Lvl2, nil
	case '3':
		return side, lob.Lvl3, nil
	default:
		return 0, 0, &ErrParse{Reason: fmt.Sprintf("unknown level flavour %q", tok[1])}
	}
}

// decodePrice parses a price field, treating "nan"/"NaN" as the
// clear-this-side sentinel.
func decodePrice(s string) (lobpx.Price, error) {
	if strings.EqualFold(s, "nan") {
		return lobpx.NaNPrice, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return lobpx.Price{}, &ErrParse{Reason: "bad price: " + err.Error()}
	}
	return lobpx.PriceFrom(d), nil
}

// ParseTS parses a standalone leading timestamp token (an optional
// field some feeds prepend), accepting integral seconds or
// seconds.fraction with exactly 0, 3, 6, or 9 fractional digits.
func ParseTS(s string) (lobpx.TS, error) {
	dot := strings.IndexByte(s, '.')
	if dot < 0 {
		secs, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return 0, &ErrParse{Reason: "bad timestamp: " + err.Error()}
		}
		return lobpx.TS(secs) * lobpx.NSECS, nil
	}
	whole, frac := s[:dot], s[dot+1:]
	secs, err := strconv.ParseUint(whole, 10, 64)
	if err != nil {
		return 0, &ErrParse{Reason: "bad timestamp: " + err.Error()}
	}
	var mult uint64
	switch len(frac) {
	case 0:
		mult = lobpx.NSECS
	case 3:
		mult = lobpx.USECS
	case 6:
		mult = lobpx.MSECS
	case 9:
		mult = 1
	default:
		return 0, &ErrParse{Reason: "fractional seconds must have 0, 3, 6 or 9 digits"}
	}
	fracVal := uint64(0)
	if len(frac) > 0 {
		v, err := strconv.ParseUint(frac, 10, 64)
		if err != nil {
			return 0, &ErrParse{Reason: "bad timestamp fraction: " + err.Error()}
		}
		fracVal = v
	}
	return lobpx.TS(secs*lobpx.NSECS + fracVal*mult), nil
}
