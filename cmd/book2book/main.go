// Command book2book reads a tab-separated stream of order-book events
// on stdin and writes a derived quote view to stdout: raw L2 diffs, L3
// deltas, aligned top-of-book/top-N, or a quantity/value-consolidated
// book, optionally snapshotted on a fixed cadence.
package main

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"book2book/internal/lobpx"
	"book2book/internal/metrics"
	"book2book/internal/stream"
	"book2book/internal/wsfeed"
)

func init() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}

type cliOpts struct {
	lvl1, lvl2, lvl3 bool
	topN             int
	consol           string
	instr            []string
	interval         string
	offset           string
	invalidate       string
	stamps           string
	dynamic          bool
	uncross          bool
	wsAddr           string
	metricsAddr      string
}

func newRootCmd() *cobra.Command {
	var o cliOpts

	cmd := &cobra.Command{
		Use:   "book2book",
		Short: "Transform a limit-order-book event stream into derived quote views",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(o)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&o.lvl1, "1", false, "emit the aligned top-of-book view (prq1)")
	f.BoolVar(&o.lvl2, "2", false, "emit raw level-2 diffs (prq2)")
	f.BoolVar(&o.lvl3, "3", false, "emit level-3 deltas (prq3)")
	f.IntVarP(&o.topN, "N", "N", 0, "top-N depth for aligned or consolidated views")
	f.StringVarP(&o.consol, "C", "C", "", "consolidate at quantity Q, or /Q to consolidate by value")
	f.StringSliceVar(&o.instr, "instr", nil, "explicit instrument registry; empty or '*' = catch-all")
	f.BoolVar(&o.dynamic, "dynamic-instr", false, "grow the instrument registry on first sight instead of rejecting unknowns")
	f.StringVar(&o.interval, "interval", "", "snapshot interval, e.g. 1s, 500ms")
	f.StringVar(&o.offset, "offset", "0", "snapshot interval offset, e.g. -30s")
	f.StringVar(&o.invalidate, "invalidate", "", "bound snapshot cadence by interval+invalidate")
	f.StringVar(&o.stamps, "stamps", "", "file of newline-separated snapshot instants, stamp-list mode")
	f.BoolVar(&o.uncross, "uncross", false, "zero the lower-priority top on a self-crossing book (historical policy, off by default)")
	f.StringVar(&o.wsAddr, "ws-addr", "", "also serve emitted lines live at ws://<addr>/stream")
	f.StringVar(&o.metricsAddr, "metrics-addr", "", "expose Prometheus metrics at http://<addr>/metrics")

	return cmd
}

func run(o cliOpts) error {
	cfg, err := buildConfig(o)
	if err != nil {
		return err
	}

	reg := stream.NewRegistry(o.instr, o.dynamic)
	metrics.RegisteredInstruments.Set(float64(len(reg.All())))

	var outputs []io.Writer
	outputs = append(outputs, os.Stdout)

	if o.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(o.metricsAddr, mux); err != nil {
				log.Printf("metrics server stopped: %v", err)
			}
		}()
	}

	var hub *wsfeed.Hub
	if o.wsAddr != "" {
		hub = wsfeed.NewHub()
		outputs = append(outputs, hub)
		mux := http.NewServeMux()
		mux.Handle("/stream", hub.Handler())
		go func() {
			if err := http.ListenAndServe(o.wsAddr, mux); err != nil {
				log.Printf("websocket server stopped: %v", err)
			}
		}()
	}

	w := &countingWriter{w: io.MultiWriter(outputs...)}

	onDrop := func(reason string) {
		kind := "parse"
		if strings.HasPrefix(reason, "unknown instrument") {
			kind = "unknown-instrument"
		}
		metrics.LinesDropped.WithLabelValues(kind).Inc()
	}

	if o.interval != "" || o.stamps != "" {
		met, err := buildMetronome(o)
		if err != nil {
			return err
		}
		snap := stream.NewSnapshotOrchestrator(reg, cfg, met)
		return snap.Run(os.Stdin, w, onDrop)
	}

	orch := stream.NewOrchestrator(reg, cfg)
	return orch.Run(os.Stdin, w, onDrop)
}

func buildConfig(o cliOpts) (stream.Config, error) {
	cfg := stream.Config{UncrossTop1: o.uncross, TopN: o.topN}

	switch {
	case o.lvl2:
		cfg.View = stream.ViewRaw2
	case o.lvl3:
		cfg.View = stream.ViewDelta3
	case o.consol != "":
		byValue := strings.HasPrefix(o.consol, "/")
		qstr := strings.TrimPrefix(o.consol, "/")
		q, err := decimal.NewFromString(qstr)
		if err != nil {
			return cfg, fmt.Errorf("bad -C value %q: %w", o.consol, err)
		}
		cfg.ConsolQty = q
		if byValue {
			cfg.View = stream.ViewConsolV
		} else {
			cfg.View = stream.ViewConsolQ
		}
	case o.topN > 0:
		cfg.View = stream.ViewAlignedN
	default:
		cfg.View = stream.ViewAligned1
	}
	return cfg, nil
}

func buildMetronome(o cliOpts) (*stream.Metronome, error) {
	if o.stamps != "" {
		f, err := os.Open(o.stamps)
		if err != nil {
			return nil, err
		}
		return stream.NewStampMetronome(f), nil
	}

	interval, err := parseDuration(o.interval)
	if err != nil {
		return nil, fmt.Errorf("bad --interval: %w", err)
	}
	offset, err := parseSignedDuration(o.offset)
	if err != nil {
		return nil, fmt.Errorf("bad --offset: %w", err)
	}
	var invalidate uint64
	if o.invalidate != "" {
		invalidate, err = parseDuration(o.invalidate)
		if err != nil {
			return nil, fmt.Errorf("bad --invalidate: %w", err)
		}
	}
	return stream.NewIntervalMetronome(interval, offset, invalidate), nil
}

// parseDuration accepts a bare integer (seconds) or a suffixed
// value (ns/us/ms/s), returning nanoseconds.
func parseDuration(s string) (uint64, error) {
	v, neg, err := parseMaybeSignedDuration(s)
	if err != nil {
		return 0, err
	}
	if neg {
		return 0, fmt.Errorf("duration %q must not be negative", s)
	}
	return v, nil
}

func parseSignedDuration(s string) (int64, error) {
	v, neg, err := parseMaybeSignedDuration(s)
	if err != nil {
		return 0, err
	}
	if neg {
		return -int64(v), nil
	}
	return int64(v), nil
}

func parseMaybeSignedDuration(s string) (value uint64, negative bool, err error) {
	if s == "" {
		return 0, false, nil
	}
	if strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	}
	mult := uint64(lobpx.NSECS)
	switch {
	case strings.HasSuffix(s, "ns"):
		mult, s = 1, strings.TrimSuffix(s, "ns")
	case strings.HasSuffix(s, "us"):
		mult, s = lobpx.NSECS/lobpx.USECS, strings.TrimSuffix(s, "us")
	case strings.HasSuffix(s, "ms"):
		mult, s = lobpx.NSECS/lobpx.MSECS, strings.TrimSuffix(s, "ms")
	case strings.HasSuffix(s, "s"):
		mult, s = lobpx.NSECS, strings.TrimSuffix(s, "s")
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return n * mult, negative, nil
}

// countingWriter increments the views-emitted counter once per line
// written, regardless of which emitter produced it.
type countingWriter struct {
	w io.Writer
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	for _, b := range p {
		if b == '\n' {
			metrics.ViewsEmitted.Inc()
		}
	}
	return n, err
}
