// Package metrics exposes Prometheus counters and gauges describing
// the orchestrator's throughput: lines processed/dropped, views
// emitted, and registry size.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LinesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "book2book",
		Name:      "lines_processed_total",
		Help:      "Input lines successfully parsed and applied.",
	})

	LinesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "book2book",
		Name:      "lines_dropped_total",
		Help:      "Input lines dropped, by reason.",
	}, []string{"reason"})

	ViewsEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "book2book",
		Name:      "views_emitted_total",
		Help:      "Output view lines written.",
	})

	RegisteredInstruments = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "book2book",
		Name:      "registered_instruments",
		Help:      "Number of instruments registered at startup.",
	})

	SnapshotsFired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "book2book",
		Name:      "snapshots_fired_total",
		Help:      "Metronome-driven snapshot sweeps fired.",
	})
)
