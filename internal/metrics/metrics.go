// Package metrics exposes Prometheus collectors for the tracking engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kestrelworks/steptrace/internal/belief"
)

var (
	// ObservationsTotal counts processed observations.
	// Labels: level (high, medium, low), action (update, observe, ignore).
	ObservationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "steptrace",
			Subsystem: "observer",
			Name:      "observations_total",
			Help:      "Total observations processed, by confidence level and policy action",
		},
		[]string{"level", "action"},
	)

	// ObservationsRejected counts observations rejected by the text cleaner.
	ObservationsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "steptrace",
			Subsystem: "observer",
			Name:      "observations_rejected_total",
			Help:      "Observations rejected before matching (empty or garbled text)",
		},
	)

	// MatcherErrors counts knowledge-matcher failures degraded to no-match.
	MatcherErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "steptrace",
			Subsystem: "observer",
			Name:      "matcher_errors_total",
			Help:      "Knowledge matcher calls that failed and were treated as no match",
		},
	)

	// QueriesTotal counts answered queries.
	// Labels: type (query intent), route (template, fallback).
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "steptrace",
			Subsystem: "query",
			Name:      "queries_total",
			Help:      "Total queries answered, by intent and route",
		},
		[]string{"type", "route"},
	)

	// QueryLatency tracks end-to-end query handling time.
	QueryLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "steptrace",
			Subsystem: "query",
			Name:      "latency_seconds",
			Help:      "Query handling latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// FallbackFailures counts external answerer errors and timeouts.
	FallbackFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "steptrace",
			Subsystem: "query",
			Name:      "fallback_failures_total",
			Help:      "External answerer calls that errored or timed out",
		},
	)

	// WindowSize is the current sliding window entry count.
	WindowSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "steptrace",
			Subsystem: "memory",
			Name:      "window_entries",
			Help:      "Current sliding window entry count",
		},
	)

	// WindowBytes is the estimated sliding window byte usage.
	WindowBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "steptrace",
			Subsystem: "memory",
			Name:      "window_bytes",
			Help:      "Estimated sliding window size in bytes",
		},
	)

	// HistorySize is the current complete-record history depth.
	HistorySize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "steptrace",
			Subsystem: "memory",
			Name:      "history_records",
			Help:      "Current complete-record history depth",
		},
	)
)

// UpdateMemoryStats pushes store occupancy into the gauges.
func UpdateMemoryStats(s belief.MemoryStats) {
	WindowSize.Set(float64(s.WindowSize))
	WindowBytes.Set(float64(s.WindowBytes))
	HistorySize.Set(float64(s.HistorySize))
}
