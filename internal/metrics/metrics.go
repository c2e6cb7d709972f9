// Ludex - Game Catalog Recommendation and Reputation Service
// Copyright 2026 Marcos Vidigal (mvidigal)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mvidigal/ludex

// Package metrics exposes Prometheus collectors for the event pipeline,
// the rating ledger, the similarity index, and the HTTP API.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Event pipeline.
	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ludex_events_consumed_total",
			Help: "Feedback events pulled from the queue, by outcome (acked, nacked, dropped)",
		},
		[]string{"outcome"},
	)

	EventProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ludex_event_processing_duration_seconds",
			Help:    "Duration of parse + ledger apply per event",
			Buckets: prometheus.DefBuckets,
		},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ludex_events_published_total",
			Help: "Feedback events published onto the queue, by result (ok, error)",
		},
		[]string{"result"},
	)

	// Rating ledger.
	LedgerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ludex_ledger_transitions_total",
			Help: "Ledger state transitions, by result (inserted, updated, unchanged)",
		},
		[]string{"result"},
	)

	LedgerErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ludex_ledger_errors_total",
			Help: "Failed ledger transactions",
		},
	)

	// Similarity index.
	IndexRebuilds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ludex_index_rebuilds_total",
			Help: "Similarity index rebuilds, by result (ok, error, cancelled)",
		},
		[]string{"result"},
	)

	IndexRebuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ludex_index_rebuild_duration_seconds",
			Help:    "Duration of similarity index rebuilds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		},
	)

	IndexSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ludex_index_games",
			Help: "Number of games in the current similarity snapshot",
		},
	)

	// Dead-letter store.
	DLQEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ludex_dlq_entries",
			Help: "Entries currently held in the dead-letter store",
		},
	)

	DLQAdded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ludex_dlq_added_total",
			Help: "Events routed to the dead-letter store",
		},
	)

	// HTTP API.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ludex_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// RecordEventOutcome counts a consumed event by its final outcome.
func RecordEventOutcome(outcome string) {
	EventsConsumed.WithLabelValues(outcome).Inc()
}

// RecordLedgerTransition counts an apply result.
func RecordLedgerTransition(result string) {
	LedgerTransitions.WithLabelValues(result).Inc()
}

// RecordRebuild records one index rebuild attempt.
func RecordRebuild(result string, d time.Duration, size int) {
	IndexRebuilds.WithLabelValues(result).Inc()
	if result == "ok" {
		IndexRebuildDuration.Observe(d.Seconds())
		IndexSize.Set(float64(size))
	}
}

// RecordHTTPRequest records one served request.
func RecordHTTPRequest(method, route string, status int, d time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
