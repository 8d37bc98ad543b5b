// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Outcome labels for TurnsTotal.
const (
	OutcomeCompleted = "completed"
	OutcomeAborted   = "aborted"
	OutcomeErrored   = "errored"
)

// =============================================================================
// METRICS
// =============================================================================

// Metrics holds the Prometheus collectors for one docchat process.
type Metrics struct {
	registry *prometheus.Registry

	TurnsTotal          *prometheus.CounterVec
	TurnsInFlight       prometheus.Gauge
	TurnDuration        *prometheus.HistogramVec
	TimeToFirstChunk    prometheus.Histogram
	StreamChunksTotal   *prometheus.CounterVec
	UploadsTotal        prometheus.Counter
	UploadFailuresTotal prometheus.Counter
	RefreshFailures     prometheus.Counter
}

// NewMetrics creates the collectors on a fresh registry. Go runtime and
// process collectors are included.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{registry: reg}

	m.TurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docchat_turns_total",
			Help: "Total number of finished turns by outcome",
		},
		[]string{"outcome"},
	)

	m.TurnsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "docchat_turns_in_flight",
			Help: "Number of turns currently uploading or streaming",
		},
	)

	m.TurnDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docchat_turn_duration_seconds",
			Help:    "Time from submit to terminal state",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"outcome"},
	)

	m.TimeToFirstChunk = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docchat_time_to_first_chunk_seconds",
			Help:    "Time from stream open to the first chunk",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	m.StreamChunksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docchat_stream_chunks_total",
			Help: "Total number of stream chunks received by chunk type",
		},
		[]string{"type"},
	)

	m.UploadsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docchat_uploads_total",
			Help: "Total number of successful attachment uploads",
		},
	)

	m.UploadFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docchat_upload_failures_total",
			Help: "Total number of turns failed by an attachment upload",
		},
	)

	m.RefreshFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docchat_refresh_failures_total",
			Help: "Total number of failed chat reloads after a turn",
		},
	)

	reg.MustRegister(
		m.TurnsTotal,
		m.TurnsInFlight,
		m.TurnDuration,
		m.TimeToFirstChunk,
		m.StreamChunksTotal,
		m.UploadsTotal,
		m.UploadFailuresTotal,
		m.RefreshFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the registry the collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// =============================================================================
// RECORDING HELPERS
// =============================================================================
//
// All helpers are safe on a nil *Metrics so callers can run without metrics.

// TurnStarted marks a turn as in flight.
func (m *Metrics) TurnStarted() {
	if m == nil {
		return
	}
	m.TurnsInFlight.Inc()
}

// TurnFinished records a terminal outcome and its duration.
func (m *Metrics) TurnFinished(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.TurnsInFlight.Dec()
	m.TurnsTotal.WithLabelValues(outcome).Inc()
	m.TurnDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// FirstChunk records the latency to the first chunk of a stream.
func (m *Metrics) FirstChunk(d time.Duration) {
	if m == nil {
		return
	}
	m.TimeToFirstChunk.Observe(d.Seconds())
}

// Chunk counts one received chunk of the given type ("content" or "think").
func (m *Metrics) Chunk(chunkType string) {
	if m == nil {
		return
	}
	if chunkType == "" {
		chunkType = "content"
	}
	m.StreamChunksTotal.WithLabelValues(chunkType).Inc()
}

// Uploaded counts one successful upload.
func (m *Metrics) Uploaded() {
	if m == nil {
		return
	}
	m.UploadsTotal.Inc()
}

// UploadFailed counts one failed upload batch.
func (m *Metrics) UploadFailed() {
	if m == nil {
		return
	}
	m.UploadFailuresTotal.Inc()
}

// RefreshFailed counts one failed chat reload.
func (m *Metrics) RefreshFailed() {
	if m == nil {
		return
	}
	m.RefreshFailures.Inc()
}
