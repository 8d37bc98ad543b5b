// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_TurnLifecycle(t *testing.T) {
	m := NewMetrics()

	m.TurnStarted()
	m.TurnStarted()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.TurnsInFlight))

	m.TurnFinished(OutcomeCompleted, 2*time.Second)
	m.TurnFinished(OutcomeAborted, time.Second)

	assert.Equal(t, 0.0, testutil.ToFloat64(m.TurnsInFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TurnsTotal.WithLabelValues(OutcomeCompleted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TurnsTotal.WithLabelValues(OutcomeAborted)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.TurnsTotal.WithLabelValues(OutcomeErrored)))
}

func TestMetrics_Chunks(t *testing.T) {
	m := NewMetrics()
	m.Chunk("content")
	m.Chunk("")
	m.Chunk("think")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.StreamChunksTotal.WithLabelValues("content")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StreamChunksTotal.WithLabelValues("think")))
}

func TestMetrics_Uploads(t *testing.T) {
	m := NewMetrics()
	m.Uploaded()
	m.Uploaded()
	m.UploadFailed()
	m.RefreshFailed()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.UploadsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UploadFailuresTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RefreshFailures))
}

func TestMetrics_HistogramExposition(t *testing.T) {
	m := NewMetrics()
	m.FirstChunk(300 * time.Millisecond)

	n, err := testutil.GatherAndCount(m.Registry(), "docchat_time_to_first_chunk_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.TurnStarted()
		m.TurnFinished(OutcomeErrored, time.Second)
		m.FirstChunk(time.Second)
		m.Chunk("content")
		m.Uploaded()
		m.UploadFailed()
		m.RefreshFailed()
	})
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a, b := NewMetrics(), NewMetrics()
	a.Uploaded()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.UploadsTotal))
}

func TestServer_ServesMetrics(t *testing.T) {
	m := NewMetrics()
	m.TurnStarted()

	srv, err := m.Listen("127.0.0.1:0", zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "docchat_turns_in_flight 1"))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
