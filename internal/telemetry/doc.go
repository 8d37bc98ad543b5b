// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry provides Prometheus metrics for docchat turns.
//
// Collectors live on a per-process registry so tests and multiple clients in
// one binary never collide on the default registry.
//
// # Key Types
//
//   - Metrics: turn, chunk and upload collectors plus recording helpers
//   - Server: optional /metrics endpoint
//
// # Usage
//
//	m := telemetry.NewMetrics()
//	m.TurnStarted()
//	defer m.TurnFinished(telemetry.OutcomeCompleted, time.Since(start))
//
// # Privacy
//
// Metrics are local-only. Message content and file names are never recorded.
package telemetry
