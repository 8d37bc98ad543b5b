// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging configures structured logging with zerolog.
//
// The terminal belongs to the TUI, so logs go to a file by default
// (~/.docchat/docchat.log). Components take a zerolog.Logger value and tag
// their records with a "component" field:
//
//	log := logging.Component("turn")
//	log.Info().Str("chat_id", id).Msg("turn started")
package logging
