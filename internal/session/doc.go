// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session carries the configuration that parameterizes every turn:
// the active chat, the selected model, the context flags and the upload
// overwrite toggle.
//
// The model, flags and overwrite toggle persist across restarts and are
// shared by every chat of one installation. The active chat is remembered so
// the next start can reopen it.
//
// # Model Selection
//
// ResolveModel keeps the stored selection when the registry still offers it
// and otherwise falls back to the first model the registry lists:
//
//	names, err := client.ModelNames(ctx)
//	if err != nil {
//	    names = cfg.Models.Fallback
//	}
//	selected, err := mgr.ResolveModel(names)
package session
