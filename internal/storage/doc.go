// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists client-side preferences for docchat.
//
// Chats and messages live on the backend. What stays local is per
// installation: the selected model, the context flags, the upload overwrite
// toggle and the last opened chat. They are stored as JSON in
// ~/.docchat/prefs.json and written atomically.
package storage
