// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chats, messages and turns.
//
// # Key Types
//
//   - Message: one turn half, user input or assistant output
//   - Attachment: a file reference, pending (temporary id) or durable
//   - TurnRequest: the immutable outbound unit sent to the generation backend
//   - ContextFlags: which knowledge sources the backend may use
//   - Timeline: the ordered, mutable message log of the active chat
//   - ChatSummary: an entry of the chat list
//
// # Timeline Invariant
//
// At most one message in a Timeline is streaming, and when present it is the
// last element. Append rejects anything that would break this.
//
// # Usage
//
//	tl := model.NewTimeline()
//	_ = tl.Append(model.NewUserMessage("What changed in v2?", nil))
//	p := model.NewPlaceholder("", "llama3")
//	_ = tl.Append(p)
//	tl.UpdateIfLast(p.ID, func(m *model.Message) { m.Content = "partial" })
package model
