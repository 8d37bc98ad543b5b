// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package content splits the accumulated text of an assistant message into a
// reasoning segment and a final answer.
//
// Two delimiter conventions are recognized, checked in this order:
//
//   - Bracketed markers: <think> ... </think>, the opening marker may appear anywhere
//   - Plain markers: "Thinking..." ... "...done thinking", anchored at the start
//
// When the closing marker has not arrived yet the whole remainder is reasoning
// and there is no answer; the message is still thinking.
//
// # Usage
//
//	parts := content.Parse(msg.Content)
//	if parts.HasReasoning {
//	    renderReasoning(parts.Reasoning)
//	}
//	if parts.HasAnswer {
//	    renderMarkdown(parts.Answer)
//	}
//
// Parse keeps no state between calls. It is meant to run on every render of a
// growing buffer.
package content
