// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package content

import "strings"

// =============================================================================
// MARKERS
// =============================================================================

const (
	// ThinkOpen and ThinkClose delimit reasoning emitted by models such as DeepSeek-R1.
	ThinkOpen  = "<think>"
	ThinkClose = "</think>"

	// PlainOpen and PlainClose delimit reasoning emitted as plain text by Ollama's
	// CLI-style thinking output. PlainOpen must start the text.
	PlainOpen  = "Thinking..."
	PlainClose = "...done thinking"
)

// =============================================================================
// PARTS
// =============================================================================

// Parts is the result of splitting a message.
//
// The Has* flags distinguish an absent segment from an empty one: a complete
// marker pair followed by nothing yields HasAnswer with an empty Answer.
type Parts struct {
	Reasoning    string
	Answer       string
	HasReasoning bool
	HasAnswer    bool
}

// Thinking reports whether reasoning has started but no answer is available yet.
func (p Parts) Thinking() bool {
	return p.HasReasoning && !p.HasAnswer
}

// =============================================================================
// PARSING
// =============================================================================

// Parse splits text into reasoning and answer.
func Parse(text string) Parts {
	if start := strings.Index(text, ThinkOpen); start != -1 {
		return split(text[start+len(ThinkOpen):], ThinkClose)
	}

	if strings.HasPrefix(text, PlainOpen) {
		return split(text[len(PlainOpen):], PlainClose)
	}

	return Parts{Answer: text, HasAnswer: true}
}

// split handles the text following an opening marker.
func split(rest, closing string) Parts {
	end := strings.Index(rest, closing)
	if end == -1 {
		return Parts{
			Reasoning:    strings.TrimSpace(rest),
			HasReasoning: true,
		}
	}

	return Parts{
		Reasoning:    strings.TrimSpace(rest[:end]),
		Answer:       strings.TrimSpace(rest[end+len(closing):]),
		HasReasoning: true,
		HasAnswer:    true,
	}
}

// Answer returns only the final answer of text, or "" while the model is
// still thinking.
func Answer(text string) string {
	return Parse(text).Answer
}
