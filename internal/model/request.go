// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "encoding/json"

// =============================================================================
// CONTEXT FLAGS
// =============================================================================

// ContextFlags selects the knowledge sources the backend may draw on.
type ContextFlags struct {
	UseInternalKnowledge bool `json:"use_llm_data" toml:"use_internal_knowledge"`
	UseDocuments         bool `json:"use_documents" toml:"use_documents"`
	UseWebSearch         bool `json:"use_web_search" toml:"use_web_search"`
}

// DefaultContextFlags returns internal knowledge and documents on, web search off.
func DefaultContextFlags() ContextFlags {
	return ContextFlags{
		UseInternalKnowledge: true,
		UseDocuments:         true,
		UseWebSearch:         false,
	}
}

// Flag names accepted by Toggle.
const (
	FlagInternal  = "llm"
	FlagDocuments = "docs"
	FlagWeb       = "web"
)

// Toggle flips the named flag and reports whether the name was known.
func (f *ContextFlags) Toggle(name string) bool {
	switch name {
	case FlagInternal, "internal":
		f.UseInternalKnowledge = !f.UseInternalKnowledge
	case FlagDocuments, "documents":
		f.UseDocuments = !f.UseDocuments
	case FlagWeb, "websearch":
		f.UseWebSearch = !f.UseWebSearch
	default:
		return false
	}
	return true
}

// String renders the flags compactly, e.g. "llm+docs".
func (f ContextFlags) String() string {
	var out string
	add := func(on bool, name string) {
		if !on {
			return
		}
		if out != "" {
			out += "+"
		}
		out += name
	}
	add(f.UseInternalKnowledge, FlagInternal)
	add(f.UseDocuments, FlagDocuments)
	add(f.UseWebSearch, FlagWeb)
	if out == "" {
		return "none"
	}
	return out
}

// =============================================================================
// TURN REQUEST
// =============================================================================

// TurnRequest is the outbound unit of one turn. It cannot be modified after
// construction; accessors return copies.
type TurnRequest struct {
	chatID      ID
	content     string
	model       string
	attachments []ID
	flags       ContextFlags
}

// NewTurnRequest builds a request from resolved durable attachment ids.
func NewTurnRequest(chatID ID, content, model string, attachments []ID, flags ContextFlags) TurnRequest {
	ids := make([]ID, len(attachments))
	copy(ids, attachments)
	return TurnRequest{
		chatID:      chatID,
		content:     content,
		model:       model,
		attachments: ids,
		flags:       flags,
	}
}

// ChatID returns the target chat.
func (r TurnRequest) ChatID() ID { return r.chatID }

// Content returns the user text.
func (r TurnRequest) Content() string { return r.content }

// Model returns the selected generation model.
func (r TurnRequest) Model() string { return r.model }

// Flags returns the context flags.
func (r TurnRequest) Flags() ContextFlags { return r.flags }

// Attachments returns a copy of the resolved attachment ids.
func (r TurnRequest) Attachments() []ID {
	ids := make([]ID, len(r.attachments))
	copy(ids, r.attachments)
	return ids
}

type turnRequestWire struct {
	ChatID      ID     `json:"chat_id"`
	Content     string `json:"content"`
	ModelUsed   string `json:"model_used"`
	Attachments []ID   `json:"attachments"`
	ContextFlags
}

// MarshalJSON encodes the request in the generation endpoint's wire shape.
func (r TurnRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(turnRequestWire{
		ChatID:       r.chatID,
		Content:      r.content,
		ModelUsed:    r.model,
		Attachments:  r.Attachments(),
		ContextFlags: r.flags,
	})
}
