// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/jeranaias/docchat-tui/internal/model"
	"github.com/jeranaias/docchat-tui/internal/turn"
)

// =============================================================================
// TURN MESSAGES
// =============================================================================

// redrawMsg is delivered by the pump after one or more orchestrator events.
type redrawMsg struct {
	// Chats is set when a refresh reloaded the chat list.
	Chats    []model.ChatSummary
	Reloaded bool
}

// turnDoneMsg carries the outcome of a finished turn.
type turnDoneMsg struct {
	Outcome turn.Outcome
}

// =============================================================================
// BACKEND MESSAGES
// =============================================================================

type chatsLoadedMsg struct {
	Chats []model.ChatSummary
	Show  bool
	Err   error
}

type chatOpenedMsg struct {
	Chat *model.Chat
	Err  error
}

// chatCreatedMsg reports a new chat. Submit is the text that was waiting for
// a chat to exist, if any.
type chatCreatedMsg struct {
	Chat   *model.ChatSummary
	Submit string
	Err    error
}

type chatUpdatedMsg struct {
	Chat *model.ChatSummary
	Verb string
	Err  error
}

type chatDeletedMsg struct {
	ID  model.ID
	Err error
}

type modelsLoadedMsg struct {
	Models []string
	Show   bool
	Err    error
}

type searchResultsMsg struct {
	Query    string
	Passages []model.Passage
	Err      error
}

// =============================================================================
// FEEDBACK
// =============================================================================

// noticeMsg shows a one-line notice in the status area.
type noticeMsg struct {
	Text string
}

// errMsg shows an error in the status area.
type errMsg struct {
	Err error
}
