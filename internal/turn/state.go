// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package turn

import (
	"errors"
	"fmt"

	"github.com/jeranaias/docchat-tui/internal/model"
)

// =============================================================================
// STATE
// =============================================================================

// State is the lifecycle position of the current or most recent turn.
type State int

const (
	// StateIdle means no turn has run yet.
	StateIdle State = iota
	StateSendingAttachments
	StateStreaming
	StateCompleted
	StateAborted
	StateErrored
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSendingAttachments:
		return "sending-attachments"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	case StateErrored:
		return "errored"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Loading reports whether the state blocks a new submission.
func (s State) Loading() bool {
	return s == StateSendingAttachments || s == StateStreaming
}

// Terminal reports whether the state ends a turn.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateAborted || s == StateErrored
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrBusy is returned by Submit while a turn is loading.
	ErrBusy = errors.New("a turn is already in progress")

	// ErrEmpty is returned by Submit with blank text and nothing staged.
	ErrEmpty = errors.New("nothing to send")

	// ErrNoChat is returned by Submit when no chat is selected.
	ErrNoChat = errors.New("no chat selected")
)

// Kind classifies a turn failure.
type Kind int

const (
	// KindAttachment means a staged upload was rejected before streaming.
	KindAttachment Kind = iota + 1
	// KindProtocol means the backend sent an in-band error or an undecodable event.
	KindProtocol
	// KindTransport means the stream could not be opened or broke early.
	KindTransport
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindAttachment:
		return "attachment"
	case KindProtocol:
		return "protocol"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// Error is a failed turn. Cancellation by Stop is never an Error.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// =============================================================================
// OUTCOME AND EVENTS
// =============================================================================

// Outcome is delivered once per turn on the channel returned by Submit.
type Outcome struct {
	TurnID string
	State  State

	// Err is a *Error when State is StateErrored.
	Err error

	// Message is the assistant placeholder as finalized, before any reload
	// replaced the timeline. It is zero when the placeholder was gone.
	Message model.Message
}

// EventKind says what changed.
type EventKind int

const (
	// EventTimeline means a message was appended or rewritten.
	EventTimeline EventKind = iota
	// EventState means the orchestrator changed state.
	EventState
	// EventReloaded means the chat list and message log were reloaded.
	EventReloaded
)

// Event is passed to the Listener after every timeline mutation and state
// change. Listeners run on the goroutine that made the change and must not
// block.
type Event struct {
	Kind   EventKind
	TurnID string
	State  State

	// Chats is the refreshed chat list for EventReloaded.
	Chats []model.ChatSummary
}

// Listener observes an Orchestrator.
type Listener func(Event)
