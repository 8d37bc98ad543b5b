// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"errors"
	"fmt"
	"sync"
)

// MaxMessages bounds the timeline. Older messages are pruned on append and
// come back on the next reload from the Chat Store.
const MaxMessages = 1000

// Timeline errors.
var (
	ErrStreamingInFlight = errors.New("timeline: a streaming message is already in flight")
	ErrUserStreaming     = errors.New("timeline: user messages cannot stream")
	ErrNilMessage        = errors.New("timeline: nil message")
)

// =============================================================================
// TIMELINE
// =============================================================================

// Timeline is the ordered message log of the active chat.
//
// One goroutine writes (the turn in flight) while the renderer reads, so all
// access goes through a lock. Readers get copies.
type Timeline struct {
	mu       sync.RWMutex
	messages []*Message
	onReload []func()
}

// NewTimeline creates an empty timeline.
func NewTimeline() *Timeline {
	return &Timeline{messages: make([]*Message, 0)}
}

// OnReload registers fn to run after every Replace.
func (t *Timeline) OnReload(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onReload = append(t.onReload, fn)
}

// Append adds msg at the end.
func (t *Timeline) Append(msg *Message) error {
	if msg == nil {
		return ErrNilMessage
	}
	if msg.Streaming && msg.Role == RoleUser {
		return ErrUserStreaming
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if n := len(t.messages); n > 0 && t.messages[n-1].Streaming {
		return ErrStreamingInFlight
	}

	t.messages = append(t.messages, msg)
	t.prune()
	return nil
}

// UpdateLast applies fn to the last message. It is a no-op on an empty
// timeline and reports whether fn ran.
func (t *Timeline) UpdateLast(fn func(*Message)) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.messages) == 0 {
		return false
	}
	last := t.messages[len(t.messages)-1]
	fn(last)
	if last.Role == RoleUser {
		last.Streaming = false
	}
	return true
}

// UpdateIfLast is the id-guarded form of UpdateLast: fn runs only when the
// last message has the given id. The orchestrator writes every turn rewrite
// through it, so a turn never touches a message it does not own.
func (t *Timeline) UpdateIfLast(id ID, fn func(*Message)) bool {
	ran := false
	t.UpdateLast(func(last *Message) {
		if last.ID == id {
			fn(last)
			ran = true
		}
	})
	return ran
}

// Replace swaps the whole log, as after a reload from the Chat Store.
// Streaming flags on the incoming messages are cleared.
func (t *Timeline) Replace(msgs []*Message) {
	t.mu.Lock()
	t.messages = make([]*Message, 0, len(msgs))
	for _, m := range msgs {
		if m == nil {
			continue
		}
		m.Streaming = false
		t.messages = append(t.messages, m)
	}
	hooks := make([]func(), len(t.onReload))
	copy(hooks, t.onReload)
	t.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

// Clear empties the timeline. It counts as a reload.
func (t *Timeline) Clear() {
	t.Replace(nil)
}

// =============================================================================
// READERS
// =============================================================================

// Len returns the number of messages.
func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Last returns a copy of the last message.
func (t *Timeline) Last() (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.messages) == 0 {
		return Message{}, false
	}
	return t.messages[len(t.messages)-1].Clone(), true
}

// Streaming returns the in-flight message, if any.
func (t *Timeline) Streaming() (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if n := len(t.messages); n > 0 && t.messages[n-1].Streaming {
		return t.messages[n-1].Clone(), true
	}
	return Message{}, false
}

// Snapshot returns copies of all messages in order.
func (t *Timeline) Snapshot() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Message, len(t.messages))
	for i, m := range t.messages {
		out[i] = m.Clone()
	}
	return out
}

// LastUser returns the most recent user message.
func (t *Timeline) LastUser() (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := len(t.messages) - 1; i >= 0; i-- {
		if t.messages[i].Role == RoleUser {
			return t.messages[i].Clone(), true
		}
	}
	return Message{}, false
}

// Check verifies that at most one message streams and that it is last.
func (t *Timeline) Check() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i, m := range t.messages {
		if !m.Streaming {
			continue
		}
		if i != len(t.messages)-1 {
			return fmt.Errorf("timeline: message %d of %d is streaming but not last", i+1, len(t.messages))
		}
		if m.Role == RoleUser {
			return ErrUserStreaming
		}
	}
	return nil
}

// prune drops the oldest messages past MaxMessages. Caller holds the lock.
func (t *Timeline) prune() {
	if over := len(t.messages) - MaxMessages; over > 0 {
		t.messages = append(t.messages[:0:0], t.messages[over:]...)
	}
}
