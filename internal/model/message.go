// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"

	"github.com/google/uuid"

	"github.com/jeranaias/docchat-tui/internal/util"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"

	// RoleSystem is accepted when reloading a chat but never produced locally.
	RoleSystem Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// =============================================================================
// ATTACHMENT TYPE
// =============================================================================

// TempIDPrefix marks client-generated attachment ids that have not been uploaded.
const TempIDPrefix = "temp-"

// Attachment is a file reference on a user message.
type Attachment struct {
	ID       ID     `json:"id"`
	FileName string `json:"file_name"`
	FileType string `json:"file_type,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`

	// Pending is true until the upload resolves to a durable id.
	Pending bool `json:"-"`
}

// NewPendingAttachment creates a staged attachment with a temporary id.
func NewPendingAttachment(fileName string) Attachment {
	return Attachment{
		ID:       ID(TempIDPrefix + uuid.NewString()),
		FileName: fileName,
		Pending:  true,
	}
}

// IsTemporary reports whether the id was generated client-side.
func (a Attachment) IsTemporary() bool {
	return strings.HasPrefix(string(a.ID), TempIDPrefix)
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is one entry of a chat's message log.
type Message struct {
	// Identity
	ID        ID        `json:"id"`
	Role      Role      `json:"role"`
	CreatedAt Timestamp `json:"created_at"`

	// Content is rewritten wholesale while an assistant message streams.
	Content   string `json:"content"`
	ModelUsed string `json:"model_used,omitempty"`

	Attachments []Attachment `json:"attachments,omitempty"`

	// Streaming is true from placeholder creation until a terminal event.
	// Never set on user messages and never persisted.
	Streaming bool `json:"-"`

	// Populated by the backend on reload.
	AugmentedContent string `json:"augmented_content,omitempty"`
	ThinkingProcess  string `json:"thinking_process,omitempty"`
}

// NewUserMessage creates a user message with the given attachments.
func NewUserMessage(content string, attachments []Attachment) *Message {
	var atts []Attachment
	if len(attachments) > 0 {
		atts = make([]Attachment, len(attachments))
		copy(atts, attachments)
	}
	return &Message{
		ID:          generateID(),
		Role:        RoleUser,
		CreatedAt:   Now(),
		Content:     content,
		Attachments: atts,
	}
}

// NewPlaceholder creates a streaming assistant message holding status text.
func NewPlaceholder(status, modelUsed string) *Message {
	return &Message{
		ID:        generateID(),
		Role:      RoleAssistant,
		CreatedAt: Now(),
		Content:   status,
		ModelUsed: modelUsed,
		Streaming: true,
	}
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// Clone returns a deep copy of the message.
func (m *Message) Clone() Message {
	c := *m
	if m.Attachments != nil {
		c.Attachments = make([]Attachment, len(m.Attachments))
		copy(c.Attachments, m.Attachments)
	}
	return c
}

// IsLocal reports whether the message was created client-side and has not
// been replaced by a reload yet.
func (m *Message) IsLocal() bool {
	return strings.HasPrefix(string(m.ID), localIDPrefix)
}

// Preview returns a single-line preview of the content.
func (m *Message) Preview(maxLen int) string {
	content := strings.ReplaceAll(m.Content, "\n", " ")
	return util.TruncateRunes(strings.TrimSpace(content), maxLen)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

const localIDPrefix = "local-"

// generateID creates a client-side message ID.
func generateID() ID {
	return ID(localIDPrefix + uuid.NewString())
}
