// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "strings"

// DefaultChatTitle is the title the backend assigns to untitled chats.
const DefaultChatTitle = "New Chat"

// Tag is a chat label.
type Tag struct {
	ID    ID     `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// ChatSummary is one entry of the chat list.
type ChatSummary struct {
	ID          ID           `json:"id"`
	Title       string       `json:"title"`
	CreatedAt   Timestamp    `json:"created_at"`
	UpdatedAt   Timestamp    `json:"updated_at"`
	Archived    bool         `json:"is_archived"`
	Tags        []Tag        `json:"tags,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// DisplayTitle returns the title, falling back to the default.
func (c ChatSummary) DisplayTitle() string {
	if t := strings.TrimSpace(c.Title); t != "" {
		return t
	}
	return DefaultChatTitle
}

// TagNames returns the tag names in order.
func (c ChatSummary) TagNames() []string {
	names := make([]string, 0, len(c.Tags))
	for _, t := range c.Tags {
		names = append(names, t.Name)
	}
	return names
}

// Chat is a chat with its full message log.
type Chat struct {
	ChatSummary
	Messages []*Message `json:"messages"`
}

// ChatUpdate is a partial update. Nil fields are left unchanged.
type ChatUpdate struct {
	Title    *string  `json:"title,omitempty"`
	Archived *bool    `json:"is_archived,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// Passage is one ranked Context Search result.
type Passage struct {
	Text  string  `json:"text"`
	DocID string  `json:"doc_id"`
	Score float64 `json:"val_score"`
	Meta  struct {
		FileName string `json:"filename,omitempty"`
	} `json:"meta"`
}

// Source returns the source filename, or "" when unknown.
func (p Passage) Source() string {
	return p.Meta.FileName
}

// ModelInfo describes one generation model offered by the registry.
type ModelInfo struct {
	Name       string `json:"name"`
	Size       int64  `json:"size,omitempty"`
	ModifiedAt string `json:"modified_at,omitempty"`
}
