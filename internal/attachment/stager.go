// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package attachment

import (
	"sync"

	"github.com/jeranaias/docchat-tui/internal/model"
)

// Staged pairs an attachment with the file it will be uploaded from.
// Source is nil for attachments that already have a durable id.
type Staged struct {
	Attachment model.Attachment
	Source     Source
}

// Stager holds files selected for the next turn.
//
// The Stager is safe for concurrent use.
type Stager struct {
	mu    sync.Mutex
	items []Staged
}

// NewStager creates an empty stager.
func NewStager() *Stager {
	return &Stager{}
}

// Stage adds a pending attachment for src and returns it. No I/O happens.
func (s *Stager) Stage(src Source) model.Attachment {
	att := model.NewPendingAttachment(src.Name())
	if sized, ok := src.(interface{ Size() int64 }); ok {
		att.FileSize = sized.Size()
	}

	s.mu.Lock()
	s.items = append(s.items, Staged{Attachment: att, Source: src})
	s.mu.Unlock()
	return att
}

// StageExisting adds an attachment that was uploaded earlier. It passes
// through Resolve unchanged.
func (s *Stager) StageExisting(att model.Attachment) {
	att.Pending = false
	s.mu.Lock()
	s.items = append(s.items, Staged{Attachment: att})
	s.mu.Unlock()
}

// Discard removes a staged attachment and reports whether it was present.
func (s *Stager) Discard(id model.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, item := range s.items {
		if item.Attachment.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return true
		}
	}
	return false
}

// Staged returns the staged attachments in selection order.
func (s *Stager) Staged() []model.Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Attachment, len(s.items))
	for i, item := range s.items {
		out[i] = item.Attachment
	}
	return out
}

// Len returns the number of staged attachments.
func (s *Stager) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Take removes and returns everything staged.
func (s *Stager) Take() []Staged {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.items
	s.items = nil
	return items
}

// Clear drops everything staged.
func (s *Stager) Clear() {
	s.mu.Lock()
	s.items = nil
	s.mu.Unlock()
}

// Attachments extracts the attachment half of each staged item.
func Attachments(items []Staged) []model.Attachment {
	out := make([]model.Attachment, len(items))
	for i, item := range items {
		out[i] = item.Attachment
	}
	return out
}
