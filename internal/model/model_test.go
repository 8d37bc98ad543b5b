// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// ID TESTS
// =============================================================================

func TestID_UnmarshalNumberAndString(t *testing.T) {
	tests := []struct {
		input string
		want  ID
	}{
		{`42`, "42"},
		{`"42"`, "42"},
		{`"temp-abc"`, "temp-abc"},
		{`null`, ""},
	}

	for _, tt := range tests {
		var id ID
		if err := json.Unmarshal([]byte(tt.input), &id); err != nil {
			t.Fatalf("Unmarshal(%s) error: %v", tt.input, err)
		}
		if id != tt.want {
			t.Errorf("Unmarshal(%s) = %q, want %q", tt.input, id, tt.want)
		}
	}
}

func TestID_Marshal(t *testing.T) {
	data, err := json.Marshal([]ID{"7", "temp-x"})
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if string(data) != `[7,"temp-x"]` {
		t.Errorf("Marshal = %s", data)
	}
}

func TestTimestamp_NaiveUTC(t *testing.T) {
	var ts Timestamp
	if err := json.Unmarshal([]byte(`"2025-03-01T10:20:30.123456"`), &ts); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	want := time.Date(2025, 3, 1, 10, 20, 30, 123456000, time.UTC)
	if !ts.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", ts.Time, want)
	}

	if err := json.Unmarshal([]byte(`"yesterday"`), &ts); err == nil {
		t.Error("expected error for invalid timestamp")
	}
}

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestNewPlaceholder(t *testing.T) {
	msg := NewPlaceholder("Processing the File...", "llama3")

	if msg.Role != RoleAssistant {
		t.Errorf("Role = %q, want assistant", msg.Role)
	}
	if !msg.Streaming {
		t.Error("Streaming = false, want true")
	}
	if msg.ModelUsed != "llama3" {
		t.Errorf("ModelUsed = %q", msg.ModelUsed)
	}
	if msg.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
	if !msg.IsLocal() {
		t.Error("placeholder should carry a local id")
	}
}

func TestNewUserMessage_CopiesAttachments(t *testing.T) {
	atts := []Attachment{NewPendingAttachment("a.pdf")}
	msg := NewUserMessage("hi", atts)
	atts[0].FileName = "changed"

	if msg.Attachments[0].FileName != "a.pdf" {
		t.Error("NewUserMessage must copy the attachment slice")
	}
	if msg.Streaming {
		t.Error("user messages never stream")
	}
}

func TestNewPendingAttachment(t *testing.T) {
	a := NewPendingAttachment("report.docx")
	b := NewPendingAttachment("report.docx")

	if !a.Pending || !a.IsTemporary() {
		t.Errorf("attachment %+v should be pending with a temporary id", a)
	}
	if !strings.HasPrefix(a.ID.String(), TempIDPrefix) {
		t.Errorf("ID = %q, want prefix %q", a.ID, TempIDPrefix)
	}
	if a.ID == b.ID {
		t.Error("temporary ids must be unique")
	}
}

func TestMessage_DecodeBackendShape(t *testing.T) {
	raw := `{
		"id": 12, "chat_id": 3, "role": "assistant", "content": "Answer",
		"model_used": "llama3", "created_at": "2025-01-02T03:04:05",
		"thinking_process": "hmm", "augmented_content": null,
		"attachments": [{"id": 9, "file_name": "a.pdf", "file_type": "application/pdf", "file_size": 10, "created_at": "2025-01-02T03:04:05"}]
	}`

	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if msg.ID != "12" || msg.Role != RoleAssistant || msg.ThinkingProcess != "hmm" {
		t.Errorf("decoded message = %+v", msg)
	}
	if len(msg.Attachments) != 1 || msg.Attachments[0].ID != "9" || msg.Attachments[0].Pending {
		t.Errorf("attachments = %+v", msg.Attachments)
	}
	if msg.IsLocal() {
		t.Error("backend message reported as local")
	}
}

func TestMessage_Preview(t *testing.T) {
	msg := &Message{Content: "line one\nline two"}
	if got := msg.Preview(100); got != "line one line two" {
		t.Errorf("Preview = %q", got)
	}
	if got := msg.Preview(8); got != "line ..." {
		t.Errorf("Preview(8) = %q", got)
	}
}

// =============================================================================
// TURN REQUEST TESTS
// =============================================================================

func TestTurnRequest_WireShape(t *testing.T) {
	req := NewTurnRequest("5", "hello", "llama3", []ID{"9", "10"}, DefaultContextFlags())

	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}

	want := map[string]any{
		"chat_id":        float64(5),
		"content":        "hello",
		"model_used":     "llama3",
		"use_llm_data":   true,
		"use_documents":  true,
		"use_web_search": false,
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v, want %v", k, got[k], v)
		}
	}
	atts, ok := got["attachments"].([]any)
	if !ok || len(atts) != 2 || atts[0] != float64(9) {
		t.Errorf("attachments = %v", got["attachments"])
	}
}

func TestTurnRequest_EmptyAttachmentsEncodeAsArray(t *testing.T) {
	data, _ := json.Marshal(NewTurnRequest("1", "x", "m", nil, ContextFlags{}))
	if !strings.Contains(string(data), `"attachments":[]`) {
		t.Errorf("payload = %s, want empty attachments array", data)
	}
}

func TestTurnRequest_Immutable(t *testing.T) {
	ids := []ID{"1"}
	req := NewTurnRequest("1", "x", "m", ids, ContextFlags{})
	ids[0] = "changed"

	got := req.Attachments()
	got = append(got[:0], "mutated")
	_ = got

	if req.Attachments()[0] != "1" {
		t.Errorf("Attachments() = %v, request was mutated", req.Attachments())
	}
}

func TestContextFlags_Toggle(t *testing.T) {
	f := DefaultContextFlags()
	if f.String() != "llm+docs" {
		t.Errorf("default flags = %s", f)
	}

	if !f.Toggle(FlagWeb) || !f.UseWebSearch {
		t.Error("Toggle(web) did not enable web search")
	}
	if !f.Toggle(FlagInternal) || f.UseInternalKnowledge {
		t.Error("Toggle(llm) did not disable internal knowledge")
	}
	if f.Toggle("bogus") {
		t.Error("Toggle accepted an unknown flag")
	}
	if (ContextFlags{}).String() != "none" {
		t.Error("empty flags should render as none")
	}
}

// =============================================================================
// TIMELINE TESTS
// =============================================================================

func TestTimeline_AppendRejectsSecondStreaming(t *testing.T) {
	tl := NewTimeline()
	if err := tl.Append(NewUserMessage("q", nil)); err != nil {
		t.Fatalf("Append(user) error: %v", err)
	}
	if err := tl.Append(NewPlaceholder("", "m")); err != nil {
		t.Fatalf("Append(placeholder) error: %v", err)
	}

	err := tl.Append(NewPlaceholder("", "m"))
	if !errors.Is(err, ErrStreamingInFlight) {
		t.Errorf("second placeholder error = %v, want ErrStreamingInFlight", err)
	}
	err = tl.Append(NewUserMessage("again", nil))
	if !errors.Is(err, ErrStreamingInFlight) {
		t.Errorf("append behind streaming error = %v, want ErrStreamingInFlight", err)
	}
	if err := tl.Check(); err != nil {
		t.Errorf("Check() = %v", err)
	}
}

func TestTimeline_AppendRejectsStreamingUser(t *testing.T) {
	tl := NewTimeline()
	msg := NewUserMessage("q", nil)
	msg.Streaming = true
	if err := tl.Append(msg); !errors.Is(err, ErrUserStreaming) {
		t.Errorf("Append error = %v, want ErrUserStreaming", err)
	}
	if err := tl.Append(nil); !errors.Is(err, ErrNilMessage) {
		t.Errorf("Append(nil) error = %v", err)
	}
}

func TestTimeline_UpdateLast(t *testing.T) {
	tl := NewTimeline()
	called := false
	if tl.UpdateLast(func(*Message) { called = true }) || called {
		t.Fatal("UpdateLast on empty timeline must be a no-op")
	}

	_ = tl.Append(NewPlaceholder("status", "m"))
	tl.UpdateLast(func(m *Message) {
		m.Content = "rewritten"
		m.Streaming = false
	})

	last, ok := tl.Last()
	if !ok || last.Content != "rewritten" || last.Streaming {
		t.Errorf("Last() = %+v", last)
	}
	if _, streaming := tl.Streaming(); streaming {
		t.Error("Streaming() reported a message after it was cleared")
	}
}

func TestTimeline_UpdateIfLast(t *testing.T) {
	tl := NewTimeline()
	p := NewPlaceholder("", "m")
	if tl.UpdateIfLast(p.ID, func(*Message) { t.Error("fn ran on an empty timeline") }) {
		t.Error("UpdateIfLast on empty timeline must be a no-op")
	}
	_ = tl.Append(NewUserMessage("q", nil))
	_ = tl.Append(p)

	if tl.UpdateIfLast("other", func(m *Message) { m.Content = "x" }) {
		t.Error("UpdateIfLast ran for a foreign id")
	}
	if !tl.UpdateIfLast(p.ID, func(m *Message) { m.Content = "mine" }) {
		t.Error("UpdateIfLast did not run for the owner")
	}
	if last, _ := tl.Last(); last.Content != "mine" {
		t.Errorf("Content = %q", last.Content)
	}

	// After a reload the old placeholder id is gone.
	tl.Replace([]*Message{{ID: "srv-1", Role: RoleAssistant, Content: "saved"}})
	if tl.UpdateIfLast(p.ID, func(m *Message) { m.Content = "stale" }) {
		t.Error("UpdateIfLast wrote into a reloaded timeline")
	}
	if last, _ := tl.Last(); last.Content != "saved" {
		t.Errorf("Content = %q, want saved", last.Content)
	}
}

func TestTimeline_ReplaceRunsHooks(t *testing.T) {
	tl := NewTimeline()
	reloads := 0
	tl.OnReload(func() { reloads++ })

	_ = tl.Append(NewPlaceholder("", "m"))
	stale := &Message{ID: "1", Role: RoleAssistant, Streaming: true}
	tl.Replace([]*Message{{ID: "0", Role: RoleUser}, stale, nil})

	if reloads != 1 {
		t.Errorf("reload hooks ran %d times, want 1", reloads)
	}
	if tl.Len() != 2 {
		t.Errorf("Len() = %d, want 2", tl.Len())
	}
	if _, ok := tl.Streaming(); ok {
		t.Error("Replace must clear streaming flags")
	}

	tl.Clear()
	if tl.Len() != 0 || reloads != 2 {
		t.Errorf("Clear(): len=%d reloads=%d", tl.Len(), reloads)
	}
}

func TestTimeline_SnapshotIsCopy(t *testing.T) {
	tl := NewTimeline()
	_ = tl.Append(NewUserMessage("original", []Attachment{{ID: "1", FileName: "a"}}))

	snap := tl.Snapshot()
	snap[0].Content = "changed"
	snap[0].Attachments[0].FileName = "changed"

	last, _ := tl.Last()
	if last.Content != "original" || last.Attachments[0].FileName != "a" {
		t.Errorf("Snapshot leaked a reference: %+v", last)
	}
}

func TestTimeline_LastUser(t *testing.T) {
	tl := NewTimeline()
	if _, ok := tl.LastUser(); ok {
		t.Error("LastUser on empty timeline")
	}
	_ = tl.Append(NewUserMessage("first", nil))
	_ = tl.Append(&Message{ID: "a", Role: RoleAssistant, Content: "reply"})
	if m, ok := tl.LastUser(); !ok || m.Content != "first" {
		t.Errorf("LastUser = %+v, %v", m, ok)
	}
}

func TestTimeline_Prune(t *testing.T) {
	tl := NewTimeline()
	for i := 0; i < MaxMessages+5; i++ {
		_ = tl.Append(&Message{ID: ID("m"), Role: RoleUser})
	}
	if tl.Len() != MaxMessages {
		t.Errorf("Len() = %d, want %d", tl.Len(), MaxMessages)
	}
}
