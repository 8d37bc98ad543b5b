// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package turn

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/docchat-tui/internal/attachment"
	"github.com/jeranaias/docchat-tui/internal/backend"
	"github.com/jeranaias/docchat-tui/internal/model"
	"github.com/jeranaias/docchat-tui/internal/session"
)

// fakeBackend serves the chat API routes a turn touches.
func fakeBackend(t *testing.T, uploadStatus int) (*backend.Client, chan map[string]any) {
	t.Helper()
	bodies := make(chan map[string]any, 1)

	router := mux.NewRouter()
	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/upload/", func(w http.ResponseWriter, r *http.Request) {
		file, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		_, _ = io.Copy(io.Discard, file)
		w.Header().Set("Content-Type", "application/json")
		if uploadStatus != http.StatusOK {
			w.WriteHeader(uploadStatus)
			_ = json.NewEncoder(w).Encode(map[string]string{"detail": "Unsupported file type: " + hdr.Filename})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 42, "file_name": hdr.Filename})
	}).Methods(http.MethodPost)

	api.HandleFunc("/chats/message", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		bodies <- body

		w.Header().Set("Content-Type", "text/event-stream")
		flusher, _ := w.(http.Flusher)
		for _, frame := range []string{
			`data: {"type": "think", "chunk": "reading the file"}` + "\n\n",
			`data: {"type": "content", "chunk": "The report "}` + "\n\n",
			`data: {"status": "Searching web..."}` + "\n\n",
			`data: {"type": "content", "chunk": "says yes."}` + "\n\n",
			"data: [DONE]\n\n",
		} {
			_, _ = io.WriteString(w, frame)
			if flusher != nil {
				flusher.Flush()
			}
		}
	}).Methods(http.MethodPost)

	api.HandleFunc("/chats/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]map[string]any{{"id": 5, "title": "Report"}})
	}).Methods(http.MethodGet)

	api.HandleFunc("/chats/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": 5, "title": "Report",
			"messages": []map[string]any{
				{"id": 1, "role": "user", "content": "what does it say?"},
				{"id": 2, "role": "assistant", "content": "The report says yes.", "thinking_process": "reading the file"},
			},
		})
	}).Methods(http.MethodGet)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	cfg := backend.DefaultConfig()
	cfg.BaseURL = srv.URL + "/api"
	return backend.NewClient(cfg), bodies
}

func newBackendOrchestrator(t *testing.T, client *backend.Client) (*Orchestrator, *attachment.Stager) {
	t.Helper()
	sess, err := session.NewManager(nil)
	require.NoError(t, err)
	require.NoError(t, sess.SetChatID("5"))

	stager := attachment.NewStager()
	log := zerolog.Nop()
	orch, err := New(Config{
		Timeline:  model.NewTimeline(),
		Stager:    stager,
		Resolver:  attachment.NewResolver(client, attachment.Options{}),
		Streamer:  client,
		Refresher: client,
		Session:   sess,
		Logger:    &log,
	})
	require.NoError(t, err)
	return orch, stager
}

func TestEndToEnd_UploadStreamRefresh(t *testing.T) {
	client, bodies := fakeBackend(t, http.StatusOK)
	orch, stager := newBackendOrchestrator(t, client)
	stager.Stage(attachment.BytesSource{FileName: "report.pdf", Data: []byte("%PDF")})

	ch, err := orch.Submit(context.Background(), "what does it say?")
	require.NoError(t, err)
	out := await(t, ch)
	require.Equal(t, StateCompleted, out.State, "err: %v", out.Err)
	assert.True(t, strings.HasSuffix(out.Message.Content, "The report says yes."), "streamed content = %q", out.Message.Content)
	assert.NotContains(t, out.Message.Content, "Searching")

	body := <-bodies
	assert.Equal(t, []any{float64(42)}, body["attachments"])
	assert.Equal(t, float64(5), body["chat_id"])
	assert.Equal(t, "what does it say?", body["content"])

	msgs := orch.Timeline().Snapshot()
	require.Len(t, msgs, 2)
	assert.Equal(t, model.ID("2"), msgs[1].ID, "timeline reloaded from the server")
	assert.Equal(t, "reading the file", msgs[1].ThinkingProcess)
	assert.False(t, msgs[1].Streaming)
}

func TestEndToEnd_UploadRejected(t *testing.T) {
	client, bodies := fakeBackend(t, http.StatusBadRequest)
	orch, stager := newBackendOrchestrator(t, client)
	stager.Stage(attachment.BytesSource{FileName: "tool.exe", Data: []byte("MZ")})

	ch, err := orch.Submit(context.Background(), "")
	require.NoError(t, err)
	out := await(t, ch)

	assert.Equal(t, StateErrored, out.State)
	assert.Len(t, bodies, 0, "no stream request after a rejected upload")

	msg, ok := orch.Timeline().Last()
	require.True(t, ok)
	assert.Equal(t, "**Error:** Failed to process attachments: Unsupported file type: tool.exe", msg.Content)
	assert.False(t, msg.Streaming)
}
