// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/docchat-tui/internal/attachment"
	"github.com/jeranaias/docchat-tui/internal/backend"
	"github.com/jeranaias/docchat-tui/internal/config"
	"github.com/jeranaias/docchat-tui/internal/model"
	"github.com/jeranaias/docchat-tui/internal/session"
	"github.com/jeranaias/docchat-tui/internal/turn"
)

// =============================================================================
// FAKES
// =============================================================================

type streamFunc func(ctx context.Context, req model.TurnRequest, fn backend.EventHandler) error

func (f streamFunc) Stream(ctx context.Context, req model.TurnRequest, fn backend.EventHandler) error {
	return f(ctx, req, fn)
}

func chunk(s string) backend.Event {
	return backend.Event{Kind: backend.EventChunk, Chunk: s, ChunkType: backend.ChunkContent}
}

func think(s string) backend.Event {
	return backend.Event{Kind: backend.EventChunk, Chunk: s, ChunkType: backend.ChunkThink}
}

var done = backend.Event{Kind: backend.EventDone}

// recorder plays a fixed event script and remembers every request.
type recorder struct {
	mu     sync.Mutex
	events []backend.Event
	reqs   []model.TurnRequest
}

func play(events ...backend.Event) *recorder {
	return &recorder{events: events}
}

func (r *recorder) Stream(_ context.Context, req model.TurnRequest, fn backend.EventHandler) error {
	r.mu.Lock()
	r.reqs = append(r.reqs, req)
	r.mu.Unlock()
	for _, ev := range r.events {
		if err := fn(ev); err != nil {
			return nil
		}
	}
	return nil
}

func (r *recorder) requests() []model.TurnRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.TurnRequest(nil), r.reqs...)
}

type fakeAPI struct {
	mu      sync.Mutex
	models  []string
	created []string
	deleted []model.ID
	updated []model.ChatUpdate
}

func (f *fakeAPI) ListChats(_ context.Context, _, limit int) ([]model.ChatSummary, error) {
	chats := []model.ChatSummary{
		{ID: "3", Title: "Q3 report", Tags: []model.Tag{{Name: "finance"}}},
		{ID: "4", Archived: true},
	}
	return chats[:min(limit, len(chats))], nil
}

func (f *fakeAPI) GetChat(_ context.Context, id model.ID) (*model.Chat, error) {
	if id == "404" {
		return nil, backend.ErrNotFound
	}
	return &model.Chat{
		ChatSummary: model.ChatSummary{ID: id, Title: "Q3 report"},
		Messages: []*model.Message{
			{
				ID: "1", Role: model.RoleUser, Content: "What was revenue?", AugmentedContent: "Context: ... What was revenue?",
				Attachments: []model.Attachment{{ID: "31", FileName: "q3.pdf"}},
			},
			{ID: "2", Role: model.RoleAssistant, Content: "<think>look at table 2</think>\n\n$4.2M"},
		},
	}, nil
}

func (f *fakeAPI) CreateChat(_ context.Context, title string) (*model.ChatSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, title)
	return &model.ChatSummary{ID: "9", Title: title}, nil
}

func (f *fakeAPI) DeleteChat(_ context.Context, id model.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeAPI) UpdateChat(_ context.Context, id model.ID, u model.ChatUpdate) (*model.ChatSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, u)
	c := &model.ChatSummary{ID: id, Title: "Q3 report"}
	if u.Title != nil {
		c.Title = *u.Title
	}
	return c, nil
}

func (f *fakeAPI) ModelNames(context.Context) ([]string, error) {
	if f.models == nil {
		return nil, backend.ErrUnavailable
	}
	return f.models, nil
}

func (f *fakeAPI) SearchContext(_ context.Context, chatID model.ID, text string) ([]model.Passage, error) {
	p := model.Passage{Text: "Revenue was\n$4.2M", Score: 0.87}
	p.Meta.FileName = "q3.pdf"
	return []model.Passage{p}, nil
}

type uploaderFunc func(name string) (model.Attachment, error)

func (f uploaderFunc) Upload(_ context.Context, name string, r io.Reader, _ bool) (model.Attachment, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return model.Attachment{}, err
	}
	return f(name)
}

// =============================================================================
// HARNESS
// =============================================================================

type testApp struct {
	*App
	api    *fakeAPI
	out    *bytes.Buffer
	errOut *bytes.Buffer
}

func newTestApp(t *testing.T, stream turn.Streamer, chatID model.ID) *testApp {
	t.Helper()
	sess, err := session.NewManager(nil)
	require.NoError(t, err)
	if chatID != "" {
		require.NoError(t, sess.SetChatID(chatID))
	}

	orch, err := turn.New(turn.Config{
		Timeline: model.NewTimeline(),
		Stager:   attachment.NewStager(),
		Resolver: attachment.NewResolver(uploaderFunc(func(name string) (model.Attachment, error) {
			return model.Attachment{ID: "7", FileName: name}, nil
		}), attachment.Options{}),
		Streamer: stream,
		Session:  sess,
	})
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Models.Fallback = []string{"llama3", "mistral"}

	ta := &testApp{api: &fakeAPI{}, out: &bytes.Buffer{}, errOut: &bytes.Buffer{}}
	ta.App = &App{
		Config:       cfg,
		Orchestrator: orch,
		Session:      sess,
		Backend:      ta.api,
		Out:          ta.out,
		Err:          ta.errOut,
		StdinIsTTY:   func() bool { return true },
		StdoutIsTTY:  func() bool { return false },
	}
	return ta
}

// =============================================================================
// ASK
// =============================================================================

func TestRunAsk_PipedOutputStreamsAnswer(t *testing.T) {
	ta := newTestApp(t, play(think("check the table"), chunk("Revenue was "), chunk("$4.2M."), done), "")

	err := ta.Run(context.Background(), CmdAsk, Args{Query: "What was Q3 revenue?"})
	require.NoError(t, err)

	assert.Equal(t, "Revenue was $4.2M.\n", ta.out.String(), "reasoning stays off piped stdout")
	assert.Equal(t, []string{"What was Q3 revenue?"}, ta.api.created)
	assert.Equal(t, model.ID("9"), ta.Session.ChatID())
}

func TestRunAsk_UsesSelectedChatAndModel(t *testing.T) {
	rec := play(chunk("ok"), done)
	ta := newTestApp(t, rec, "3")

	require.NoError(t, ta.Run(context.Background(), CmdAsk, Args{Query: "hi", Model: "mistral"}))

	assert.Empty(t, ta.api.created)
	reqs := rec.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, model.ID("3"), reqs[0].ChatID())
	assert.Equal(t, "mistral", reqs[0].Model())
}

func TestRunAsk_NewChat(t *testing.T) {
	ta := newTestApp(t, play(chunk("ok"), done), "3")

	require.NoError(t, ta.Run(context.Background(), CmdAsk, Args{Query: "fresh start", NewChat: true}))
	assert.Equal(t, []string{"fresh start"}, ta.api.created)
	assert.Equal(t, model.ID("9"), ta.Session.ChatID())
}

func TestRunAsk_Attachments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "q3.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF"), 0o600))

	rec := play(chunk("Read it."), done)
	ta := newTestApp(t, rec, "")

	require.NoError(t, ta.Run(context.Background(), CmdAsk, Args{
		Query:  "Summarize",
		Attach: []string{path},
		JSON:   true,
	}))

	reqs := rec.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, []model.ID{"7"}, reqs[0].Attachments())
	assert.Zero(t, ta.Orchestrator.Stager().Len())

	var resp struct {
		Success bool    `json:"success"`
		Data    AskData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(ta.out.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "Read it.", resp.Data.Answer)
	assert.Equal(t, "9", resp.Data.ChatID)
	assert.Equal(t, "completed", resp.Data.State)
	assert.Equal(t, []string{"q3.pdf"}, resp.Data.Files)
}

func TestRunAsk_MissingAttachmentCreatesNothing(t *testing.T) {
	ta := newTestApp(t, play(done), "")

	err := ta.Run(context.Background(), CmdAsk, Args{Query: "x", Attach: []string{"/no/such/file.pdf"}})
	require.Error(t, err)
	assert.Empty(t, ta.api.created)
}

func TestRunAsk_DirectoryAttachment(t *testing.T) {
	ta := newTestApp(t, play(done), "3")

	err := ta.Run(context.Background(), CmdAsk, Args{Query: "x", Attach: []string{t.TempDir()}})
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestRunAsk_MissingQuestion(t *testing.T) {
	ta := newTestApp(t, play(done), "3")

	err := ta.Run(context.Background(), CmdAsk, Args{})
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestRunAsk_ReadsPipedStdin(t *testing.T) {
	rec := play(chunk("ok"), done)
	ta := newTestApp(t, rec, "3")
	ta.StdinIsTTY = func() bool { return false }
	ta.In = strings.NewReader("diff --git a/x b/x\n")

	require.NoError(t, ta.Run(context.Background(), CmdAsk, Args{Query: "Summarize this"}))
	reqs := rec.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Summarize this\n\ndiff --git a/x b/x", reqs[0].Content())
}

func TestRunAsk_TurnErrorIsReturned(t *testing.T) {
	ta := newTestApp(t, play(chunk("partial "), backend.Event{Kind: backend.EventError, Error: "model crashed"}), "3")

	err := ta.Run(context.Background(), CmdAsk, Args{Query: "q"})
	var turnErr *turn.Error
	require.True(t, errors.As(err, &turnErr))
	assert.Equal(t, turn.KindProtocol, turnErr.Kind)
	assert.Contains(t, ta.out.String(), "partial **Error:** model crashed")
}

func TestRunAsk_JSONError(t *testing.T) {
	ta := newTestApp(t, play(backend.Event{Kind: backend.EventError, Error: "no model"}), "3")

	err := ta.Run(context.Background(), CmdAsk, Args{Query: "q", JSON: true})
	require.Error(t, err)

	var resp JSONResponse
	require.NoError(t, json.Unmarshal(ta.out.Bytes(), &resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Contains(t, *resp.Error, "no model")
}

func TestRunAsk_CanceledContextStops(t *testing.T) {
	started := make(chan struct{})
	block := streamFunc(func(ctx context.Context, _ model.TurnRequest, fn backend.EventHandler) error {
		_ = fn(chunk("partial"))
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	ta := newTestApp(t, block, "3")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	err := ta.Run(ctx, CmdAsk, Args{Query: "q"})
	assert.ErrorIs(t, err, ErrStopped)
	assert.Equal(t, ExitStopped, GetExitCode(err))
	assert.Contains(t, ta.out.String(), "partial"+turn.StoppedSuffix)
}

// =============================================================================
// LISTINGS
// =============================================================================

func TestRunModels(t *testing.T) {
	ta := newTestApp(t, play(done), "")
	ta.api.models = []string{"llama3", "qwen2.5"}

	require.NoError(t, ta.Run(context.Background(), CmdModels, Args{}))
	assert.Equal(t, "* llama3\n  qwen2.5\n", ta.out.String())
}

func TestRunModels_Unreachable(t *testing.T) {
	ta := newTestApp(t, play(done), "")

	err := ta.Run(context.Background(), CmdModels, Args{})
	assert.Equal(t, ExitNetworkError, GetExitCode(err))
}

func TestRunChats(t *testing.T) {
	ta := newTestApp(t, play(done), "3")

	require.NoError(t, ta.Run(context.Background(), CmdChats, Args{}))
	lines := strings.Split(strings.TrimSpace(ta.out.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "* 3"))
	assert.Contains(t, lines[0], "[finance]")
	assert.Contains(t, lines[1], model.DefaultChatTitle)
	assert.Contains(t, lines[1], "(archived)")
}

func TestRunChats_JSONLimit(t *testing.T) {
	ta := newTestApp(t, play(done), "")

	require.NoError(t, ta.Run(context.Background(), CmdChats, Args{JSON: true, Limit: 1}))
	var resp struct {
		Data []model.ChatSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(ta.out.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, model.ID("3"), resp.Data[0].ID)
}

func TestRunSearch(t *testing.T) {
	ta := newTestApp(t, play(done), "")

	err := ta.Run(context.Background(), CmdSearch, Args{Query: "revenue"})
	assert.Equal(t, ExitUsageError, GetExitCode(err), "a chat is required")

	ta.out.Reset()
	require.NoError(t, ta.Run(context.Background(), CmdSearch, Args{Query: "revenue", ChatID: "3"}))
	out := ta.out.String()
	assert.Contains(t, out, "1. q3.pdf")
	assert.Contains(t, out, "(0.87)")
	assert.Contains(t, out, "Revenue was $4.2M")
}

func TestRunConfig(t *testing.T) {
	ta := newTestApp(t, play(done), "")

	require.NoError(t, ta.Run(context.Background(), CmdConfig, Args{Subcommand: "show"}))
	assert.Contains(t, ta.out.String(), "[backend]")
	assert.Contains(t, ta.out.String(), config.DefaultBackendURL)

	ta.out.Reset()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, ta.Run(context.Background(), CmdConfig, Args{Subcommand: "path", ConfigPath: path, JSON: true}))
	var resp struct {
		Data ConfigPathData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(ta.out.Bytes(), &resp))
	assert.Equal(t, path, resp.Data.Path)
	assert.False(t, resp.Data.Exists)
}

func TestRunVersion(t *testing.T) {
	ta := newTestApp(t, play(done), "")

	require.NoError(t, ta.Run(context.Background(), CmdVersion, Args{JSON: true}))
	var resp struct {
		Data VersionData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(ta.out.Bytes(), &resp))
	assert.Equal(t, Version, resp.Data.Version)
}

func TestRun_UnknownModelRejected(t *testing.T) {
	ta := newTestApp(t, play(done), "")
	_, err := ta.Session.ResolveModel([]string{"llama3"})
	require.NoError(t, err)

	err = ta.Run(context.Background(), CmdChats, Args{Model: "gpt-9"})
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}
