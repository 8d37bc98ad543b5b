// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/jeranaias/docchat-tui/internal/model"
	"github.com/jeranaias/docchat-tui/internal/session"
	"github.com/jeranaias/docchat-tui/internal/turn"
	"github.com/jeranaias/docchat-tui/internal/ui/styles"
)

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Backend is the part of the chat API the screen calls directly. Turns go
// through the Orchestrator instead.
type Backend interface {
	ListChats(ctx context.Context, skip, limit int) ([]model.ChatSummary, error)
	GetChat(ctx context.Context, id model.ID) (*model.Chat, error)
	CreateChat(ctx context.Context, title string) (*model.ChatSummary, error)
	DeleteChat(ctx context.Context, id model.ID) error
	UpdateChat(ctx context.Context, id model.ID, update model.ChatUpdate) (*model.ChatSummary, error)
	ModelNames(ctx context.Context) ([]string, error)
	SearchContext(ctx context.Context, chatID model.ID, text string) ([]model.Passage, error)
}

// Deps wires the screen to the engine.
type Deps struct {
	Orchestrator *turn.Orchestrator
	Session      *session.Manager
	Backend      Backend
	Theme        *styles.Theme

	// Optional.
	Logger         *zerolog.Logger
	ListLimit      int
	FallbackModels []string
	ShowThinking   bool
	RequestTimeout time.Duration
	RedrawFPS      int
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model of the chat screen.
type Model struct {
	orch  *turn.Orchestrator
	sess  *session.Manager
	api   Backend
	theme *styles.Theme
	log   zerolog.Logger
	keys  KeyMap

	// Pointers so that Bubble Tea's model copies share them.
	pump   *pump
	render *renderer

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	width  int
	height int

	chats    []model.ChatSummary
	models   []string
	panel    string
	notice   string
	lastErr  error
	showHelp bool

	listLimit int
	fallback  []string
	timeout   time.Duration
}

// New builds the chat screen and registers it as the orchestrator listener.
func New(deps Deps) (Model, error) {
	switch {
	case deps.Orchestrator == nil:
		return Model{}, errors.New("chat: orchestrator is required")
	case deps.Session == nil:
		return Model{}, errors.New("chat: session is required")
	case deps.Backend == nil:
		return Model{}, errors.New("chat: backend is required")
	}

	theme := deps.Theme
	if theme == nil {
		theme = styles.NewTheme("auto")
	}
	log := zerolog.Nop()
	if deps.Logger != nil {
		log = deps.Logger.With().Str("component", "ui").Logger()
	}
	limit := deps.ListLimit
	if limit <= 0 {
		limit = turn.DefaultListLimit
	}
	timeout := deps.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about your documents, or /help"
	ti.CharLimit = 8192
	ti.Focus()

	vp := viewport.New(80, 20)

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}

	m := Model{
		orch:      deps.Orchestrator,
		sess:      deps.Session,
		api:       deps.Backend,
		theme:     theme,
		log:       log,
		keys:      DefaultKeyMap(),
		pump:      newPump(deps.RedrawFPS),
		render:    newRenderer(theme, deps.ShowThinking),
		viewport:  vp,
		input:     ti,
		spinner:   sp,
		listLimit: limit,
		fallback:  deps.FallbackModels,
		timeout:   timeout,
	}
	m.orch.SetListener(m.pump.notify)
	return m, nil
}

// Init loads the chat list and models, and reopens the last chat.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		textinput.Blink,
		m.pump.wait(),
		m.loadChats(false),
		m.loadModels(false),
	}
	if id := m.sess.ChatID(); !id.IsZero() {
		cmds = append(cmds, m.openChat(id))
	}
	return tea.Batch(cmds...)
}

// Close detaches the screen from the orchestrator.
func (m Model) Close() {
	m.orch.SetListener(nil)
	m.pump.close()
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case redrawMsg:
		if msg.Reloaded {
			m.chats = msg.Chats
		}
		m.refreshViewport()
		return m, m.pump.wait()

	case turnDoneMsg:
		return m.handleTurnDone(msg)

	case spinner.TickMsg:
		if !m.orch.IsLoading() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refreshViewport()
		return m, cmd

	case chatsLoadedMsg:
		return m.handleChatsLoaded(msg)

	case chatOpenedMsg:
		return m.handleChatOpened(msg)

	case chatCreatedMsg:
		return m.handleChatCreated(msg)

	case chatUpdatedMsg:
		return m.handleChatUpdated(msg)

	case chatDeletedMsg:
		return m.handleChatDeleted(msg)

	case modelsLoadedMsg:
		return m.handleModelsLoaded(msg)

	case searchResultsMsg:
		if msg.Err != nil {
			return m.fail(msg.Err), nil
		}
		m.panel = passages(msg.Query, msg.Passages, m.render.width)
		return m.resized(), nil

	case noticeMsg:
		m.notice, m.lastErr = msg.Text, nil
		return m, nil

	case errMsg:
		return m.fail(msg.Err), nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.theme.SetSize(m.width, m.height)
	m.render.setWidth(m.theme.ContentWidth())

	// header + input area + status bar, measured in view.go
	const (
		headerHeight    = 1
		inputAreaHeight = 2
		statusBarHeight = 1
	)
	vh := m.height - headerHeight - inputAreaHeight - statusBarHeight - m.panelHeight()
	if vh < 1 {
		vh = 1
	}
	m.viewport.Width = max(m.width, 1)
	m.viewport.Height = vh

	const promptLen = 2
	m.input.Width = max(m.width-4-promptLen, 10)

	m.refreshViewport()
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.orch.Stop()
		m.Close()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Stop):
		if m.orch.Stop() {
			return m, nil
		}
		m.panel, m.showHelp = "", false
		return m.resized(), nil

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		return m.resized(), nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Top):
		m.viewport.GotoTop()
		return m, nil

	case key.Matches(msg, m.keys.Bottom):
		m.viewport.GotoBottom()
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		line := m.input.Value()
		m.input.Reset()
		m.panel = ""
		if name, args, ok := parseCommand(line); ok {
			cmd := m.runCommand(name, args)
			return m.resized(), cmd
		}
		return m.submit(line)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// resized recomputes the layout after a panel change.
func (m Model) resized() Model {
	if m.width == 0 {
		return m
	}
	next, _ := m.handleResize(tea.WindowSizeMsg{Width: m.width, Height: m.height})
	return next.(Model)
}

// =============================================================================
// TURNS
// =============================================================================

func (m Model) submit(text string) (tea.Model, tea.Cmd) {
	done, err := m.orch.Submit(context.Background(), text)
	switch {
	case errors.Is(err, turn.ErrNoChat):
		m.notice = "Creating a chat..."
		return m, m.createChat(titleFrom(text), text)
	case errors.Is(err, turn.ErrEmpty):
		return m, nil
	case err != nil:
		return m.fail(err), nil
	}

	m.notice, m.lastErr = "", nil
	m.refreshViewport()
	m.viewport.GotoBottom()
	return m, tea.Batch(awaitOutcome(done), m.spinner.Tick)
}

func awaitOutcome(done <-chan turn.Outcome) tea.Cmd {
	return func() tea.Msg {
		return turnDoneMsg{Outcome: <-done}
	}
}

func (m Model) handleTurnDone(msg turnDoneMsg) (tea.Model, tea.Cmd) {
	out := msg.Outcome
	switch out.State {
	case turn.StateErrored:
		m.lastErr = out.Err
		m.log.Warn().Str("turn_id", out.TurnID).Err(out.Err).Msg("turn failed")
	case turn.StateAborted:
		m.notice = "Stopped."
	default:
		m.notice, m.lastErr = "", nil
	}
	m.refreshViewport()
	return m, nil
}

// refreshViewport re-renders the timeline, following the tail when the
// view was already at the bottom.
func (m *Model) refreshViewport() {
	follow := m.viewport.AtBottom()
	m.viewport.SetContent(m.render.timeline(m.orch.Timeline().Snapshot(), m.spinner.View()))
	if follow {
		m.viewport.GotoBottom()
	}
}

// fail records err for the status line.
func (m Model) fail(err error) Model {
	m.lastErr = err
	m.notice = ""
	m.log.Debug().Err(err).Msg("command failed")
	return m
}

func (m Model) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), m.timeout)
}

// =============================================================================
// BACKEND RESULTS
// =============================================================================

func (m Model) handleChatsLoaded(msg chatsLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		return m.fail(fmtErr("load chats", msg.Err)), nil
	}
	m.chats = msg.Chats
	if msg.Show {
		m.panel = chatList(m.chats, m.sess.ChatID(), m.width)
		return m.resized(), nil
	}
	return m, nil
}

func (m Model) handleChatOpened(msg chatOpenedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		return m.fail(fmtErr("open chat", msg.Err)), nil
	}
	if m.orch.IsLoading() {
		return m.fail(turn.ErrBusy), nil
	}
	if err := m.sess.SetChatID(msg.Chat.ID); err != nil {
		m.log.Warn().Err(err).Msg("save chat selection")
	}
	m.orch.Timeline().Replace(msg.Chat.Messages)
	m.upsertChat(msg.Chat.ChatSummary)
	m.notice = "Opened " + msg.Chat.DisplayTitle()
	m.refreshViewport()
	m.viewport.GotoBottom()
	return m, nil
}

func (m Model) handleChatCreated(msg chatCreatedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		return m.fail(fmtErr("create chat", msg.Err)), nil
	}
	if err := m.sess.SetChatID(msg.Chat.ID); err != nil {
		m.log.Warn().Err(err).Msg("save chat selection")
	}
	m.upsertChat(*msg.Chat)
	if msg.Submit != "" {
		return m.submit(msg.Submit)
	}
	if !m.orch.IsLoading() {
		m.orch.Timeline().Clear()
	}
	m.notice = "New chat " + msg.Chat.DisplayTitle()
	m.refreshViewport()
	return m, nil
}

func (m Model) handleChatUpdated(msg chatUpdatedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		return m.fail(fmtErr(msg.Verb+" chat", msg.Err)), nil
	}
	m.upsertChat(*msg.Chat)
	m.notice = "Chat updated: " + msg.Verb
	return m, nil
}

func (m Model) handleChatDeleted(msg chatDeletedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		return m.fail(fmtErr("delete chat", msg.Err)), nil
	}
	kept := m.chats[:0:0]
	for _, c := range m.chats {
		if c.ID != msg.ID {
			kept = append(kept, c)
		}
	}
	m.chats = kept
	if m.sess.ChatID() == msg.ID {
		_ = m.sess.SetChatID("")
		m.orch.Timeline().Clear()
		m.refreshViewport()
	}
	m.notice = "Deleted chat " + msg.ID.String()
	return m, nil
}

func (m Model) handleModelsLoaded(msg modelsLoadedMsg) (tea.Model, tea.Cmd) {
	m.models = msg.Models
	if msg.Err != nil {
		m.log.Warn().Err(msg.Err).Strs("fallback", msg.Models).Msg("model registry unavailable")
		m.notice = "Model registry unavailable, using fallback list"
	}
	if msg.Show {
		m.panel = modelList(m.models, m.sess.Model())
		return m.resized(), nil
	}
	return m, nil
}

// upsertChat replaces or prepends a chat summary.
func (m *Model) upsertChat(c model.ChatSummary) {
	for i := range m.chats {
		if m.chats[i].ID == c.ID {
			m.chats[i] = c
			return
		}
	}
	m.chats = append([]model.ChatSummary{c}, m.chats...)
}

// activeChat returns the summary of the selected chat, if loaded.
func (m Model) activeChat() (model.ChatSummary, bool) {
	id := m.sess.ChatID()
	for _, c := range m.chats {
		if c.ID == id {
			return c, true
		}
	}
	return model.ChatSummary{}, false
}
