// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package turn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jeranaias/docchat-tui/internal/attachment"
	"github.com/jeranaias/docchat-tui/internal/backend"
	"github.com/jeranaias/docchat-tui/internal/content"
	"github.com/jeranaias/docchat-tui/internal/model"
	"github.com/jeranaias/docchat-tui/internal/session"
	"github.com/jeranaias/docchat-tui/internal/telemetry"
)

// Placeholder status text and sentinel suffixes written into the assistant
// message.
const (
	StatusProcessingFiles = "Processing the File..."
	StatusGenerating      = "File Processed. Generating Text..."

	StoppedSuffix    = " [Stopped]"
	NoResponseSuffix = " [No response generated]"

	errorPrefix = "**Error:** "
)

// DefaultListLimit is the number of chat summaries fetched on refresh.
const DefaultListLimit = 50

// errSuperseded stops a stream whose turn was finalized elsewhere.
var errSuperseded = errors.New("turn superseded")

// =============================================================================
// COLLABORATORS
// =============================================================================

// Streamer opens the generation stream for one turn.
type Streamer interface {
	Stream(ctx context.Context, req model.TurnRequest, fn backend.EventHandler) error
}

// Resolver turns staged attachments into durable ids.
type Resolver interface {
	Resolve(ctx context.Context, items []attachment.Staged, overwrite bool) ([]model.ID, error)
}

// Refresher reloads server state after a completed turn.
type Refresher interface {
	ListChats(ctx context.Context, skip, limit int) ([]model.ChatSummary, error)
	GetChat(ctx context.Context, id model.ID) (*model.Chat, error)
}

// SettingsSource supplies the chat, model and flags for each turn.
type SettingsSource interface {
	Settings() session.Settings
}

// Config wires an Orchestrator.
type Config struct {
	Timeline *model.Timeline
	Stager   *attachment.Stager
	Resolver Resolver
	Streamer Streamer
	Session  SettingsSource

	// Refresher is optional. Without it completed turns keep the local log.
	Refresher Refresher

	// ListLimit bounds the chat list reload. Zero means DefaultListLimit.
	ListLimit int

	Logger   *zerolog.Logger
	Metrics  *telemetry.Metrics
	Listener Listener
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Orchestrator runs one turn at a time against a Timeline.
//
// Submit never blocks on I/O; each turn runs on its own goroutine. Every
// write to a turn's placeholder goes through the orchestrator lock and is
// dropped once the turn has been finalized.
type Orchestrator struct {
	timeline  *model.Timeline
	stager    *attachment.Stager
	resolver  Resolver
	streamer  Streamer
	refresher Refresher
	session   SettingsSource
	listLimit int
	log       zerolog.Logger
	metrics   *telemetry.Metrics
	listener  Listener

	mu     sync.Mutex
	state  State
	active *run
	seq    uint64
}

// run is the per-turn bookkeeping. finalized, final and err are guarded by
// Orchestrator.mu.
type run struct {
	id            string
	seq           uint64
	chatID        model.ID
	placeholderID model.ID
	started       time.Time
	cancel        context.CancelFunc
	done          chan Outcome

	finalized bool
	final     State
	err       error
	message   model.Message
}

// New validates cfg and creates an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	switch {
	case cfg.Timeline == nil:
		return nil, errors.New("turn: timeline is required")
	case cfg.Stager == nil:
		return nil, errors.New("turn: stager is required")
	case cfg.Resolver == nil:
		return nil, errors.New("turn: resolver is required")
	case cfg.Streamer == nil:
		return nil, errors.New("turn: streamer is required")
	case cfg.Session == nil:
		return nil, errors.New("turn: session is required")
	}

	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}
	limit := cfg.ListLimit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	o := &Orchestrator{
		timeline:  cfg.Timeline,
		stager:    cfg.Stager,
		resolver:  cfg.Resolver,
		streamer:  cfg.Streamer,
		refresher: cfg.Refresher,
		session:   cfg.Session,
		listLimit: limit,
		log:       log.With().Str("component", "turn").Logger(),
		metrics:   cfg.Metrics,
		listener:  cfg.Listener,
	}

	// A reload means the previous send cycle concluded.
	o.timeline.OnReload(o.stager.Clear)
	return o, nil
}

// Timeline returns the message log the orchestrator writes to.
func (o *Orchestrator) Timeline() *model.Timeline {
	return o.timeline
}

// Stager returns the attachment staging area read by Submit.
func (o *Orchestrator) Stager() *attachment.Stager {
	return o.stager
}

// State returns the current state. After a turn ends the terminal state is
// reported until the next Submit.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// IsLoading reports whether a turn is uploading or streaming.
func (o *Orchestrator) IsLoading() bool {
	return o.State().Loading()
}

// SetListener replaces the listener. Pass nil to stop notifications.
func (o *Orchestrator) SetListener(fn Listener) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.listener = fn
}

// =============================================================================
// SUBMIT / STOP
// =============================================================================

// Submit starts a turn with text and everything currently staged. It appends
// the user message and the placeholder before returning. The returned
// channel receives exactly one Outcome and is then closed.
func (o *Orchestrator) Submit(ctx context.Context, text string) (<-chan Outcome, error) {
	o.mu.Lock()

	if o.state.Loading() {
		o.mu.Unlock()
		return nil, ErrBusy
	}
	if _, streaming := o.timeline.Streaming(); streaming {
		o.mu.Unlock()
		return nil, ErrBusy
	}
	if strings.TrimSpace(text) == "" && o.stager.Len() == 0 {
		o.mu.Unlock()
		return nil, ErrEmpty
	}
	settings := o.session.Settings()
	if settings.ChatID.IsZero() {
		o.mu.Unlock()
		return nil, ErrNoChat
	}

	items := o.stager.Take()
	status := ""
	if len(items) > 0 {
		status = StatusProcessingFiles
	}
	user := model.NewUserMessage(text, attachment.Attachments(items))
	placeholder := model.NewPlaceholder(status, settings.Model)

	if err := o.timeline.Append(user); err != nil {
		o.mu.Unlock()
		return nil, fmt.Errorf("append user message: %w", err)
	}
	if err := o.timeline.Append(placeholder); err != nil {
		o.mu.Unlock()
		return nil, fmt.Errorf("append placeholder: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	o.seq++
	r := &run{
		id:            uuid.NewString(),
		seq:           o.seq,
		chatID:        settings.ChatID,
		placeholderID: placeholder.ID,
		started:       time.Now(),
		cancel:        cancel,
		done:          make(chan Outcome, 1),
	}
	o.active = r
	o.state = StateSendingAttachments
	o.mu.Unlock()

	o.metrics.TurnStarted()
	o.log.Info().
		Str("turn_id", r.id).
		Str("chat_id", r.chatID.String()).
		Str("model", settings.Model).
		Str("flags", settings.Flags.String()).
		Int("attachments", len(items)).
		Msg("turn started")

	o.notify(Event{Kind: EventTimeline, TurnID: r.id, State: StateSendingAttachments})
	o.notify(Event{Kind: EventState, TurnID: r.id, State: StateSendingAttachments})

	go o.execute(runCtx, r, items, text, settings)
	return r.done, nil
}

// Stop cancels the active turn and marks its placeholder " [Stopped]". It
// reports false when nothing is in flight.
func (o *Orchestrator) Stop() bool {
	o.mu.Lock()
	r := o.active
	o.mu.Unlock()
	if r == nil {
		return false
	}
	return o.abort(r)
}

func (o *Orchestrator) abort(r *run) bool {
	return o.finalize(r, StateAborted, nil, func(m *model.Message) {
		m.Content += StoppedSuffix
	})
}

// =============================================================================
// TURN EXECUTION
// =============================================================================

func (o *Orchestrator) execute(ctx context.Context, r *run, items []attachment.Staged, text string, s session.Settings) {
	defer o.finish(r)
	defer r.cancel()

	var ids []model.ID
	if len(items) > 0 {
		var err error
		ids, err = o.resolver.Resolve(ctx, items, s.Overwrite)
		if err != nil {
			if ctx.Err() != nil {
				o.abort(r)
				return
			}
			o.failAttachments(r, err)
			return
		}
		if !o.write(r, func(m *model.Message) { m.Content = StatusGenerating }) {
			return
		}
	}

	if !o.transition(r, StateStreaming) {
		return
	}

	req := model.NewTurnRequest(s.ChatID, text, s.Model, ids, s.Flags)
	st := &streamState{opened: time.Now()}
	err := o.streamer.Stream(ctx, req, func(ev backend.Event) error {
		return o.apply(r, st, ev)
	})

	if err != nil && !o.isFinalized(r) {
		var perr *backend.ProtocolError
		switch {
		case errors.As(err, &perr):
			o.failStream(r, &Error{Kind: KindProtocol, Message: perr.Error(), Cause: err})
		case ctx.Err() != nil:
			o.abort(r)
		default:
			o.failStream(r, &Error{Kind: KindTransport, Message: transportMessage(err), Cause: err})
		}
	}

	if o.finalState(r) == StateCompleted {
		o.refresh(context.WithoutCancel(ctx), r)
	}
}

// streamState is local to one turn's stream.
type streamState struct {
	opened     time.Time
	firstChunk bool
	inThink    bool
	buf        strings.Builder
}

// appendChunk adds a chunk to the buffer. Reasoning chunks are wrapped in
// think markers so the content parser can split them from the answer.
func (s *streamState) appendChunk(ev backend.Event) {
	think := ev.ChunkType == backend.ChunkThink
	switch {
	case think && !s.inThink:
		s.buf.WriteString(content.ThinkOpen)
		s.inThink = true
	case !think && s.inThink:
		s.buf.WriteString(content.ThinkClose)
		s.buf.WriteString("\n\n")
		s.inThink = false
	}
	s.buf.WriteString(ev.Chunk)
}

// apply handles one stream event in arrival order.
func (o *Orchestrator) apply(r *run, st *streamState, ev backend.Event) error {
	switch ev.Kind {
	case backend.EventChunk:
		if !st.firstChunk {
			st.firstChunk = true
			st.buf.Reset()
			o.metrics.FirstChunk(time.Since(st.opened))
		}
		o.metrics.Chunk(ev.ChunkType)
		st.appendChunk(ev)
		text := st.buf.String()
		if !o.write(r, func(m *model.Message) { m.Content = text }) {
			return errSuperseded
		}

	case backend.EventError:
		st.buf.WriteString(errorPrefix + ev.Error)
		text := st.buf.String()
		o.finalize(r, StateErrored, &Error{Kind: KindProtocol, Message: ev.Error}, func(m *model.Message) {
			m.Content = text
		})

	case backend.EventDone:
		o.finalize(r, StateCompleted, nil, nil)

	case backend.EventClosed:
		seen := st.firstChunk
		o.finalize(r, StateCompleted, nil, func(m *model.Message) {
			if !seen {
				m.Content += NoResponseSuffix
			}
		})
	}
	return nil
}

func (o *Orchestrator) failAttachments(r *run, err error) {
	detail := err.Error()
	var failure *attachment.Failure
	if errors.As(err, &failure) {
		detail = failure.Detail
	}
	o.metrics.UploadFailed()

	terr := &Error{Kind: KindAttachment, Message: detail, Cause: err}
	o.finalize(r, StateErrored, terr, func(m *model.Message) {
		m.Content = errorPrefix + "Failed to process attachments: " + detail
	})
}

func (o *Orchestrator) failStream(r *run, terr *Error) {
	o.finalize(r, StateErrored, terr, func(m *model.Message) {
		m.Content += "\n\n" + errorPrefix + terr.Message
	})
}

// transportMessage picks the user-facing text for a transport failure.
func transportMessage(err error) string {
	var cerr *backend.ClientError
	if errors.As(err, &cerr) && (cerr.Status != 0 || cerr.Type == backend.ErrTypeTimeout) {
		return cerr.Message
	}
	return err.Error()
}

// =============================================================================
// GUARDED WRITES
// =============================================================================

// write applies fn to the placeholder while r is the live turn.
func (o *Orchestrator) write(r *run, fn func(*model.Message)) bool {
	o.mu.Lock()
	if o.active != r || r.finalized {
		o.mu.Unlock()
		return false
	}
	o.timeline.UpdateIfLast(r.placeholderID, fn)
	o.mu.Unlock()

	o.notify(Event{Kind: EventTimeline, TurnID: r.id, State: o.State()})
	return true
}

// transition moves the live turn to a non-terminal state.
func (o *Orchestrator) transition(r *run, state State) bool {
	o.mu.Lock()
	if o.active != r || r.finalized {
		o.mu.Unlock()
		return false
	}
	o.state = state
	o.mu.Unlock()

	o.notify(Event{Kind: EventState, TurnID: r.id, State: state})
	return true
}

// finalize applies the last rewrite, clears the streaming flag and moves the
// turn to a terminal state. Only the first call for a turn has any effect.
func (o *Orchestrator) finalize(r *run, state State, err error, fn func(*model.Message)) bool {
	o.mu.Lock()
	if o.active != r || r.finalized {
		o.mu.Unlock()
		return false
	}
	o.timeline.UpdateIfLast(r.placeholderID, func(m *model.Message) {
		if fn != nil {
			fn(m)
		}
		m.Streaming = false
		r.message = m.Clone()
	})
	r.finalized = true
	r.final = state
	r.err = err
	o.state = state
	o.active = nil
	o.mu.Unlock()

	r.cancel()

	o.notify(Event{Kind: EventTimeline, TurnID: r.id, State: state})
	o.notify(Event{Kind: EventState, TurnID: r.id, State: state})
	return true
}

func (o *Orchestrator) isFinalized(r *run) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return r.finalized
}

func (o *Orchestrator) finalState(r *run) State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return r.final
}

// finish delivers the outcome. A turn that somehow ended without a terminal
// event is finalized as a transport failure so its placeholder never stays
// in flight.
func (o *Orchestrator) finish(r *run) {
	if !o.isFinalized(r) {
		o.failStream(r, &Error{Kind: KindTransport, Message: "stream ended unexpectedly"})
	}

	o.mu.Lock()
	out := Outcome{TurnID: r.id, State: r.final, Err: r.err, Message: r.message}
	o.mu.Unlock()

	elapsed := time.Since(r.started)
	o.metrics.TurnFinished(outcomeLabel(out.State), elapsed)

	ev := o.log.Info()
	if out.Err != nil {
		ev = o.log.Warn().Err(out.Err)
	}
	ev.Str("turn_id", r.id).
		Str("chat_id", r.chatID.String()).
		Str("state", out.State.String()).
		Dur("elapsed", elapsed).
		Msg("turn finished")

	r.done <- out
	close(r.done)
}

func outcomeLabel(s State) string {
	switch s {
	case StateCompleted:
		return telemetry.OutcomeCompleted
	case StateAborted:
		return telemetry.OutcomeAborted
	default:
		return telemetry.OutcomeErrored
	}
}

// =============================================================================
// REFRESH
// =============================================================================

// refresh reloads the chat list and the turn's chat from the server. The
// timeline is replaced only when no newer turn has started.
func (o *Orchestrator) refresh(ctx context.Context, r *run) {
	if o.refresher == nil {
		return
	}

	chats, err := o.refresher.ListChats(ctx, 0, o.listLimit)
	if err != nil {
		o.metrics.RefreshFailed()
		o.log.Warn().Err(err).Str("turn_id", r.id).Msg("chat list refresh failed")
	}

	chat, err := o.refresher.GetChat(ctx, r.chatID)
	if err != nil {
		o.metrics.RefreshFailed()
		o.log.Warn().Err(err).
			Str("turn_id", r.id).
			Str("chat_id", r.chatID.String()).
			Msg("chat reload failed, keeping local messages")
	}

	o.mu.Lock()
	current := o.active == nil && o.seq == r.seq
	if current && chat != nil {
		o.timeline.Replace(chat.Messages)
	}
	o.mu.Unlock()

	if current && (chat != nil || chats != nil) {
		o.notify(Event{Kind: EventReloaded, TurnID: r.id, State: StateCompleted, Chats: chats})
	}
}

// =============================================================================
// NOTIFICATION
// =============================================================================

func (o *Orchestrator) notify(ev Event) {
	o.mu.Lock()
	fn := o.listener
	o.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}
