// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/time/rate"

	"github.com/jeranaias/docchat-tui/internal/model"
	"github.com/jeranaias/docchat-tui/internal/turn"
)

// =============================================================================
// EVENT PUMP
// =============================================================================

// DefaultRedrawFPS caps redraws while a response streams.
const DefaultRedrawFPS = 30

// pump turns orchestrator events into Bubble Tea messages.
//
// The orchestrator listener must not block, so notify only marks the pump
// dirty. Bursts of chunk events collapse into one redraw, and redraws are
// spaced by a rate limiter. Nothing is lost: every redraw reads the whole
// timeline.
type pump struct {
	dirty   chan struct{}
	limiter *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	chats    []model.ChatSummary
	reloaded bool
}

func newPump(fps int) *pump {
	if fps <= 0 {
		fps = DefaultRedrawFPS
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &pump{
		dirty:   make(chan struct{}, 1),
		limiter: rate.NewLimiter(rate.Limit(fps), 1),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// notify is the turn.Listener.
func (p *pump) notify(ev turn.Event) {
	if ev.Kind == turn.EventReloaded {
		p.mu.Lock()
		p.chats = ev.Chats
		p.reloaded = true
		p.mu.Unlock()
	}
	select {
	case p.dirty <- struct{}{}:
	default:
	}
}

// wait returns a command that blocks until the next redraw is due.
// It yields nil once the pump is closed.
func (p *pump) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-p.dirty:
		case <-p.ctx.Done():
			return nil
		}
		if err := p.limiter.Wait(p.ctx); err != nil {
			return nil
		}
		return p.take()
	}
}

func (p *pump) take() redrawMsg {
	p.mu.Lock()
	defer p.mu.Unlock()
	msg := redrawMsg{Chats: p.chats, Reloaded: p.reloaded}
	p.chats, p.reloaded = nil, false
	return msg
}

func (p *pump) close() {
	p.cancel()
}
