// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/docchat-tui/internal/model"
	"github.com/jeranaias/docchat-tui/internal/turn"
)

func TestPumpCoalescesEvents(t *testing.T) {
	p := newPump(1000)
	defer p.close()

	for i := 0; i < 50; i++ {
		p.notify(turn.Event{Kind: turn.EventTimeline})
	}
	assert.Len(t, p.dirty, 1, "a burst leaves one pending redraw")

	msg, ok := p.wait()().(redrawMsg)
	require.True(t, ok)
	assert.False(t, msg.Reloaded)
	assert.Len(t, p.dirty, 0)
}

func TestPumpCarriesReloadedChats(t *testing.T) {
	p := newPump(1000)
	defer p.close()

	chats := []model.ChatSummary{{ID: "5", Title: "Report"}}
	p.notify(turn.Event{Kind: turn.EventReloaded, Chats: chats})

	msg := p.wait()().(redrawMsg)
	assert.True(t, msg.Reloaded)
	assert.Equal(t, chats, msg.Chats)

	p.notify(turn.Event{Kind: turn.EventState})
	msg = p.wait()().(redrawMsg)
	assert.False(t, msg.Reloaded, "chats are delivered once")
}

func TestPumpClose(t *testing.T) {
	p := newPump(0)
	p.close()
	assert.Nil(t, p.wait()())

	// notify after close must not block
	p.notify(turn.Event{Kind: turn.EventTimeline})
}
