// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the Bubble Tea chat screen of docchat.

The screen renders the Message Timeline owned by a turn.Orchestrator and
forwards input to it. It never writes to the timeline during a turn; it only
redraws when the orchestrator reports a change.

# Event Flow

	Orchestrator --Listener--> pump --redrawMsg--> Model.Update --> View

The orchestrator listener must not block, so the pump only marks itself
dirty. Chunk bursts collapse into one redraw and redraws are capped at
DefaultRedrawFPS with an x/time/rate limiter.

# Rendering

Assistant messages are split with content.Parse. Reasoning is shown faint
under a "Thinking..." label while it streams and "Reasoning" once done.
Finished answers are rendered as markdown with glamour.

# Keys and Commands

	Enter   send the input, or run a slash command
	Esc     stop the streaming response
	C-c     quit
	PgUp/Dn scroll

Slash commands cover attachments (/attach, /detach), session settings
(/model, /models, /flags, /overwrite), chat management (/new, /chats, /open,
/rename, /tag, /archive, /delete), /search, /prompt and /help.

# Usage

	m, err := chat.New(chat.Deps{
	    Orchestrator: orch,
	    Session:      sess,
	    Backend:      client,
	    Theme:        styles.NewTheme(cfg.UI.Theme),
	})
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
*/
package chat
