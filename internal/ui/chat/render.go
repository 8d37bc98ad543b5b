// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/docchat-tui/internal/content"
	"github.com/jeranaias/docchat-tui/internal/model"
	"github.com/jeranaias/docchat-tui/internal/turn"
	"github.com/jeranaias/docchat-tui/internal/ui/styles"
	"github.com/jeranaias/docchat-tui/internal/util"
)

// =============================================================================
// MESSAGE RENDERER
// =============================================================================

// renderer draws the timeline. Finished assistant answers go through glamour
// and are cached by message id; a streaming answer is wrapped as plain text
// until it completes.
//
// A renderer is owned by the Bubble Tea loop and is not safe for concurrent use.
type renderer struct {
	theme        *styles.Theme
	showThinking bool

	width int
	md    *glamour.TermRenderer
	cache map[model.ID]cachedAnswer
}

type cachedAnswer struct {
	source string
	out    string
}

func newRenderer(theme *styles.Theme, showThinking bool) *renderer {
	return &renderer{
		theme:        theme,
		showThinking: showThinking,
		cache:        make(map[model.ID]cachedAnswer),
	}
}

// setWidth rebuilds the markdown renderer for a new wrap width.
func (r *renderer) setWidth(width int) {
	if width == r.width && r.md != nil {
		return
	}
	r.width = width
	r.cache = make(map[model.ID]cachedAnswer)

	md, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(r.theme.Mode.GlamourStyle()),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		r.md = nil
		return
	}
	r.md = md
}

// timeline renders every message. spin is the current spinner frame.
func (r *renderer) timeline(msgs []model.Message, spin string) string {
	if len(msgs) == 0 {
		return r.theme.Hint.Render("No messages yet. Type a question, or /help for commands.")
	}

	parts := make([]string, 0, len(msgs))
	for i := range msgs {
		parts = append(parts, r.message(&msgs[i], spin))
	}
	return strings.Join(parts, "\n\n")
}

func (r *renderer) message(msg *model.Message, spin string) string {
	switch msg.Role {
	case model.RoleUser:
		return r.user(msg)
	case model.RoleAssistant:
		return r.assistant(msg, spin)
	default:
		return r.theme.Hint.Render(msg.Content)
	}
}

func (r *renderer) user(msg *model.Message) string {
	var b strings.Builder
	b.WriteString(r.theme.UserLabel.Render(msg.Role.DisplayName()))
	b.WriteByte('\n')

	body := msg.Content
	if strings.TrimSpace(body) == "" {
		body = r.theme.Hint.Render("(attachments only)")
	}
	if atts := r.attachments(msg.Attachments); atts != "" {
		body += "\n" + atts
	}
	b.WriteString(r.theme.UserBody.Width(r.width).Render(body))
	return b.String()
}

func (r *renderer) attachments(atts []model.Attachment) string {
	if len(atts) == 0 {
		return ""
	}
	lines := make([]string, 0, len(atts))
	for _, a := range atts {
		line := "+ " + a.FileName
		if a.Pending {
			line += " (pending)"
		}
		lines = append(lines, r.theme.Attachment.Render(line))
	}
	return strings.Join(lines, "\n")
}

func (r *renderer) assistant(msg *model.Message, spin string) string {
	var b strings.Builder
	label := msg.Role.DisplayName()
	if msg.ModelUsed != "" {
		label += " · " + msg.ModelUsed
	}
	b.WriteString(r.theme.AssistantLabel.Render(label))
	if msg.Streaming {
		b.WriteString(" " + r.theme.Spinner.Render(spin))
	}
	b.WriteByte('\n')

	if msg.Streaming && isStatus(msg.Content) {
		b.WriteString(r.theme.Placeholder.Render(msg.Content))
		return b.String()
	}

	parts := content.Parse(msg.Content)
	reasoning, hasReasoning := parts.Reasoning, parts.HasReasoning
	if !hasReasoning && msg.ThinkingProcess != "" {
		reasoning, hasReasoning = msg.ThinkingProcess, true
	}

	var body []string
	if hasReasoning && r.showThinking {
		label := "Reasoning"
		if msg.Streaming && parts.Thinking() {
			label = "Thinking..."
		}
		section := r.theme.ReasoningLabel.Render(label)
		if reasoning != "" {
			section += "\n" + r.theme.Reasoning.Width(r.width).Render(reasoning)
		}
		body = append(body, section)
	}
	if parts.HasAnswer {
		body = append(body, r.answer(msg.ID, parts.Answer, msg.Streaming))
	}
	b.WriteString(r.theme.AssistantBody.Render(strings.Join(body, "\n\n")))
	return b.String()
}

// answer renders markdown for finished messages and plain text while streaming.
func (r *renderer) answer(id model.ID, text string, streaming bool) string {
	if streaming || r.md == nil {
		return lipgloss.NewStyle().Width(r.width).Render(text)
	}
	if c, ok := r.cache[id]; ok && c.source == text {
		return c.out
	}
	out, err := r.md.Render(text)
	if err != nil {
		return lipgloss.NewStyle().Width(r.width).Render(text)
	}
	out = strings.Trim(out, "\n")
	r.cache[id] = cachedAnswer{source: text, out: out}
	return out
}

func isStatus(s string) bool {
	return s == turn.StatusProcessingFiles || s == turn.StatusGenerating
}

// =============================================================================
// PANELS
// =============================================================================

// chatList renders the chat list, marking the active chat.
func chatList(chats []model.ChatSummary, active model.ID, width int) string {
	if len(chats) == 0 {
		return "No chats. Use /new [title] to start one."
	}
	lines := make([]string, 0, len(chats)+1)
	lines = append(lines, "Chats:")
	for _, c := range chats {
		mark := "  "
		if c.ID == active {
			mark = "* "
		}
		line := fmt.Sprintf("%s%-6s %s", mark, c.ID, c.DisplayTitle())
		if tags := c.TagNames(); len(tags) > 0 {
			line += " [" + strings.Join(tags, ", ") + "]"
		}
		if c.Archived {
			line += " (archived)"
		}
		lines = append(lines, util.TruncateWidth(line, width))
	}
	return strings.Join(lines, "\n")
}

// passages renders Context Search results.
func passages(query string, results []model.Passage, width int) string {
	if len(results) == 0 {
		return fmt.Sprintf("No passages match %q.", query)
	}
	lines := []string{fmt.Sprintf("Passages for %q:", query)}
	for i, p := range results {
		src := p.Source()
		if src == "" {
			src = "unknown source"
		}
		lines = append(lines,
			fmt.Sprintf("%d. %s (score %.2f)", i+1, src, p.Score),
			"   "+util.TruncateWidth(util.SingleLine(p.Text), width-3),
		)
	}
	return strings.Join(lines, "\n")
}
