// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/docchat-tui/internal/ui/styles"
	"github.com/jeranaias/docchat-tui/internal/util"
)

// maxPanelLines bounds the info panel so the timeline stays visible.
const maxPanelLines = 12

// View renders the chat screen.
func (m Model) View() string {
	parts := []string{m.renderHeader(), m.viewport.View()}
	if p := m.renderPanel(); p != "" {
		parts = append(parts, p)
	}
	parts = append(parts, m.renderInput(), m.renderStatusBar())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// =============================================================================
// HEADER
// =============================================================================

func (m Model) renderHeader() string {
	title := "docchat"
	if c, ok := m.activeChat(); ok {
		title += " · " + c.DisplayTitle()
		if tags := c.TagNames(); len(tags) > 0 {
			title += " [" + strings.Join(tags, ", ") + "]"
		}
	} else if id := m.sess.ChatID(); !id.IsZero() {
		title += " · chat " + id.String()
	} else {
		title += " · no chat selected"
	}
	return m.theme.Header.Width(max(m.width, 1)).Render(util.TruncateWidth(title, max(m.width-2, 1)))
}

// =============================================================================
// PANEL
// =============================================================================

// panelText is the help overlay or the last command output.
func (m Model) panelText() string {
	if m.showHelp {
		return helpText(m.keys)
	}
	return m.panel
}

func (m Model) renderPanel() string {
	text := m.panelText()
	if text == "" {
		return ""
	}
	lines := strings.Split(text, "\n")
	if len(lines) > maxPanelLines {
		more := len(lines) - maxPanelLines + 1
		lines = append(lines[:maxPanelLines-1], fmt.Sprintf("... %d more lines", more))
	}
	for i, l := range lines {
		lines[i] = util.TruncateWidth(l, max(m.width-2, 1))
	}
	return m.theme.StatusBar.Width(max(m.width, 1)).Render(strings.Join(lines, "\n"))
}

func (m Model) panelHeight() int {
	p := m.renderPanel()
	if p == "" {
		return 0
	}
	return lipgloss.Height(p)
}

// =============================================================================
// INPUT
// =============================================================================

func (m Model) renderInput() string {
	staged := m.orch.Stager().Staged()
	line := m.input.View()
	if len(staged) > 0 {
		names := make([]string, 0, len(staged))
		for i, a := range staged {
			names = append(names, fmt.Sprintf("%d:%s", i+1, a.FileName))
		}
		line = m.theme.Attachment.Render("+"+strings.Join(names, " ")) + " " + line
	}
	return m.theme.InputContainer.Width(max(m.width, 1)).Render(line)
}

// =============================================================================
// STATUS BAR
// =============================================================================

func (m Model) renderStatusBar() string {
	width := max(m.width, 1)

	st := m.sess.Settings()
	state := m.orch.State()
	stateStyle := m.theme.StatusValue
	if state.Loading() {
		stateStyle = m.theme.StatusActive
	}
	right := strings.Join([]string{
		m.theme.StatusKey.Render("model ") + m.theme.StatusValue.Render(orNone(st.Model)),
		m.theme.StatusKey.Render("ctx ") + m.theme.StatusValue.Render(st.Flags.String()),
		m.theme.StatusKey.Render("overwrite ") + m.theme.StatusValue.Render(onOff(st.Overwrite)),
		stateStyle.Render(state.String()),
	}, "  ")

	// The message is truncated before the settings are.
	room := max(width-2-lipgloss.Width(right)-1, 0)
	var msg string
	switch {
	case m.lastErr != nil:
		msg = styles.RenderError(util.TruncateWidth(util.SingleLine(m.lastErr.Error()), max(room-4, 0)))
	case m.notice != "":
		msg = m.theme.Notice.Render(util.TruncateWidth(m.notice, room))
	default:
		msg = m.theme.Hint.Render(util.TruncateWidth(shortHelp(m.keys), room))
	}

	gap := max(width-2-lipgloss.Width(msg)-lipgloss.Width(right), 1)
	return m.theme.StatusBar.Width(width).Render(msg + strings.Repeat(" ", gap) + right)
}

func shortHelp(keys KeyMap) string {
	parts := make([]string, 0, 4)
	for _, k := range keys.ShortHelp() {
		h := k.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " · ")
}
