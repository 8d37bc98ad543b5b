// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Mode is the resolved background mode of a theme.
type Mode int

const (
	ModeDark Mode = iota
	ModeLight
	// ModeNoTTY renders without color, for pipes and dumb terminals.
	ModeNoTTY
)

// GlamourStyle returns the glamour standard style name for the mode.
func (m Mode) GlamourStyle() string {
	switch m {
	case ModeLight:
		return "light"
	case ModeNoTTY:
		return "notty"
	default:
		return "dark"
	}
}

func (m Mode) String() string {
	return m.GlamourStyle()
}

// ResolveMode maps a configured theme name onto a Mode. "auto" and unknown
// names use the detected profile and background.
func ResolveMode(name string, profile termenv.Profile, darkBackground bool) Mode {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "dark":
		return ModeDark
	case "light":
		return ModeLight
	case "notty":
		return ModeNoTTY
	}
	if profile == termenv.Ascii {
		return ModeNoTTY
	}
	if darkBackground {
		return ModeDark
	}
	return ModeLight
}

// Theme holds the styled components of the chat screen.
type Theme struct {
	Mode         Mode
	ColorProfile termenv.Profile

	Width  int
	Height int

	// ==========================================================================
	// HEADER AND STATUS
	// ==========================================================================

	Header       lipgloss.Style
	HeaderTitle  lipgloss.Style
	StatusBar    lipgloss.Style
	StatusKey    lipgloss.Style
	StatusValue  lipgloss.Style
	StatusActive lipgloss.Style

	// ==========================================================================
	// MESSAGES
	// ==========================================================================

	UserLabel      lipgloss.Style
	UserBody       lipgloss.Style
	AssistantLabel lipgloss.Style
	AssistantBody  lipgloss.Style
	ReasoningLabel lipgloss.Style
	Reasoning      lipgloss.Style
	Attachment     lipgloss.Style
	Placeholder    lipgloss.Style

	// ==========================================================================
	// INPUT AND FEEDBACK
	// ==========================================================================

	InputContainer lipgloss.Style
	InputPrompt    lipgloss.Style
	Spinner        lipgloss.Style
	Notice         lipgloss.Style
	ErrorText      lipgloss.Style
	Hint           lipgloss.Style
}

// NewTheme builds a theme for the configured name, detecting the terminal
// when name is "auto".
func NewTheme(name string) *Theme {
	profile := termenv.ColorProfile()
	return NewThemeFor(ResolveMode(name, profile, termenv.HasDarkBackground()), profile)
}

// NewThemeFor builds a theme for an already resolved mode.
func NewThemeFor(mode Mode, profile termenv.Profile) *Theme {
	t := &Theme{Mode: mode, ColorProfile: profile}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan).
		Background(SurfaceDim).
		Padding(0, 1)
	t.HeaderTitle = lipgloss.NewStyle().Bold(true).Foreground(Purple)

	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)
	t.StatusKey = lipgloss.NewStyle().Foreground(TextMuted)
	t.StatusValue = lipgloss.NewStyle().Foreground(TextPrimary)
	t.StatusActive = lipgloss.NewStyle().Foreground(Amber).Bold(true)

	t.UserLabel = lipgloss.NewStyle().Bold(true).Foreground(Cyan)
	t.UserBody = lipgloss.NewStyle().
		Foreground(UserBubbleFg).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(UserBubbleBorder).
		PaddingLeft(1)
	t.AssistantLabel = lipgloss.NewStyle().Bold(true).Foreground(Purple)
	t.AssistantBody = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(AssistantBubbleBorder).
		PaddingLeft(1)
	t.ReasoningLabel = lipgloss.NewStyle().Italic(true).Foreground(TextMuted)
	t.Reasoning = lipgloss.NewStyle().Faint(true).Foreground(Reasoning)
	t.Attachment = lipgloss.NewStyle().Foreground(Amber)
	t.Placeholder = lipgloss.NewStyle().Italic(true).Foreground(TextSecondary)

	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay).
		Padding(0, 1)
	t.InputPrompt = lipgloss.NewStyle().Foreground(Cyan).Bold(true)
	t.Spinner = lipgloss.NewStyle().Foreground(Purple)
	t.Notice = lipgloss.NewStyle().Foreground(Emerald)
	t.ErrorText = lipgloss.NewStyle().Foreground(Rose).Bold(true)
	t.Hint = lipgloss.NewStyle().Foreground(TextMuted).Italic(true)
}

// SetSize updates the theme dimensions.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// ContentWidth is the wrap width for message bodies: the terminal width less
// the border and padding, never below 20 columns.
func (t *Theme) ContentWidth() int {
	w := t.Width - 4
	if w < 20 {
		return 20
	}
	return w
}
