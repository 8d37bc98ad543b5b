// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the colors and lipgloss styles of the docchat TUI.

Colors are lipgloss AdaptiveColor values so they follow the terminal
background. The Theme resolves the configured theme name ("auto", "dark",
"light", "notty") against the detected terminal and also names the glamour
style used to render assistant markdown.

	theme := styles.NewTheme(cfg.UI.Theme)
	renderer, _ := glamour.NewTermRenderer(
		glamour.WithStandardStyle(theme.Mode.GlamourStyle()),
		glamour.WithWordWrap(theme.ContentWidth()),
	)

Status markers ([OK], [X], [!], [i]) accompany every colored status so no
state is conveyed by color alone.
*/
package styles
