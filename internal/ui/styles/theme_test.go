// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"

	"github.com/muesli/termenv"
)

func TestResolveMode(t *testing.T) {
	tests := []struct {
		name    string
		theme   string
		profile termenv.Profile
		dark    bool
		want    Mode
	}{
		{"explicit dark", "dark", termenv.Ascii, false, ModeDark},
		{"explicit light", "Light", termenv.TrueColor, true, ModeLight},
		{"explicit notty", " notty ", termenv.TrueColor, true, ModeNoTTY},
		{"auto dark", "auto", termenv.ANSI256, true, ModeDark},
		{"auto light", "auto", termenv.ANSI256, false, ModeLight},
		{"auto ascii", "auto", termenv.Ascii, true, ModeNoTTY},
		{"unknown falls back to auto", "solarized", termenv.TrueColor, true, ModeDark},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveMode(tt.theme, tt.profile, tt.dark); got != tt.want {
				t.Errorf("ResolveMode(%q) = %v, want %v", tt.theme, got, tt.want)
			}
		})
	}
}

func TestModeGlamourStyle(t *testing.T) {
	cases := map[Mode]string{ModeDark: "dark", ModeLight: "light", ModeNoTTY: "notty"}
	for mode, want := range cases {
		if got := mode.GlamourStyle(); got != want {
			t.Errorf("%d.GlamourStyle() = %q, want %q", mode, got, want)
		}
	}
}

func TestNewThemeFor(t *testing.T) {
	theme := NewThemeFor(ModeLight, termenv.Ascii)
	if theme.Mode != ModeLight {
		t.Fatalf("Mode = %v, want light", theme.Mode)
	}
	for name, s := range map[string]string{
		"UserBody":  theme.UserBody.Render("hi"),
		"Reasoning": theme.Reasoning.Render("hi"),
		"ErrorText": theme.ErrorText.Render("hi"),
	} {
		if !strings.Contains(s, "hi") {
			t.Errorf("%s render lost its text: %q", name, s)
		}
	}
}

func TestContentWidth(t *testing.T) {
	theme := NewThemeFor(ModeDark, termenv.Ascii)
	theme.SetSize(100, 40)
	if got := theme.ContentWidth(); got != 96 {
		t.Errorf("ContentWidth() = %d, want 96", got)
	}
	theme.SetSize(10, 40)
	if got := theme.ContentWidth(); got != 20 {
		t.Errorf("ContentWidth() narrow = %d, want 20", got)
	}
}

func TestStatusRenderers(t *testing.T) {
	tests := []struct {
		render func(string) string
		marker string
	}{
		{RenderSuccess, StatusIndicators.Success},
		{RenderError, StatusIndicators.Error},
		{RenderWarning, StatusIndicators.Warning},
		{RenderInfo, StatusIndicators.Info},
	}
	for _, tt := range tests {
		out := tt.render("uploaded")
		if !strings.Contains(out, tt.marker) || !strings.Contains(out, "uploaded") {
			t.Errorf("render = %q, want marker %q and text", out, tt.marker)
		}
	}
}
