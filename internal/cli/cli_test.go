// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/jeranaias/docchat-tui/internal/backend"
	"github.com/jeranaias/docchat-tui/internal/config"
	"github.com/jeranaias/docchat-tui/internal/turn"
)

// =============================================================================
// ARG PARSER TESTS
// =============================================================================

func TestArgParser(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		bools    []string
		validate func(*testing.T, *ArgParser)
	}{
		{
			name: "flag with value",
			args: []string{"chats", "--limit", "5"},
			validate: func(t *testing.T, p *ArgParser) {
				if p.Subcommand() != "chats" {
					t.Errorf("Subcommand() = %q, want chats", p.Subcommand())
				}
				if p.FlagIntOrDefault("limit", 0) != 5 {
					t.Errorf("limit = %d, want 5", p.FlagIntOrDefault("limit", 0))
				}
			},
		},
		{
			name: "flag with equals",
			args: []string{"ask", "--model=llama3:8b", "hi"},
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("model") != "llama3:8b" {
					t.Errorf("Flag(model) = %q", p.Flag("model"))
				}
				if p.Positional(1) != "hi" {
					t.Errorf("Positional(1) = %q, want hi", p.Positional(1))
				}
			},
		},
		{
			name: "repeated flag keeps every value",
			args: []string{"ask", "--attach", "a.pdf", "-a", "b.txt", "--attach=c.md", "why"},
			validate: func(t *testing.T, p *ArgParser) {
				got := p.Flags("attach", "a")
				want := []string{"a.pdf", "b.txt", "c.md"}
				if !reflect.DeepEqual(got, want) {
					t.Errorf("Flags = %v, want %v", got, want)
				}
				if p.Flag("attach") != "c.md" {
					t.Errorf("Flag(attach) = %q, want last value", p.Flag("attach"))
				}
			},
		},
		{
			name:  "declared boolean does not swallow the question",
			args:  []string{"ask", "--json", "what", "changed"},
			bools: []string{"json"},
			validate: func(t *testing.T, p *ArgParser) {
				if !p.BoolFlag("json") {
					t.Error("BoolFlag(json) should be true")
				}
				if got := strings.Join(p.PositionalFrom(1), " "); got != "what changed" {
					t.Errorf("question = %q", got)
				}
			},
		},
		{
			name: "undeclared trailing flag is boolean",
			args: []string{"chats", "--verbose"},
			validate: func(t *testing.T, p *ArgParser) {
				if !p.BoolFlag("verbose") || !p.HasFlag("verbose") {
					t.Error("verbose should be set")
				}
			},
		},
		{
			name: "double dash ends flags",
			args: []string{"ask", "--", "--not-a-flag", "-x"},
			validate: func(t *testing.T, p *ArgParser) {
				if p.PositionalCount() != 3 {
					t.Errorf("PositionalCount() = %d, want 3", p.PositionalCount())
				}
				if p.HasFlag("not-a-flag") {
					t.Error("flag after -- must be positional")
				}
			},
		},
		{
			name: "explicit false",
			args: []string{"--quiet=false"},
			validate: func(t *testing.T, p *ArgParser) {
				if p.BoolFlag("quiet") {
					t.Error("quiet=false should be false")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewArgParser(tt.args, tt.bools...)
			tt.validate(t, p)
		})
	}
}

func TestFlagInt_Malformed(t *testing.T) {
	p := NewArgParser([]string{"--limit", "many"})
	if _, err := p.FlagInt("limit"); !isValidationError(err) {
		t.Errorf("FlagInt error = %v, want ValidationError", err)
	}
	if got := p.FlagIntOrDefault("limit", 7); got != 7 {
		t.Errorf("FlagIntOrDefault = %d, want 7", got)
	}
}

func TestParseBoolString(t *testing.T) {
	for _, s := range []string{"yes", "ON", "1", " true "} {
		if v, err := ParseBoolString(s); err != nil || !v {
			t.Errorf("ParseBoolString(%q) = %v, %v", s, v, err)
		}
	}
	if _, err := ParseBoolString("maybe"); err == nil {
		t.Error("ParseBoolString(maybe) should fail")
	}
}

// =============================================================================
// PARSE TESTS
// =============================================================================

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		argv    []string
		wantCmd Command
		check   func(*testing.T, Args)
		wantErr bool
	}{
		{name: "no args opens the chat screen", argv: nil, wantCmd: CmdTUI},
		{name: "tui", argv: []string{"tui", "--chat", "4"}, wantCmd: CmdTUI, check: func(t *testing.T, a Args) {
			if a.ChatID != "4" {
				t.Errorf("ChatID = %q", a.ChatID)
			}
		}},
		{name: "chat", argv: []string{"chat", "-m", "mistral"}, wantCmd: CmdChat, check: func(t *testing.T, a Args) {
			if a.Model != "mistral" {
				t.Errorf("Model = %q", a.Model)
			}
		}},
		{
			name:    "ask with attachments",
			argv:    []string{"--json", "ask", "-a", "q3.pdf", "What", "was", "revenue?", "--attach", "notes.txt", "--new"},
			wantCmd: CmdAsk,
			check: func(t *testing.T, a Args) {
				if a.Query != "What was revenue?" {
					t.Errorf("Query = %q", a.Query)
				}
				if len(a.Attach) != 2 || !a.JSON || !a.NewChat {
					t.Errorf("args = %+v", a)
				}
			},
		},
		{name: "chats limit", argv: []string{"chats", "--limit", "10"}, wantCmd: CmdChats, check: func(t *testing.T, a Args) {
			if a.Limit != 10 {
				t.Errorf("Limit = %d", a.Limit)
			}
		}},
		{name: "chats bad limit", argv: []string{"chats", "-n", "0"}, wantCmd: CmdChats, wantErr: true},
		{name: "search", argv: []string{"search", "--chat", "12", "revenue", "by", "region"}, wantCmd: CmdSearch, check: func(t *testing.T, a Args) {
			if a.Query != "revenue by region" || a.ChatID != "12" {
				t.Errorf("args = %+v", a)
			}
		}},
		{name: "search without query", argv: []string{"search"}, wantCmd: CmdSearch, wantErr: true},
		{name: "config defaults to show", argv: []string{"config"}, wantCmd: CmdConfig, check: func(t *testing.T, a Args) {
			if a.Subcommand != "show" {
				t.Errorf("Subcommand = %q", a.Subcommand)
			}
		}},
		{name: "config path", argv: []string{"config", "path"}, wantCmd: CmdConfig},
		{name: "config bad", argv: []string{"config", "edit"}, wantCmd: CmdConfig, wantErr: true},
		{name: "models", argv: []string{"models"}, wantCmd: CmdModels},
		{name: "version flag", argv: []string{"--version"}, wantCmd: CmdVersion},
		{name: "help flag wins", argv: []string{"ask", "-h"}, wantCmd: CmdHelp},
		{name: "unknown command", argv: []string{"frobnicate"}, wantCmd: CmdHelp, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, args, err := Parse(tt.argv)
			if cmd != tt.wantCmd {
				t.Errorf("Parse() cmd = %s, want %s", cmd, tt.wantCmd)
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse() err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, args)
			}
		})
	}
}

// =============================================================================
// EXIT CODE TESTS
// =============================================================================

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"validation", ErrMissingArgument("question", ""), ExitUsageError},
		{"config", fmt.Errorf("load: %w", config.ValidateErrors{{Field: "log.level", Message: "bad"}}), ExitConfigError},
		{"stopped", ErrStopped, ExitStopped},
		{"interrupted", context.Canceled, ExitStopped},
		{"deadline", fmt.Errorf("list chats: %w", context.DeadlineExceeded), ExitTimeoutError},
		{"not found", fmt.Errorf("open: %w", backend.ErrNotFound), ExitNotFoundError},
		{"unreachable", fmt.Errorf("list: %w", backend.ErrUnavailable), ExitNetworkError},
		{"transport turn", &turn.Error{Kind: turn.KindTransport, Message: "connection reset"}, ExitNetworkError},
		{"protocol turn", &turn.Error{Kind: turn.KindProtocol, Message: "model crashed"}, ExitGeneralError},
		{"other", errors.New("boom"), ExitGeneralError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetExitCode(tt.err); got != tt.want {
				t.Errorf("GetExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func isValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
