// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/jeranaias/docchat-tui/internal/content"
	"github.com/jeranaias/docchat-tui/internal/model"
	"github.com/jeranaias/docchat-tui/internal/turn"
)

func assistant(text string) model.Message {
	return model.Message{Role: model.RoleAssistant, Content: text}
}

func thinking(reasoning string) string {
	return content.ThinkOpen + reasoning
}

func TestStreamPrinter(t *testing.T) {
	tests := []struct {
		name         string
		showThinking bool
		updates      []model.Message
		wantAnswer   string
		wantAside    []string
		notAside     []string
	}{
		{
			name:       "plain deltas",
			updates:    []model.Message{assistant("Hel"), assistant("Hello"), assistant("Hello world")},
			wantAnswer: "Hello world\n",
		},
		{
			name: "status printed once",
			updates: []model.Message{
				assistant(turn.StatusProcessingFiles),
				assistant(turn.StatusProcessingFiles),
				assistant(turn.StatusGenerating),
				assistant("ok"),
			},
			wantAnswer: "ok\n",
			wantAside:  []string{turn.StatusProcessingFiles + "\n" + turn.StatusGenerating + "\n"},
		},
		{
			name:         "reasoning then answer",
			showThinking: true,
			updates: []model.Message{
				assistant(thinking("look at")),
				assistant(thinking("look at table 2")),
				assistant(thinking("look at table 2") + content.ThinkClose + "\n\n$4.2M"),
			},
			wantAnswer: "$4.2M\n",
			wantAside:  []string{"Thinking...\n", "look at table 2\n\n"},
		},
		{
			name: "hidden reasoning",
			updates: []model.Message{
				assistant(thinking("secret")),
				assistant(thinking("secret") + content.ThinkClose + "answer"),
			},
			wantAnswer: "answer\n",
			notAside:   []string{"secret", "Thinking"},
		},
		{
			name:         "thinking process field",
			showThinking: true,
			updates: []model.Message{
				{Role: model.RoleAssistant, Content: "done", ThinkingProcess: "  from the server  "},
			},
			wantAnswer: "done\n",
			wantAside:  []string{"from the server"},
		},
		{
			name:       "rewrite is not reprinted",
			updates:    []model.Message{assistant("Hello"), assistant("Goodbye")},
			wantAnswer: "Hello\n",
		},
		{
			name:       "user messages ignored",
			updates:    []model.Message{{Role: model.RoleUser, Content: "question"}},
			wantAnswer: "",
		},
		{
			name:       "trailing newline kept",
			updates:    []model.Message{assistant("line\n")},
			wantAnswer: "line\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var answer, aside bytes.Buffer
			p := newStreamPrinter(&answer, &aside, tt.showThinking)
			for _, m := range tt.updates {
				p.update(m)
			}
			p.end()

			if answer.String() != tt.wantAnswer {
				t.Errorf("answer = %q, want %q", answer.String(), tt.wantAnswer)
			}
			for _, s := range tt.wantAside {
				if !strings.Contains(aside.String(), s) {
					t.Errorf("aside = %q, missing %q", aside.String(), s)
				}
			}
			for _, s := range tt.notAside {
				if strings.Contains(aside.String(), s) {
					t.Errorf("aside = %q, should not contain %q", aside.String(), s)
				}
			}
		})
	}
}

func TestOutcomeErr(t *testing.T) {
	if err := outcomeErr(turn.Outcome{State: turn.StateCompleted}); err != nil {
		t.Errorf("completed: %v", err)
	}
	if err := outcomeErr(turn.Outcome{State: turn.StateAborted}); !errors.Is(err, ErrStopped) {
		t.Errorf("aborted: %v, want ErrStopped", err)
	}
	cause := &turn.Error{Kind: turn.KindProtocol, Message: "model crashed"}
	if err := outcomeErr(turn.Outcome{State: turn.StateErrored, Err: cause}); !errors.Is(err, cause) {
		t.Errorf("errored: %v, want %v", err, cause)
	}
	if err := outcomeErr(turn.Outcome{State: turn.StateErrored}); err == nil {
		t.Error("errored without cause should still fail")
	}
}
