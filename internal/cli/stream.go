// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jeranaias/docchat-tui/internal/content"
	"github.com/jeranaias/docchat-tui/internal/model"
	"github.com/jeranaias/docchat-tui/internal/turn"
)

// =============================================================================
// STREAM PRINTER
// =============================================================================

// streamPrinter writes the growing assistant message as deltas. Answer text
// goes to answer; status lines and reasoning go to aside. Text that was
// already written is never repeated, so a rewrite that is not an extension
// of the printed answer is not shown.
type streamPrinter struct {
	answer       io.Writer
	aside        io.Writer
	showThinking bool

	status        string
	reasoning     string
	printed       string
	asideOpen     bool
	answerStarted bool
}

func newStreamPrinter(answer, aside io.Writer, showThinking bool) *streamPrinter {
	return &streamPrinter{answer: answer, aside: aside, showThinking: showThinking}
}

// update prints whatever msg adds to what was already printed.
func (p *streamPrinter) update(msg model.Message) {
	if msg.Role != model.RoleAssistant {
		return
	}
	if msg.Content == turn.StatusProcessingFiles || msg.Content == turn.StatusGenerating {
		if msg.Content != p.status {
			p.status = msg.Content
			fmt.Fprintln(p.aside, faint(msg.Content))
		}
		return
	}

	parts := content.Parse(msg.Content)
	reasoning := parts.Reasoning
	if reasoning == "" && msg.ThinkingProcess != "" {
		reasoning = strings.TrimSpace(msg.ThinkingProcess)
	}
	if p.showThinking && reasoning != p.reasoning && strings.HasPrefix(reasoning, p.reasoning) {
		if p.reasoning == "" {
			fmt.Fprintln(p.aside, faint("Thinking..."))
		}
		fmt.Fprint(p.aside, faint(reasoning[len(p.reasoning):]))
		p.reasoning = reasoning
		p.asideOpen = true
	}

	if !parts.HasAnswer {
		return
	}
	text := parts.Answer
	if text == p.printed || !strings.HasPrefix(text, p.printed) {
		return
	}
	if p.asideOpen {
		fmt.Fprint(p.aside, "\n\n")
		p.asideOpen = false
	}
	fmt.Fprint(p.answer, text[len(p.printed):])
	p.printed = text
	p.answerStarted = true
}

// end terminates the output line.
func (p *streamPrinter) end() {
	if p.asideOpen {
		fmt.Fprintln(p.aside)
		p.asideOpen = false
	}
	if p.answerStarted && !strings.HasSuffix(p.printed, "\n") {
		fmt.Fprintln(p.answer)
	}
}

func faint(s string) string {
	return GetColorProfile().String(s).Faint().String()
}

// =============================================================================
// TURN RUNNER
// =============================================================================

// runTurn submits text and feeds p until the turn is over. The orchestrator
// listener only marks the printer dirty; all writes happen on this goroutine.
func (a *App) runTurn(ctx context.Context, text string, p *streamPrinter) (turn.Outcome, error) {
	dirty := make(chan struct{}, 1)
	a.Orchestrator.SetListener(func(turn.Event) {
		select {
		case dirty <- struct{}{}:
		default:
		}
	})
	defer a.Orchestrator.SetListener(nil)

	outcomes, err := a.Orchestrator.Submit(ctx, text)
	if err != nil {
		return turn.Outcome{}, err
	}

	tl := a.Orchestrator.Timeline()
	for {
		select {
		case <-dirty:
			if msg, ok := tl.Last(); ok {
				p.update(msg)
			}
		case out := <-outcomes:
			// The timeline may already hold the reloaded chat.
			if !out.Message.ID.IsZero() {
				p.update(out.Message)
			} else if msg, ok := tl.Last(); ok {
				p.update(msg)
			}
			p.end()
			return out, nil
		}
	}
}

// outcomeErr converts a non-completed outcome into an error.
func outcomeErr(out turn.Outcome) error {
	switch out.State {
	case turn.StateCompleted:
		return nil
	case turn.StateAborted:
		return ErrStopped
	default:
		if out.Err != nil {
			return out.Err
		}
		return fmt.Errorf("turn ended in state %s", out.State)
	}
}
