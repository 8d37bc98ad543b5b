// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/docchat-tui/internal/attachment"
	"github.com/jeranaias/docchat-tui/internal/content"
	"github.com/jeranaias/docchat-tui/internal/model"
	"github.com/jeranaias/docchat-tui/internal/util"
)

// maxStdinQuestion bounds a question read from a pipe.
const maxStdinQuestion = 1 << 20

// RunAsk runs one turn and prints the answer.
//
// On a terminal, status lines and reasoning stream to stderr and the finished
// answer is rendered as markdown. Piped output receives the raw answer as it
// streams. With --json a single envelope is written when the turn ends.
func (a *App) RunAsk(ctx context.Context, args Args) error {
	question, err := a.question(args)
	if err != nil {
		return err
	}

	paths := make([]string, 0, len(args.Attach))
	for _, p := range args.Attach {
		path, err := checkFile(p)
		if err != nil {
			return err
		}
		paths = append(paths, path)
	}

	// Switching chats clears the stager, so stage afterwards.
	if err := a.ensureChat(ctx, question, args.NewChat); err != nil {
		return err
	}
	a.loadModels(ctx)

	files := make([]string, 0, len(paths))
	for _, path := range paths {
		files = append(files, a.Orchestrator.Stager().Stage(attachment.FileSource(path)).FileName)
	}

	rendered := a.stdoutTTY() && !args.JSON
	var p *streamPrinter
	switch {
	case args.JSON:
		p = newStreamPrinter(io.Discard, io.Discard, false)
	case rendered:
		aside := a.Err
		if args.Quiet {
			aside = io.Discard
		}
		p = newStreamPrinter(io.Discard, aside, a.showThinking(args))
	default:
		p = newStreamPrinter(a.Out, io.Discard, false)
	}

	started := time.Now()
	out, err := a.runTurn(ctx, question, p)
	if err != nil {
		return err
	}

	last, _ := a.Orchestrator.Timeline().Last()
	parts := content.Parse(last.Content)
	reasoning := parts.Reasoning
	if reasoning == "" {
		reasoning = last.ThinkingProcess
	}

	switch {
	case args.JSON:
		data := AskData{
			ChatID:     a.Session.ChatID().String(),
			TurnID:     out.TurnID,
			State:      out.State.String(),
			Model:      last.ModelUsed,
			Answer:     parts.Answer,
			Reasoning:  reasoning,
			Files:      files,
			DurationMs: time.Since(started).Milliseconds(),
		}
		if turnErr := outcomeErr(out); turnErr != nil {
			resp := NewJSONErrorResponse("ask", turnErr)
			resp.Data = data
			if err := resp.Write(a.Out); err != nil {
				return err
			}
			return turnErr
		}
		return NewJSONResponse("ask", data).Write(a.Out)

	case rendered:
		fmt.Fprint(a.Out, a.renderMarkdown(parts.Answer))
	}
	return outcomeErr(out)
}

// question returns the positional question, or stdin when it is piped.
// Piped text follows a positional question as a separate block.
func (a *App) question(args Args) (string, error) {
	q := args.Query
	if !a.stdinTTY() {
		data, err := io.ReadAll(io.LimitReader(a.in(), maxStdinQuestion))
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		if piped := strings.TrimSpace(string(data)); piped != "" {
			if q != "" {
				q += "\n\n"
			}
			q += piped
		}
	}
	if q == "" && len(args.Attach) == 0 {
		return "", ErrMissingArgument("question", `docchat ask "What does the report conclude?"`)
	}
	return q, nil
}

// ensureChat selects a chat for the turn, creating one when none is selected
// or a new one was asked for. Leaving a chat clears the timeline, which
// also drops staged files.
func (a *App) ensureChat(ctx context.Context, question string, fresh bool) error {
	prev := a.Session.ChatID()
	if !fresh && !prev.IsZero() {
		return nil
	}
	rctx, cancel := a.requestContext(ctx)
	defer cancel()
	c, err := a.Backend.CreateChat(rctx, titleFrom(question))
	if err != nil {
		return fmt.Errorf("create chat: %w", err)
	}
	if err := a.Session.SetChatID(c.ID); err != nil {
		a.Logger.Warn().Err(err).Msg("save chat selection")
	}
	if !prev.IsZero() {
		a.Orchestrator.Timeline().Clear()
	}
	return nil
}

func (a *App) renderMarkdown(text string) string {
	theme := "auto"
	if a.Config != nil {
		theme = a.Config.UI.Theme
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(GlamourStyle(theme)),
		glamour.WithWordWrap(min(GetTerminalWidth(), 120)),
	)
	if err != nil {
		return text + "\n"
	}
	out, err := r.Render(text)
	if err != nil {
		return text + "\n"
	}
	return out
}

// =============================================================================
// HELPERS
// =============================================================================

// checkFile expands path and requires it to be a regular file.
func checkFile(path string) (string, error) {
	path = expandHome(path)
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("attach %s: %w", path, err)
	}
	if info.IsDir() {
		return "", NewValidationError("attachment", path, "is a directory")
	}
	return path, nil
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return home + p[1:]
		}
	}
	return p
}

// titleFrom derives a chat title from the first words of a question.
func titleFrom(text string) string {
	t := util.TruncateRunes(util.SingleLine(text), 40)
	if t == "" {
		return model.DefaultChatTitle
	}
	return t
}
