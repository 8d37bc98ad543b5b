// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/jeranaias/docchat-tui/internal/attachment"
	"github.com/jeranaias/docchat-tui/internal/config"
	"github.com/jeranaias/docchat-tui/internal/content"
	"github.com/jeranaias/docchat-tui/internal/model"
	"github.com/jeranaias/docchat-tui/internal/turn"
)

// historyShown is how many messages /open prints.
const historyShown = 6

// =============================================================================
// INPUT HISTORY
// =============================================================================

// lineReader is the part of liner.State the REPL uses.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

// chatInput wraps liner with a history file in the config directory.
type chatInput struct {
	line        *liner.State
	historyFile string
}

func newChatInput() *chatInput {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	in := &chatInput{line: line, historyFile: filepath.Join(dir, "chat_history")}
	if f, err := os.Open(in.historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	return in
}

func (c *chatInput) Prompt(prompt string) (string, error) {
	return c.line.Prompt(prompt)
}

func (c *chatInput) AppendHistory(item string) {
	c.line.AppendHistory(item)
}

// Close saves history with owner-only permissions and restores the terminal.
func (c *chatInput) Close() {
	if err := os.MkdirAll(filepath.Dir(c.historyFile), 0o700); err == nil {
		if f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
			_, _ = c.line.WriteHistory(f)
			f.Close()
		}
	}
	c.line.Close()
}

// =============================================================================
// CHAT HANDLER
// =============================================================================

// RunChat starts the line-mode REPL. Ctrl+C stops a streaming response;
// at the prompt it exits, as does Ctrl+D.
func (a *App) RunChat(ctx context.Context, args Args) error {
	in := newChatInput()
	defer in.Close()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	defer func() {
		signal.Stop(sig)
		close(sig)
	}()
	go func() {
		for range sig {
			a.Orchestrator.Stop()
		}
	}()

	return a.repl(ctx, in, args)
}

// repl reads lines until EOF, an aborted prompt or /quit.
func (a *App) repl(ctx context.Context, in lineReader, args Args) error {
	r := &replSession{app: a, out: a.Out, showThinking: a.showThinking(args)}
	a.loadModels(ctx)
	if !args.Quiet {
		r.welcome(ctx)
	}

	for {
		line, err := in.Prompt(r.prompt())
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(a.Out)
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		in.AppendHistory(line)

		quit, err := r.exec(ctx, line)
		if err != nil {
			fmt.Fprintln(a.Out, ErrorStyle.Render("[ERROR]")+" "+err.Error())
		}
		if quit {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// =============================================================================
// REPL SESSION
// =============================================================================

type replSession struct {
	app          *App
	out          io.Writer
	showThinking bool
}

func (r *replSession) prompt() string {
	p := "docchat"
	if id := r.app.Session.ChatID(); !id.IsZero() {
		p += ":" + id.String()
	}
	if n := r.app.Orchestrator.Stager().Len(); n > 0 {
		p += fmt.Sprintf(" +%d", n)
	}
	return PromptStyle.Render(p+">") + " "
}

func (r *replSession) welcome(ctx context.Context) {
	st := r.app.Session.Settings()
	fmt.Fprintln(r.out, TitleStyle.Render("docchat")+" "+DimStyle.Render("line mode, /help for commands"))
	fmt.Fprintln(r.out, RenderLabel("model", orNone(st.Model)))
	fmt.Fprintln(r.out, RenderLabel("context", st.Flags.String()))
	if !st.ChatID.IsZero() {
		if err := r.open(ctx, st.ChatID, false); err != nil {
			fmt.Fprintln(r.out, WarningStyle.Render("could not load chat "+st.ChatID.String()+": "+err.Error()))
		}
	}
	fmt.Fprintln(r.out)
}

// exec runs one input line.
func (r *replSession) exec(ctx context.Context, line string) (quit bool, err error) {
	if strings.HasPrefix(line, "/") {
		name, rest, _ := strings.Cut(line[1:], " ")
		return r.command(ctx, strings.ToLower(name), strings.TrimSpace(rest))
	}
	return false, r.send(ctx, line)
}

// send runs a turn, creating a chat first when none is selected.
func (r *replSession) send(ctx context.Context, text string) error {
	p := newStreamPrinter(r.out, r.out, r.showThinking)
	out, err := r.app.runTurn(ctx, text, p)
	if errors.Is(err, turn.ErrNoChat) {
		if err := r.app.ensureChat(ctx, text, false); err != nil {
			return err
		}
		fmt.Fprintln(r.out, DimStyle.Render("Started chat "+r.app.Session.ChatID().String()))
		out, err = r.app.runTurn(ctx, text, p)
	}
	if err != nil {
		return err
	}
	if err := outcomeErr(out); err != nil && !errors.Is(err, ErrStopped) {
		return err
	}
	return nil
}

// =============================================================================
// COMMANDS
// =============================================================================

type replCommand struct {
	name string
	args string
	help string
	run  func(r *replSession, ctx context.Context, args string) (bool, error)
}

var replCommands []replCommand

func init() {
	replCommands = []replCommand{
		{name: "attach", args: "<path>", help: "stage a file for the next question", run: (*replSession).cmdAttach},
		{name: "reattach", help: "stage the files of the last question again", run: (*replSession).cmdReattach},
		{name: "detach", args: "<n|id|all>", help: "remove a staged file", run: (*replSession).cmdDetach},
		{name: "model", args: "[name]", help: "show or select the model", run: (*replSession).cmdModel},
		{name: "models", help: "list available models", run: (*replSession).cmdModels},
		{name: "flags", args: "[llm|docs|web]", help: "show or toggle context sources", run: (*replSession).cmdFlags},
		{name: "overwrite", help: "toggle replacing same-named uploads", run: (*replSession).cmdOverwrite},
		{name: "new", args: "[title]", help: "start a new chat", run: (*replSession).cmdNew},
		{name: "chats", help: "list chats", run: (*replSession).cmdChats},
		{name: "open", args: "<id>", help: "switch to a chat", run: (*replSession).cmdOpen},
		{name: "rename", args: "<title>", help: "rename the current chat", run: (*replSession).cmdRename},
		{name: "tag", args: "<tag>...", help: "tag the current chat", run: (*replSession).cmdTag},
		{name: "archive", help: "archive the current chat", run: (*replSession).cmdArchive},
		{name: "delete", args: "[id]", help: "delete a chat", run: (*replSession).cmdDelete},
		{name: "search", args: "<query>", help: "search this chat's documents", run: (*replSession).cmdSearch},
		{name: "prompt", help: "show the augmented prompt of the last question", run: (*replSession).cmdPrompt},
		{name: "help", help: "show commands", run: (*replSession).cmdHelp},
		{name: "quit", help: "exit", run: func(*replSession, context.Context, string) (bool, error) { return true, nil }},
	}
}

func (r *replSession) command(ctx context.Context, name, args string) (bool, error) {
	if name == "exit" || name == "q" {
		name = "quit"
	}
	for _, c := range replCommands {
		if c.name != name {
			continue
		}
		return c.run(r, ctx, args)
	}
	return false, fmt.Errorf("unknown command /%s (try /help)", name)
}

func (r *replSession) cmdAttach(_ context.Context, args string) (bool, error) {
	if args == "" {
		return false, errors.New("usage: /attach <path>")
	}
	path, err := checkFile(args)
	if err != nil {
		return false, err
	}
	att := r.app.Orchestrator.Stager().Stage(attachment.FileSource(path))
	fmt.Fprintf(r.out, "Staged %s (%d pending)\n", att.FileName, r.app.Orchestrator.Stager().Len())
	return false, nil
}

// cmdReattach stages the uploaded files of the last user message. They keep
// their durable ids, so nothing is uploaded again.
func (r *replSession) cmdReattach(context.Context, string) (bool, error) {
	msg, ok := r.app.Orchestrator.Timeline().LastUser()
	if !ok || len(msg.Attachments) == 0 {
		return false, errors.New("the last question has no attachments")
	}
	stager := r.app.Orchestrator.Stager()
	n := 0
	for _, att := range msg.Attachments {
		if att.ID.IsZero() || att.IsTemporary() {
			continue
		}
		stager.StageExisting(att)
		n++
	}
	if n == 0 {
		return false, errors.New("the attachments of the last question were never stored; reopen the chat first")
	}
	fmt.Fprintf(r.out, "Re-attached %d file(s) (%d pending)\n", n, stager.Len())
	return false, nil
}

func (r *replSession) cmdDetach(_ context.Context, args string) (bool, error) {
	stager := r.app.Orchestrator.Stager()
	if args == "all" {
		stager.Clear()
		fmt.Fprintln(r.out, "Cleared staged files")
		return false, nil
	}
	id := model.ID(args)
	if n, err := strconv.Atoi(args); err == nil {
		items := stager.Staged()
		if n < 1 || n > len(items) {
			return false, fmt.Errorf("no staged file #%d", n)
		}
		id = items[n-1].ID
	}
	if !stager.Discard(id) {
		return false, fmt.Errorf("no staged file %q", args)
	}
	fmt.Fprintf(r.out, "Removed; %d pending\n", stager.Len())
	return false, nil
}

func (r *replSession) cmdModel(_ context.Context, args string) (bool, error) {
	if args == "" {
		fmt.Fprintln(r.out, "Model: "+orNone(r.app.Session.Model()))
		return false, nil
	}
	if err := r.app.Session.SetModel(args); err != nil {
		return false, err
	}
	fmt.Fprintln(r.out, "Model: "+args)
	return false, nil
}

func (r *replSession) cmdModels(ctx context.Context, _ string) (bool, error) {
	names := r.app.loadModels(ctx)
	selected := r.app.Session.Model()
	for _, n := range names {
		mark := "  "
		if n == selected {
			mark = "* "
		}
		fmt.Fprintln(r.out, mark+n)
	}
	return false, nil
}

func (r *replSession) cmdFlags(_ context.Context, args string) (bool, error) {
	if args == "" {
		fmt.Fprintln(r.out, "Context: "+r.app.Session.Flags().String())
		return false, nil
	}
	flags, err := r.app.Session.ToggleFlag(args)
	if err != nil {
		return false, err
	}
	fmt.Fprintln(r.out, "Context: "+flags.String())
	return false, nil
}

func (r *replSession) cmdOverwrite(context.Context, string) (bool, error) {
	on := !r.app.Session.Overwrite()
	if err := r.app.Session.SetOverwrite(on); err != nil {
		return false, err
	}
	fmt.Fprintln(r.out, "Overwrite "+onOff(on))
	return false, nil
}

func (r *replSession) cmdNew(ctx context.Context, args string) (bool, error) {
	if err := r.app.ensureChat(ctx, args, true); err != nil {
		return false, err
	}
	fmt.Fprintln(r.out, "Started chat "+r.app.Session.ChatID().String())
	return false, nil
}

func (r *replSession) cmdChats(ctx context.Context, _ string) (bool, error) {
	rctx, cancel := r.app.requestContext(ctx)
	defer cancel()
	chats, err := r.app.Backend.ListChats(rctx, 0, r.app.listLimit())
	if err != nil {
		return false, fmt.Errorf("list chats: %w", err)
	}
	writeChats(r.out, chats, r.app.Session.ChatID(), GetTerminalWidth())
	return false, nil
}

func (r *replSession) cmdOpen(ctx context.Context, args string) (bool, error) {
	if args == "" {
		return false, errors.New("usage: /open <id>")
	}
	return false, r.open(ctx, model.ID(args), true)
}

// open loads a chat into the timeline and prints its tail.
func (r *replSession) open(ctx context.Context, id model.ID, announce bool) error {
	rctx, cancel := r.app.requestContext(ctx)
	defer cancel()
	c, err := r.app.Backend.GetChat(rctx, id)
	if err != nil {
		return fmt.Errorf("open chat %s: %w", id, err)
	}
	if err := r.app.Session.SetChatID(c.ID); err != nil {
		r.app.Logger.Warn().Err(err).Msg("save chat selection")
	}
	r.app.Orchestrator.Timeline().Replace(c.Messages)

	if announce {
		fmt.Fprintln(r.out, TitleStyle.Render(c.DisplayTitle())+DimStyle.Render(" ("+c.ID.String()+")"))
	}
	msgs := r.app.Orchestrator.Timeline().Snapshot()
	if len(msgs) > historyShown {
		fmt.Fprintln(r.out, DimStyle.Render(fmt.Sprintf("... %d earlier messages", len(msgs)-historyShown)))
		msgs = msgs[len(msgs)-historyShown:]
	}
	for _, m := range msgs {
		text := m.Content
		if m.Role == model.RoleAssistant {
			text = content.Answer(text)
		}
		fmt.Fprintf(r.out, "%s %s\n", LabelStyle.Render(m.Role.DisplayName()+":"), text)
	}
	return nil
}

func (r *replSession) cmdRename(ctx context.Context, args string) (bool, error) {
	if args == "" {
		return false, errors.New("usage: /rename <title>")
	}
	return false, r.update(ctx, "rename", model.ChatUpdate{Title: &args})
}

func (r *replSession) cmdTag(ctx context.Context, args string) (bool, error) {
	tags := strings.Fields(strings.ReplaceAll(args, ",", " "))
	if len(tags) == 0 {
		return false, errors.New("usage: /tag <tag>...")
	}
	return false, r.update(ctx, "tag", model.ChatUpdate{Tags: tags})
}

func (r *replSession) cmdArchive(ctx context.Context, _ string) (bool, error) {
	archived := true
	return false, r.update(ctx, "archive", model.ChatUpdate{Archived: &archived})
}

func (r *replSession) update(ctx context.Context, verb string, u model.ChatUpdate) error {
	id := r.app.Session.ChatID()
	if id.IsZero() {
		return turn.ErrNoChat
	}
	rctx, cancel := r.app.requestContext(ctx)
	defer cancel()
	c, err := r.app.Backend.UpdateChat(rctx, id, u)
	if err != nil {
		return fmt.Errorf("%s chat: %w", verb, err)
	}
	fmt.Fprintf(r.out, "Chat updated: %s (%s)\n", verb, c.DisplayTitle())
	return nil
}

func (r *replSession) cmdDelete(ctx context.Context, args string) (bool, error) {
	current := r.app.Session.ChatID()
	id := model.ID(args)
	if id.IsZero() {
		id = current
	}
	if id.IsZero() {
		return false, turn.ErrNoChat
	}
	rctx, cancel := r.app.requestContext(ctx)
	defer cancel()
	if err := r.app.Backend.DeleteChat(rctx, id); err != nil {
		return false, fmt.Errorf("delete chat %s: %w", id, err)
	}
	if id == current {
		if err := r.app.Session.SetChatID(""); err != nil {
			r.app.Logger.Warn().Err(err).Msg("save chat selection")
		}
		r.app.Orchestrator.Timeline().Clear()
	}
	fmt.Fprintln(r.out, "Deleted chat "+id.String())
	return false, nil
}

func (r *replSession) cmdSearch(ctx context.Context, args string) (bool, error) {
	if args == "" {
		return false, errors.New("usage: /search <query>")
	}
	id := r.app.Session.ChatID()
	if id.IsZero() {
		return false, turn.ErrNoChat
	}
	rctx, cancel := r.app.requestContext(ctx)
	defer cancel()
	results, err := r.app.Backend.SearchContext(rctx, id, args)
	if err != nil {
		return false, fmt.Errorf("search: %w", err)
	}
	writePassages(r.out, results, GetTerminalWidth())
	return false, nil
}

func (r *replSession) cmdPrompt(context.Context, string) (bool, error) {
	msg, ok := r.app.Orchestrator.Timeline().LastUser()
	switch {
	case !ok:
		fmt.Fprintln(r.out, "No messages yet")
	case msg.AugmentedContent == "":
		fmt.Fprintln(r.out, "The last message has no augmented prompt yet")
	default:
		fmt.Fprintln(r.out, TitleStyle.Render("Augmented prompt:"))
		fmt.Fprintln(r.out, msg.AugmentedContent)
	}
	return false, nil
}

func (r *replSession) cmdHelp(context.Context, string) (bool, error) {
	fmt.Fprintln(r.out, TitleStyle.Render("Commands"))
	for _, c := range replCommands {
		usage := "/" + c.name
		if c.args != "" {
			usage += " " + c.args
		}
		fmt.Fprintf(r.out, "  %-22s %s\n", usage, DimStyle.Render(c.help))
	}
	fmt.Fprintln(r.out, DimStyle.Render("  Ctrl+C stops a response, Ctrl+D exits"))
	return false, nil
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
