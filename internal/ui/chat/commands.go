// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/docchat-tui/internal/attachment"
	"github.com/jeranaias/docchat-tui/internal/model"
	"github.com/jeranaias/docchat-tui/internal/turn"
	"github.com/jeranaias/docchat-tui/internal/util"
)

// =============================================================================
// COMMAND TABLE
// =============================================================================

// command is one slash command.
type command struct {
	name  string
	args  string
	help  string
	run   func(m *Model, args string) tea.Cmd
	// busy commands are refused while a turn is loading.
	busy bool
}

var commands []command

func init() {
	commands = []command{
		{name: "attach", args: "<path>...", help: "stage files for the next message", run: (*Model).cmdAttach},
		{name: "detach", args: "<n|id|all>", help: "remove a staged file", run: (*Model).cmdDetach},
		{name: "model", args: "[name]", help: "show or select the model", run: (*Model).cmdModel},
		{name: "models", help: "list available models", run: (*Model).cmdModels},
		{name: "flags", args: "[llm|docs|web]", help: "show or toggle context sources", run: (*Model).cmdFlags},
		{name: "overwrite", help: "toggle replacing files with the same name on upload", run: (*Model).cmdOverwrite},
		{name: "new", args: "[title]", help: "start a new chat", run: (*Model).cmdNew, busy: true},
		{name: "chats", help: "list chats", run: (*Model).cmdChats},
		{name: "open", args: "<id>", help: "open a chat", run: (*Model).cmdOpen, busy: true},
		{name: "rename", args: "<title>", help: "rename the current chat", run: (*Model).cmdRename},
		{name: "tag", args: "<tag>...", help: "set the tags of the current chat", run: (*Model).cmdTag},
		{name: "archive", help: "archive the current chat", run: (*Model).cmdArchive},
		{name: "delete", args: "[id]", help: "delete a chat (default: current)", run: (*Model).cmdDelete, busy: true},
		{name: "search", args: "<query>", help: "search the documents of the current chat", run: (*Model).cmdSearch},
		{name: "prompt", help: "show the augmented prompt of the last message", run: (*Model).cmdPrompt},
		{name: "help", help: "show commands and keys", run: (*Model).cmdHelp},
	}
}

func findCommand(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

// parseCommand splits "/name args" and reports whether line is a command.
func parseCommand(line string) (name, args string, ok bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") || len(line) == 1 {
		return "", "", false
	}
	name, args, _ = strings.Cut(line[1:], " ")
	return strings.ToLower(name), strings.TrimSpace(args), true
}

// runCommand executes a slash command against the model.
func (m *Model) runCommand(name, args string) tea.Cmd {
	c, ok := findCommand(name)
	if !ok {
		*m = m.fail(fmt.Errorf("unknown command /%s (try /help)", name))
		return nil
	}
	if c.busy && m.orch.IsLoading() {
		*m = m.fail(turn.ErrBusy)
		return nil
	}
	m.notice, m.lastErr = "", nil
	return c.run(m, args)
}

func helpText(keys KeyMap) string {
	var b strings.Builder
	b.WriteString("Commands:\n")
	for _, c := range commands {
		usage := "/" + c.name
		if c.args != "" {
			usage += " " + c.args
		}
		fmt.Fprintf(&b, "  %-24s %s\n", usage, c.help)
	}
	b.WriteString("Keys:\n")
	for _, group := range keys.FullHelp() {
		for _, k := range group {
			h := k.Help()
			fmt.Fprintf(&b, "  %-24s %s\n", h.Key, h.Desc)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// =============================================================================
// ATTACHMENTS
// =============================================================================

func (m *Model) cmdAttach(args string) tea.Cmd {
	if args == "" {
		*m = m.fail(errors.New("usage: /attach <path>..."))
		return nil
	}
	paths := []string{args}
	if _, err := os.Stat(expandHome(args)); err != nil {
		paths = strings.Fields(args)
	}

	var staged []string
	for _, p := range paths {
		path := expandHome(p)
		info, err := os.Stat(path)
		if err != nil {
			*m = m.fail(fmt.Errorf("attach %s: %w", p, err))
			return nil
		}
		if info.IsDir() {
			*m = m.fail(fmt.Errorf("attach %s: is a directory", p))
			return nil
		}
		att := m.orch.Stager().Stage(attachment.FileSource(path))
		staged = append(staged, att.FileName)
	}
	m.notice = fmt.Sprintf("Staged %s (%d pending)", strings.Join(staged, ", "), m.orch.Stager().Len())
	return nil
}

func (m *Model) cmdDetach(args string) tea.Cmd {
	stager := m.orch.Stager()
	if args == "all" {
		stager.Clear()
		m.notice = "Cleared staged files"
		return nil
	}

	id := model.ID(args)
	if n, err := strconv.Atoi(args); err == nil {
		items := stager.Staged()
		if n < 1 || n > len(items) {
			*m = m.fail(fmt.Errorf("no staged file #%d", n))
			return nil
		}
		id = items[n-1].ID
	}
	if !stager.Discard(id) {
		*m = m.fail(fmt.Errorf("no staged file %q", args))
		return nil
	}
	m.notice = fmt.Sprintf("Removed; %d pending", stager.Len())
	return nil
}

// =============================================================================
// SESSION SETTINGS
// =============================================================================

func (m *Model) cmdModel(args string) tea.Cmd {
	if args == "" {
		m.notice = "Model: " + orNone(m.sess.Model())
		return nil
	}
	if err := m.sess.SetModel(args); err != nil {
		*m = m.fail(err)
		return nil
	}
	m.notice = "Model set to " + args
	return nil
}

func (m *Model) cmdModels(string) tea.Cmd {
	return m.loadModels(true)
}

func (m *Model) cmdFlags(args string) tea.Cmd {
	if args == "" {
		m.notice = "Context: " + m.sess.Flags().String()
		return nil
	}
	flags, err := m.sess.ToggleFlag(strings.ToLower(args))
	if err != nil {
		*m = m.fail(err)
		return nil
	}
	m.notice = "Context: " + flags.String()
	return nil
}

func (m *Model) cmdOverwrite(string) tea.Cmd {
	on := !m.sess.Overwrite()
	if err := m.sess.SetOverwrite(on); err != nil {
		*m = m.fail(err)
		return nil
	}
	m.notice = "Overwrite " + onOff(on)
	return nil
}

// =============================================================================
// CHATS
// =============================================================================

func (m *Model) cmdNew(args string) tea.Cmd {
	return m.createChat(args, "")
}

func (m *Model) cmdChats(string) tea.Cmd {
	return m.loadChats(true)
}

func (m *Model) cmdOpen(args string) tea.Cmd {
	if args == "" {
		*m = m.fail(errors.New("usage: /open <id>"))
		return nil
	}
	return m.openChat(model.ID(args))
}

func (m *Model) cmdRename(args string) tea.Cmd {
	if args == "" {
		*m = m.fail(errors.New("usage: /rename <title>"))
		return nil
	}
	return m.updateChat("rename", model.ChatUpdate{Title: &args})
}

func (m *Model) cmdTag(args string) tea.Cmd {
	tags := strings.Fields(strings.ReplaceAll(args, ",", " "))
	if len(tags) == 0 {
		*m = m.fail(errors.New("usage: /tag <tag>..."))
		return nil
	}
	return m.updateChat("tag", model.ChatUpdate{Tags: tags})
}

func (m *Model) cmdArchive(string) tea.Cmd {
	archived := true
	return m.updateChat("archive", model.ChatUpdate{Archived: &archived})
}

func (m *Model) cmdDelete(args string) tea.Cmd {
	id := model.ID(args)
	if id.IsZero() {
		id = m.sess.ChatID()
	}
	if id.IsZero() {
		*m = m.fail(turn.ErrNoChat)
		return nil
	}
	api := m.api
	ctx, cancel := m.requestContext()
	return func() tea.Msg {
		defer cancel()
		return chatDeletedMsg{ID: id, Err: api.DeleteChat(ctx, id)}
	}
}

func (m *Model) cmdSearch(args string) tea.Cmd {
	if args == "" {
		*m = m.fail(errors.New("usage: /search <query>"))
		return nil
	}
	id := m.sess.ChatID()
	if id.IsZero() {
		*m = m.fail(turn.ErrNoChat)
		return nil
	}
	api := m.api
	ctx, cancel := m.requestContext()
	return func() tea.Msg {
		defer cancel()
		results, err := api.SearchContext(ctx, id, args)
		return searchResultsMsg{Query: args, Passages: results, Err: err}
	}
}

func (m *Model) cmdPrompt(string) tea.Cmd {
	msg, ok := m.orch.Timeline().LastUser()
	switch {
	case !ok:
		m.notice = "No messages yet"
	case msg.AugmentedContent == "":
		m.notice = "The last message has no augmented prompt yet"
	default:
		m.panel = "Augmented prompt:\n" + msg.AugmentedContent
	}
	return nil
}

func (m *Model) cmdHelp(string) tea.Cmd {
	m.panel = helpText(m.keys)
	return nil
}

// =============================================================================
// BACKEND COMMANDS
// =============================================================================

func (m Model) loadChats(show bool) tea.Cmd {
	api, limit := m.api, m.listLimit
	ctx, cancel := m.requestContext()
	return func() tea.Msg {
		defer cancel()
		chats, err := api.ListChats(ctx, 0, limit)
		return chatsLoadedMsg{Chats: chats, Show: show, Err: err}
	}
}

func (m Model) loadModels(show bool) tea.Cmd {
	api, sess, fallback := m.api, m.sess, m.fallback
	ctx, cancel := m.requestContext()
	return func() tea.Msg {
		defer cancel()
		names, err := sess.LoadModels(ctx, api, fallback)
		return modelsLoadedMsg{Models: names, Show: show, Err: err}
	}
}

func (m Model) openChat(id model.ID) tea.Cmd {
	api := m.api
	ctx, cancel := m.requestContext()
	return func() tea.Msg {
		defer cancel()
		chat, err := api.GetChat(ctx, id)
		return chatOpenedMsg{Chat: chat, Err: err}
	}
}

// createChat creates a chat. A non-empty submit is sent once the chat exists.
func (m Model) createChat(title, submit string) tea.Cmd {
	api := m.api
	ctx, cancel := m.requestContext()
	return func() tea.Msg {
		defer cancel()
		chat, err := api.CreateChat(ctx, title)
		return chatCreatedMsg{Chat: chat, Submit: submit, Err: err}
	}
}

func (m *Model) updateChat(verb string, update model.ChatUpdate) tea.Cmd {
	id := m.sess.ChatID()
	if id.IsZero() {
		*m = m.fail(turn.ErrNoChat)
		return nil
	}
	api := m.api
	ctx, cancel := m.requestContext()
	return func() tea.Msg {
		defer cancel()
		chat, err := api.UpdateChat(ctx, id, update)
		return chatUpdatedMsg{Chat: chat, Verb: verb, Err: err}
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// titleFrom derives a chat title from the first message.
func titleFrom(text string) string {
	return util.TruncateRunes(util.SingleLine(text), 40)
}

func modelList(models []string, selected string) string {
	if len(models) == 0 {
		return "No models available."
	}
	lines := []string{"Models:"}
	for _, name := range models {
		mark := "  "
		if name == selected {
			mark = "* "
		}
		lines = append(lines, mark+name)
	}
	return strings.Join(lines, "\n")
}

func expandHome(path string) string {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, rest)
		}
	}
	return path
}

func fmtErr(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
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
