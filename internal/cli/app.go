// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/docchat-tui/internal/config"
	"github.com/jeranaias/docchat-tui/internal/model"
	"github.com/jeranaias/docchat-tui/internal/session"
	"github.com/jeranaias/docchat-tui/internal/turn"
	"github.com/jeranaias/docchat-tui/internal/util"
)

// Backend is the subset of the backend client the commands use.
type Backend interface {
	ListChats(ctx context.Context, skip, limit int) ([]model.ChatSummary, error)
	GetChat(ctx context.Context, id model.ID) (*model.Chat, error)
	CreateChat(ctx context.Context, title string) (*model.ChatSummary, error)
	DeleteChat(ctx context.Context, id model.ID) error
	UpdateChat(ctx context.Context, id model.ID, update model.ChatUpdate) (*model.ChatSummary, error)
	ModelNames(ctx context.Context) ([]string, error)
	SearchContext(ctx context.Context, chatID model.ID, text string) ([]model.Passage, error)
}

// App carries what the line-mode commands need.
type App struct {
	Config       *config.Config
	Orchestrator *turn.Orchestrator
	Session      *session.Manager
	Backend      Backend
	Logger       zerolog.Logger

	In  io.Reader
	Out io.Writer
	Err io.Writer

	// StdinIsTTY reports whether In is interactive. Nil means IsTTY.
	StdinIsTTY func() bool
	// StdoutIsTTY reports whether Out is a terminal. Nil means IsStdoutTTY.
	StdoutIsTTY func() bool
}

func (a *App) stdinTTY() bool {
	if a.StdinIsTTY != nil {
		return a.StdinIsTTY()
	}
	return IsTTY()
}

func (a *App) stdoutTTY() bool {
	if a.StdoutIsTTY != nil {
		return a.StdoutIsTTY()
	}
	return IsStdoutTTY()
}

func (a *App) in() io.Reader {
	if a.In != nil {
		return a.In
	}
	return os.Stdin
}

// Run executes a line-mode command. CmdTUI is handled by the caller.
func (a *App) Run(ctx context.Context, cmd Command, args Args) error {
	if a.Out == nil {
		a.Out = os.Stdout
	}
	if a.Err == nil {
		a.Err = os.Stderr
	}
	if err := a.applyGlobals(args); err != nil {
		return err
	}

	switch cmd {
	case CmdChat:
		return a.RunChat(ctx, args)
	case CmdAsk:
		return a.RunAsk(ctx, args)
	case CmdModels:
		return a.RunModels(ctx, args)
	case CmdChats:
		return a.RunChats(ctx, args)
	case CmdSearch:
		return a.RunSearch(ctx, args)
	case CmdConfig:
		return a.RunConfig(args)
	case CmdVersion:
		return PrintVersion(a.Out, args.JSON)
	case CmdHelp:
		PrintUsage(a.Out)
		return nil
	default:
		return fmt.Errorf("%s cannot run in line mode", cmd)
	}
}

// applyGlobals stores --chat and --model as the session selection.
func (a *App) applyGlobals(args Args) error {
	if a.Session == nil {
		return nil
	}
	if args.ChatID != "" {
		if err := a.Session.SetChatID(model.ID(args.ChatID)); err != nil {
			a.Logger.Warn().Err(err).Msg("save chat selection")
		}
	}
	if args.Model != "" {
		if err := a.Session.SetModel(args.Model); err != nil {
			return NewValidationError("model", args.Model, err.Error())
		}
	}
	return nil
}

func (a *App) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.Config == nil || a.Config.RequestTimeout() <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.Config.RequestTimeout())
}

func (a *App) listLimit() int {
	if a.Config != nil && a.Config.Chats.ListLimit > 0 {
		return a.Config.Chats.ListLimit
	}
	return turn.DefaultListLimit
}

func (a *App) fallbackModels() []string {
	if a.Config != nil && len(a.Config.Models.Fallback) > 0 {
		return a.Config.Models.Fallback
	}
	return config.DefaultFallbackModels
}

func (a *App) showThinking(args Args) bool {
	if args.NoThinking {
		return false
	}
	return a.Config == nil || a.Config.UI.ShowThinking
}

// loadModels resolves the model selection. Registry errors fall back to the
// configured list and are only logged.
func (a *App) loadModels(ctx context.Context) []string {
	rctx, cancel := a.requestContext(ctx)
	defer cancel()
	names, err := a.Session.LoadModels(rctx, a.Backend, a.fallbackModels())
	if err != nil {
		a.Logger.Warn().Err(err).Msg("model list incomplete")
	}
	return names
}

// =============================================================================
// MODELS
// =============================================================================

// RunModels lists the models the backend offers.
func (a *App) RunModels(ctx context.Context, args Args) error {
	rctx, cancel := a.requestContext(ctx)
	defer cancel()
	names, err := a.Backend.ModelNames(rctx)
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	selected, err := a.Session.ResolveModel(names)
	if err != nil {
		a.Logger.Warn().Err(err).Str("model", selected).Msg("model selection not saved")
	}

	if args.JSON {
		return NewJSONResponse("models", map[string]any{"models": names, "selected": selected}).Write(a.Out)
	}
	if len(names) == 0 {
		fmt.Fprintln(a.Out, DimStyle.Render("No models available"))
		return nil
	}
	for _, n := range names {
		mark := "  "
		if n == selected {
			mark = "* "
		}
		fmt.Fprintln(a.Out, mark+n)
	}
	return nil
}

// =============================================================================
// CHATS
// =============================================================================

// RunChats lists chat summaries, newest first as the backend returns them.
func (a *App) RunChats(ctx context.Context, args Args) error {
	limit := args.Limit
	if limit <= 0 {
		limit = a.listLimit()
	}
	rctx, cancel := a.requestContext(ctx)
	defer cancel()
	chats, err := a.Backend.ListChats(rctx, 0, limit)
	if err != nil {
		return fmt.Errorf("list chats: %w", err)
	}

	if args.JSON {
		return NewJSONResponse("chats", chats).Write(a.Out)
	}
	writeChats(a.Out, chats, a.Session.ChatID(), GetTerminalWidth())
	return nil
}

func writeChats(w io.Writer, chats []model.ChatSummary, active model.ID, width int) {
	if len(chats) == 0 {
		fmt.Fprintln(w, DimStyle.Render(`No chats yet. Start one with: docchat ask --new "question"`))
		return
	}
	for _, c := range chats {
		mark := "  "
		if c.ID == active {
			mark = "* "
		}
		line := fmt.Sprintf("%s%-6s %s", mark, c.ID, c.DisplayTitle())
		if tags := c.TagNames(); len(tags) > 0 {
			line += " [" + strings.Join(tags, ", ") + "]"
		}
		if c.Archived {
			line += " (archived)"
		}
		if !c.UpdatedAt.IsZero() {
			line += "  " + DimStyle.Render(c.UpdatedAt.Local().Format(time.DateTime))
		}
		fmt.Fprintln(w, util.TruncateWidth(line, width))
	}
}

// =============================================================================
// SEARCH
// =============================================================================

// RunSearch prints the document passages the backend would use as context.
func (a *App) RunSearch(ctx context.Context, args Args) error {
	chatID := a.Session.ChatID()
	if chatID.IsZero() {
		return ErrMissingArgument("--chat", `docchat search --chat 12 "revenue by region"`)
	}
	rctx, cancel := a.requestContext(ctx)
	defer cancel()
	results, err := a.Backend.SearchContext(rctx, chatID, args.Query)
	if err != nil {
		return fmt.Errorf("search chat %s: %w", chatID, err)
	}

	if args.JSON {
		return NewJSONResponse("search", results).Write(a.Out)
	}
	writePassages(a.Out, results, GetTerminalWidth())
	return nil
}

func writePassages(w io.Writer, results []model.Passage, width int) {
	if len(results) == 0 {
		fmt.Fprintln(w, DimStyle.Render("No passages found"))
		return
	}
	for i, p := range results {
		src := p.Source()
		if src == "" {
			src = "unknown source"
		}
		fmt.Fprintf(w, "%d. %s %s\n", i+1, TitleStyle.Render(src), DimStyle.Render(fmt.Sprintf("(%.2f)", p.Score)))
		fmt.Fprintln(w, "   "+util.TruncateWidth(util.SingleLine(p.Text), max(width-3, 10)))
	}
}

// =============================================================================
// CONFIG
// =============================================================================

// RunConfig shows the effective configuration or the file it came from.
func (a *App) RunConfig(args Args) error {
	switch args.Subcommand {
	case "path":
		path := args.ConfigPath
		if path == "" {
			p, err := config.Path()
			if errors.Is(err, config.ErrNoConfig) {
				p, err = config.ConfigPathTOML()
			}
			if err != nil {
				return err
			}
			path = p
		}
		_, statErr := os.Stat(path)
		exists := statErr == nil
		if args.JSON {
			return NewJSONResponse("config path", ConfigPathData{Path: path, Exists: exists}).Write(a.Out)
		}
		fmt.Fprintln(a.Out, path)
		if !exists && !args.Quiet {
			fmt.Fprintln(a.Err, DimStyle.Render("(file does not exist, defaults are in use)"))
		}
		return nil

	default:
		if a.Config == nil {
			return errors.New("no configuration loaded")
		}
		if args.JSON {
			return NewJSONResponse("config show", a.Config).Write(a.Out)
		}
		fmt.Fprint(a.Out, a.Config.String())
		return nil
	}
}
