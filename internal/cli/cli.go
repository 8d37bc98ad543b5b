// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"runtime"
	"strings"
)

// Version information, set at build time.
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command is the top-level command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdChat
	CmdAsk
	CmdModels
	CmdChats
	CmdSearch
	CmdConfig
	CmdVersion
	CmdHelp
)

// String returns the command name as typed.
func (c Command) String() string {
	switch c {
	case CmdTUI:
		return "tui"
	case CmdChat:
		return "chat"
	case CmdAsk:
		return "ask"
	case CmdModels:
		return "models"
	case CmdChats:
		return "chats"
	case CmdSearch:
		return "search"
	case CmdConfig:
		return "config"
	case CmdVersion:
		return "version"
	case CmdHelp:
		return "help"
	default:
		return fmt.Sprintf("command(%d)", int(c))
	}
}

// Args holds parsed command-line arguments.
type Args struct {
	// Global flags
	Model      string
	ChatID     string
	ConfigPath string
	JSON       bool
	Quiet      bool
	NoThinking bool

	// ask
	Query   string
	Attach  []string
	NewChat bool

	// chats
	Limit int

	// config: show or path
	Subcommand string

	Raw []string
}

// boolFlags never take a value.
var boolFlags = []string{"json", "quiet", "q", "new", "no-thinking", "help", "h", "version", "v"}

const usageText = `docchat - chat with your documents from the terminal

Usage:
  docchat [flags]                      Open the chat screen
  docchat chat [flags]                 Line-mode chat (Ctrl+C stops a response)
  docchat ask [flags] <question>       Ask one question and print the answer
  docchat models                       List available models
  docchat chats [--limit N]            List chats
  docchat search [--chat ID] <query>   Search a chat's documents
  docchat config show|path             Show the configuration or its path
  docchat version                      Show version information

Flags:
  -m, --model NAME     Model to use (remembered as the selection)
  -c, --chat ID        Chat to use (remembered as the selection)
  -a, --attach FILE    Attach a file to the question (ask, repeatable)
      --new            Start a new chat (ask)
      --config PATH    Config file (default ~/.docchat/config.toml)
      --json           Machine-readable output
      --no-thinking    Hide model reasoning
  -q, --quiet          Less output
  -h, --help           Show this help

Examples:
  docchat ask --attach report.pdf "What was Q3 revenue?"
  docchat search --chat 12 "revenue by region"
  git diff | docchat ask --new "Summarize this change"
`

// PrintUsage writes the usage text.
func PrintUsage(w io.Writer) {
	fmt.Fprint(w, usageText)
}

// PrintVersion writes version information.
func PrintVersion(w io.Writer, jsonMode bool) error {
	if jsonMode {
		return NewJSONResponse("version", VersionData{
			Version:   Version,
			GitCommit: GitCommit,
			BuildDate: BuildDate,
			GoVersion: runtime.Version(),
		}).Write(w)
	}
	fmt.Fprintf(w, "docchat version %s\n", Version)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Build date: %s\n", BuildDate)
	fmt.Fprintf(w, "  Go:         %s\n", runtime.Version())
	return nil
}

// =============================================================================
// PARSING
// =============================================================================

// Parse parses the process arguments without the program name. Flags may
// appear before or after the command.
func Parse(argv []string) (Command, Args, error) {
	p := NewArgParser(argv, boolFlags...)
	args := Args{
		Model:      p.Flag("model", "m"),
		ChatID:     p.Flag("chat", "c"),
		ConfigPath: p.Flag("config"),
		JSON:       p.BoolFlag("json"),
		Quiet:      p.BoolFlag("quiet", "q"),
		NoThinking: p.BoolFlag("no-thinking"),
		Raw:        argv,
	}

	if p.BoolFlag("help", "h") {
		return CmdHelp, args, nil
	}
	if p.BoolFlag("version", "v") {
		return CmdVersion, args, nil
	}

	rest := p.PositionalFrom(1)
	switch name := strings.ToLower(p.Subcommand()); name {
	case "", "tui":
		return CmdTUI, args, nil

	case "chat", "repl":
		return CmdChat, args, nil

	case "ask":
		args.Query = strings.TrimSpace(strings.Join(rest, " "))
		args.Attach = p.Flags("attach", "a")
		args.NewChat = p.BoolFlag("new")
		return CmdAsk, args, nil

	case "models":
		return CmdModels, args, nil

	case "chats":
		if v := p.Flag("limit", "n"); v != "" {
			n, err := ParsePositiveInt(v, "limit")
			if err != nil {
				return CmdChats, args, err
			}
			args.Limit = n
		}
		return CmdChats, args, nil

	case "search":
		args.Query = strings.TrimSpace(strings.Join(rest, " "))
		if args.Query == "" {
			return CmdSearch, args, ErrMissingArgument("query", `docchat search --chat 12 "revenue by region"`)
		}
		return CmdSearch, args, nil

	case "config":
		args.Subcommand = strings.ToLower(p.Positional(1))
		switch args.Subcommand {
		case "":
			args.Subcommand = "show"
		case "show", "path":
		default:
			return CmdConfig, args, NewValidationError("config subcommand", args.Subcommand, "use show or path")
		}
		return CmdConfig, args, nil

	case "version":
		return CmdVersion, args, nil

	case "help":
		return CmdHelp, args, nil

	default:
		return CmdHelp, args, &ValidationError{
			Field:   "command",
			Value:   name,
			Reason:  "unknown command",
			Example: "docchat --help",
		}
	}
}
