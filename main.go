// docchat - a terminal client for chatting with your documents.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/jeranaias/docchat-tui/internal/attachment"
	"github.com/jeranaias/docchat-tui/internal/backend"
	"github.com/jeranaias/docchat-tui/internal/cli"
	"github.com/jeranaias/docchat-tui/internal/config"
	"github.com/jeranaias/docchat-tui/internal/logging"
	"github.com/jeranaias/docchat-tui/internal/model"
	"github.com/jeranaias/docchat-tui/internal/session"
	"github.com/jeranaias/docchat-tui/internal/storage"
	"github.com/jeranaias/docchat-tui/internal/telemetry"
	"github.com/jeranaias/docchat-tui/internal/turn"
	"github.com/jeranaias/docchat-tui/internal/ui/chat"
	"github.com/jeranaias/docchat-tui/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args, err := cli.Parse(os.Args[1:])
	if err != nil {
		cli.DisplayError(os.Stderr, cmd.String(), err, args.JSON)
		os.Exit(cli.GetExitCode(err))
	}

	// These need no backend.
	switch cmd {
	case cli.CmdHelp:
		cli.PrintUsage(os.Stdout)
		return
	case cli.CmdVersion:
		if err := cli.PrintVersion(os.Stdout, args.JSON); err != nil {
			os.Exit(cli.ExitGeneralError)
		}
		return
	}

	os.Exit(run(cmd, args))
}

// run wires the application and returns the process exit code.
func run(cmd cli.Command, args cli.Args) int {
	fail := func(err error) int {
		cli.DisplayError(os.Stderr, cmd.String(), err, args.JSON)
		return cli.GetExitCode(err)
	}

	cfg, err := loadConfig(args.ConfigPath)
	if cfg == nil {
		return fail(err)
	}
	configWarning := err

	closeLog, err := openLog(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: logging disabled: %v\n", err)
	}
	defer closeLog.Close()
	logger := logging.L()
	if configWarning != nil {
		logger.Warn().Err(configWarning).Msg("config file ignored, using defaults")
	}
	logger.Info().
		Str("command", cmd.String()).
		Str("backend", cfg.Backend.URL).
		Str("version", Version).
		Msg("starting")

	base, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := telemetry.NewMetrics()
	if cfg.Metrics.Addr != "" {
		srv, err := metrics.Listen(cfg.Metrics.Addr, logging.Component("metrics"))
		if err != nil {
			logger.Warn().Err(err).Msg("metrics server disabled")
		} else {
			go func() {
				if err := srv.Serve(base); err != nil {
					logger.Warn().Err(err).Msg("metrics server stopped")
				}
			}()
		}
	}

	client := backend.NewClient(&backend.ClientConfig{
		BaseURL:           cfg.Backend.URL,
		Timeout:           cfg.RequestTimeout(),
		StreamIdleTimeout: cfg.IdleTimeout(),
		Logger:            &logger,
	})

	sess, err := openSession(cfg, logger)
	if err != nil {
		return fail(err)
	}

	orch, err := turn.New(turn.Config{
		Timeline: model.NewTimeline(),
		Stager:   attachment.NewStager(),
		Resolver: attachment.NewResolver(client, attachment.Options{
			MaxConcurrent: cfg.Upload.MaxConcurrent,
			OnUploaded: func(att model.Attachment) {
				metrics.Uploaded()
				logger.Debug().Str("file", att.FileName).Str("id", att.ID.String()).Msg("attachment uploaded")
			},
		}),
		Streamer:  client,
		Session:   sess,
		Refresher: client,
		ListLimit: cfg.Chats.ListLimit,
		Logger:    &logger,
		Metrics:   metrics,
	})
	if err != nil {
		return fail(err)
	}

	if cmd == cli.CmdTUI {
		if err := runTUI(cfg, args, orch, sess, client, logger); err != nil {
			return fail(err)
		}
		return cli.ExitSuccess
	}

	// The REPL stops turns on Ctrl+C itself; one-shot commands stop on it.
	ctx := base
	if cmd != cli.CmdChat {
		var stop context.CancelFunc
		ctx, stop = signal.NotifyContext(base, os.Interrupt)
		defer stop()
	}

	app := &cli.App{
		Config:       cfg,
		Orchestrator: orch,
		Session:      sess,
		Backend:      client,
		Logger:       logger,
	}
	if err := app.Run(ctx, cmd, args); err != nil {
		if errors.Is(err, cli.ErrStopped) {
			// The partial answer is already on screen.
			return cli.GetExitCode(err)
		}
		return fail(err)
	}
	return cli.ExitSuccess
}

// loadConfig returns a usable config and, when the file was skipped, the
// reason. A nil config means the error is fatal.
func loadConfig(path string) (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

// openLog installs the process-wide logger.
func openLog(cfg *config.Config) (io.Closer, error) {
	file := cfg.Log.File
	if file == "" {
		// Without a home directory the log is discarded.
		file, _ = config.DefaultLogPath()
	}
	return logging.Init(logging.Config{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
		File:   file,
	})
}

// openSession restores persisted selections. A broken preferences file
// degrades to a memory-only session.
func openSession(cfg *config.Config, logger zerolog.Logger) (*session.Manager, error) {
	var store session.Store
	if prefs, err := storage.NewPrefsStore(); err != nil {
		logger.Warn().Err(err).Msg("preferences unavailable, selections will not persist")
	} else {
		store = prefs
	}

	sess, err := session.NewManager(store)
	if err != nil {
		logger.Warn().Err(err).Msg("could not read preferences, starting fresh")
		sess, err = session.NewManager(nil)
		if err != nil {
			return nil, err
		}
	}
	if sess.Model() == "" && cfg.Models.Default != "" {
		if err := sess.SetModel(cfg.Models.Default); err != nil {
			logger.Warn().Err(err).Msg("default model")
		}
	}
	return sess, nil
}

func runTUI(cfg *config.Config, args cli.Args, orch *turn.Orchestrator, sess *session.Manager, client *backend.Client, logger zerolog.Logger) error {
	if args.ChatID != "" {
		if err := sess.SetChatID(model.ID(args.ChatID)); err != nil {
			logger.Warn().Err(err).Msg("save chat selection")
		}
	}
	if args.Model != "" {
		if err := sess.SetModel(args.Model); err != nil {
			return cli.NewValidationError("model", args.Model, err.Error())
		}
	}

	m, err := chat.New(chat.Deps{
		Orchestrator:   orch,
		Session:        sess,
		Backend:        client,
		Theme:          styles.NewTheme(cfg.UI.Theme),
		Logger:         &logger,
		ListLimit:      cfg.Chats.ListLimit,
		FallbackModels: cfg.Models.Fallback,
		ShowThinking:   cfg.UI.ShowThinking && !args.NoThinking,
		RequestTimeout: cfg.RequestTimeout(),
	})
	if err != nil {
		return err
	}
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat screen: %w", err)
	}
	return nil
}
