// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and the line-mode commands of
// docchat.
//
// Parse turns process arguments into a Command and Args. Every command other
// than CmdTUI runs through App, which holds the same turn.Orchestrator and
// session.Manager the chat screen uses:
//
//	cmd, args, err := cli.Parse(os.Args[1:])
//	app := &cli.App{Config: cfg, Orchestrator: orch, Session: sess, Backend: client}
//	err = app.Run(ctx, cmd, args)
//	os.Exit(cli.GetExitCode(err))
//
// # Commands
//
//   - chat: line-mode REPL with history; Ctrl+C stops a response
//   - ask: one question, answer to stdout (markdown on a terminal)
//   - models, chats, search: backend listings
//   - config show|path, version
//
// Flags may appear anywhere. --json switches every command to the
// JSONResponse envelope.
package cli
