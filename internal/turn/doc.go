// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package turn drives one user turn from submit to a terminal state.
//
// A turn appends the user message and an assistant placeholder, uploads
// staged attachments, consumes the response stream into the placeholder and
// finally reloads the chat from the server.
//
//	idle -> sending-attachments -> streaming -> completed | aborted | errored
//
// # Key Types
//
//   - Orchestrator: state machine, one active turn at a time
//   - Outcome: terminal state and error of a finished turn
//   - Error: attachment, protocol or transport failure
//
// # Usage
//
//	orch, _ := turn.New(turn.Config{
//	    Timeline: model.NewTimeline(),
//	    Stager:   attachment.NewStager(),
//	    Resolver: attachment.NewResolver(client, attachment.Options{}),
//	    Streamer: client,
//	    Session:  sess,
//	})
//	done, err := orch.Submit(ctx, "Summarize the report")
//	out := <-done
package turn
