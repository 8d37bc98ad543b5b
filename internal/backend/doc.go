// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend provides the HTTP client for the document chat backend.
//
// One Client covers every collaborator the application talks to:
//
//   - Chat Store: ListChats, GetChat, CreateChat, UpdateChat, DeleteChat
//   - Model Registry: ListModels
//   - Attachment Store: Upload
//   - Context Search: SearchContext
//   - Generation: Stream, the server-sent event channel of one turn
//
// # Streaming Protocol
//
// Stream posts a TurnRequest and reads text/event-stream data lines. Each
// payload is one of
//
//	{"type": "content", "chunk": "..."}   incremental text
//	{"error": "..."}                      fatal in-band error
//	[DONE]                                normal end of stream
//
// Every payload is delivered to the handler as an Event, except well-formed
// JSON with neither a chunk nor an error (status notices), which is logged at
// debug level and skipped. Data that is not JSON is a *ProtocolError. A close by the peer
// without [DONE] is delivered as EventClosed. Any error returned by Stream
// itself is a transport failure.
//
// # Usage
//
//	client := backend.NewClient(nil)
//	err := client.Stream(ctx, req, func(ev backend.Event) error {
//	    fmt.Print(ev.Chunk)
//	    return nil
//	})
package backend
