// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/jeranaias/docchat-tui/internal/model"
)

// =============================================================================
// STREAMING CONSTANTS
// =============================================================================

// DoneSentinel is the data payload that ends a stream normally.
const DoneSentinel = "[DONE]"

// MaxEventSize is the maximum allowed size for a single SSE line (1MB).
const MaxEventSize = 1024 * 1024

// =============================================================================
// EVENTS
// =============================================================================

// EventKind classifies a decoded stream event.
type EventKind int

const (
	// EventChunk carries incremental text.
	EventChunk EventKind = iota
	// EventError carries a fatal in-band error message.
	EventError
	// EventDone is the terminal sentinel.
	EventDone
	// EventClosed means the peer closed the stream without the sentinel.
	EventClosed
	// EventIgnored is a well-formed payload of an unknown shape, such as a
	// status notice. Stream drops it.
	EventIgnored
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case EventChunk:
		return "chunk"
	case EventError:
		return "error"
	case EventDone:
		return "done"
	case EventClosed:
		return "closed"
	case EventIgnored:
		return "ignored"
	default:
		return "unknown"
	}
}

// Chunk types sent by the backend. Reasoning arrives as ChunkThink when the
// model reports it separately.
const (
	ChunkContent = "content"
	ChunkThink   = "think"
)

// Event is one decoded stream event.
type Event struct {
	Kind EventKind

	// Chunk and ChunkType are set for EventChunk.
	Chunk     string
	ChunkType string

	// Error is set for EventError.
	Error string
}

// payload is the JSON shape of a data line.
type payload struct {
	Type  string  `json:"type"`
	Chunk *string `json:"chunk"`
	Error *string `json:"error"`
}

// ProtocolError reports a data payload that is not valid JSON.
type ProtocolError struct {
	Data []byte
	Err  error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid stream event %q: %v", truncate(e.Data, 80), e.Err)
	}
	return fmt.Sprintf("invalid stream event %q", truncate(e.Data, 80))
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// ParseEvent decodes one SSE data payload. JSON without a chunk or an error
// decodes as EventIgnored; only undecodable data is a *ProtocolError.
func ParseEvent(data []byte) (Event, error) {
	if string(bytes.TrimSpace(data)) == DoneSentinel {
		return Event{Kind: EventDone}, nil
	}

	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Event{}, &ProtocolError{Data: data, Err: err}
	}

	switch {
	case p.Error != nil:
		return Event{Kind: EventError, Error: *p.Error}, nil
	case p.Chunk != nil:
		chunkType := p.Type
		if chunkType == "" {
			chunkType = ChunkContent
		}
		return Event{Kind: EventChunk, Chunk: *p.Chunk, ChunkType: chunkType}, nil
	default:
		return Event{Kind: EventIgnored}, nil
	}
}

// Terminal reports whether the event ends the stream.
func (e Event) Terminal() bool {
	switch e.Kind {
	case EventError, EventDone, EventClosed:
		return true
	default:
		return false
	}
}

// =============================================================================
// SSE READER
// =============================================================================

// SSEReader parses Server-Sent Events from a stream.
type SSEReader struct {
	scanner *bufio.Scanner

	// OnLine is called for every line read, including keep-alive comments.
	OnLine func()
}

// NewSSEReader creates a new SSE reader from an io.Reader.
func NewSSEReader(r io.Reader) *SSEReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxEventSize)
	return &SSEReader{scanner: scanner}
}

// ReadEvent reads the next SSE event from the stream.
// Returns the event type and the data lines joined by newlines.
// Returns io.EOF when the stream ends between events.
func (s *SSEReader) ReadEvent() (string, []byte, error) {
	var eventType string
	var dataLines [][]byte

	for s.scanner.Scan() {
		if s.OnLine != nil {
			s.OnLine()
		}
		line := bytes.TrimRight(s.scanner.Bytes(), "\r")

		// Empty line signals end of event
		if len(line) == 0 {
			if len(dataLines) > 0 {
				return eventType, bytes.Join(dataLines, []byte("\n")), nil
			}
			eventType = ""
			continue
		}

		field, value, _ := bytes.Cut(line, []byte(":"))
		value = bytes.TrimPrefix(value, []byte(" "))

		switch string(field) {
		case "event":
			eventType = string(value)
		case "data":
			dataLines = append(dataLines, bytes.Clone(value))
		}
		// Ignore other fields (id:, retry:) and comments (empty field name)
	}

	if err := s.scanner.Err(); err != nil {
		return "", nil, err
	}

	// Dispatch a final event that was not followed by a blank line
	if len(dataLines) > 0 {
		return eventType, bytes.Join(dataLines, []byte("\n")), nil
	}
	return "", nil, io.EOF
}

// =============================================================================
// STREAMING TURN
// =============================================================================

// EventHandler receives decoded events in arrival order. Returning an error
// stops the stream and Stream returns that error.
type EventHandler func(Event) error

// Stream posts req to the generation endpoint and delivers events to fn until
// a terminal event. Chunks are delivered one at a time and never reordered.
//
// Stream returns nil after delivering EventDone, EventError or EventClosed.
// A non-nil error means the request failed, the connection broke, the
// stream went idle past StreamIdleTimeout, a payload could not be decoded,
// or ctx was canceled.
func (c *Client) Stream(ctx context.Context, req model.TurnRequest, fn EventHandler) error {
	body, err := json.Marshal(req)
	if err != nil {
		return &ClientError{Type: ErrTypeUnknown, Message: "failed to marshal request", Cause: err}
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/chats/message", nil), bytes.NewReader(body))
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")

	watchdog := newIdleWatchdog(c.config.StreamIdleTimeout, func() { cancel(ErrIdleTimeout) })
	defer watchdog.stop()

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(context.Cause(ctx), ErrIdleTimeout) {
			return idleTimeoutError()
		}
		return transportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serr := statusError(resp)
		serr.Message = "Failed to send message: " + http.StatusText(resp.StatusCode)
		return serr
	}

	c.log.Debug().
		Str("chat_id", req.ChatID().String()).
		Str("model", req.Model()).
		Int("attachments", len(req.Attachments())).
		Msg("stream opened")

	reader := NewSSEReader(resp.Body)
	reader.OnLine = watchdog.kick

	for {
		_, data, err := reader.ReadEvent()
		if err != nil {
			if errors.Is(context.Cause(ctx), ErrIdleTimeout) {
				return idleTimeoutError()
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err == io.EOF {
				return fn(Event{Kind: EventClosed})
			}
			return &ClientError{Type: ErrTypeConnection, Message: "stream interrupted", Cause: err}
		}

		// Nothing is delivered once the caller has canceled
		if ctx.Err() != nil {
			return ctx.Err()
		}

		ev, err := ParseEvent(data)
		if err != nil {
			return err
		}
		if ev.Kind == EventIgnored {
			c.log.Debug().Str("data", truncate(data, 80)).Msg("unknown stream event skipped")
			continue
		}
		if err := fn(ev); err != nil {
			return err
		}
		if ev.Terminal() {
			return nil
		}
	}
}

func idleTimeoutError() error {
	return &ClientError{Type: ErrTypeTimeout, Message: "no data from backend", Cause: ErrIdleTimeout}
}

// =============================================================================
// IDLE WATCHDOG
// =============================================================================

// idleWatchdog fires once when kick has not been called for the timeout.
// A zero timeout disables it.
type idleWatchdog struct {
	mu      sync.Mutex
	timer   *time.Timer
	timeout time.Duration
}

func newIdleWatchdog(timeout time.Duration, fire func()) *idleWatchdog {
	w := &idleWatchdog{timeout: timeout}
	if timeout > 0 {
		w.timer = time.AfterFunc(timeout, fire)
	}
	return w
}

func (w *idleWatchdog) kick() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Reset(w.timeout)
	}
}

func (w *idleWatchdog) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
