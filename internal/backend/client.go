// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the backend client.
type ClientError struct {
	Type    ErrorType
	Message string

	// Status is the HTTP status code, or 0 when no response arrived.
	Status int

	// Detail is the server's human-readable reason ({"detail": ...}), if any.
	Detail string

	Cause error
}

func (e *ClientError) Error() string {
	msg := e.Message
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ErrorDetail returns the server-supplied detail.
func (e *ClientError) ErrorDetail() string {
	return e.Detail
}

// Is matches sentinel errors by type.
func (e *ClientError) Is(target error) bool {
	t, ok := target.(*ClientError)
	if !ok {
		return false
	}
	return t.Type == e.Type && t.Status == 0 && t.Detail == "" && t.Cause == nil
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeUnavailable
	ErrTypeTimeout
	ErrTypeNotFound
	ErrTypeRejected
	ErrTypeConnection
	ErrTypeInvalidResponse
)

// String returns the error type name.
func (t ErrorType) String() string {
	switch t {
	case ErrTypeUnavailable:
		return "unavailable"
	case ErrTypeTimeout:
		return "timeout"
	case ErrTypeNotFound:
		return "not_found"
	case ErrTypeRejected:
		return "rejected"
	case ErrTypeConnection:
		return "connection"
	case ErrTypeInvalidResponse:
		return "invalid_response"
	default:
		return "unknown"
	}
}

// Sentinel errors for easy checking with errors.Is.
var (
	ErrUnavailable = &ClientError{Type: ErrTypeUnavailable, Message: "backend is not reachable"}
	ErrTimeout     = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
	ErrNotFound    = &ClientError{Type: ErrTypeNotFound, Message: "not found"}

	// ErrIdleTimeout is the cause recorded when a stream goes quiet for too long.
	ErrIdleTimeout = errors.New("stream idle timeout")
)

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnavailable reports whether the backend could not be reached at all.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// DefaultBaseURL is where the backend serves its API.
const DefaultBaseURL = "http://localhost:8000/api"

// ClientConfig holds configuration options for the backend client.
type ClientConfig struct {
	// BaseURL is the API root including the /api prefix (default: http://localhost:8000/api)
	BaseURL string

	// Timeout for ordinary JSON requests (default: 30s)
	Timeout time.Duration

	// UploadTimeout bounds one upload, which includes server-side ingestion (default: 5m)
	UploadTimeout time.Duration

	// StreamIdleTimeout aborts a stream that delivers nothing for this long.
	// Zero disables the watchdog (default: 120s)
	StreamIdleTimeout time.Duration

	// Logger receives request-level debug records (default: disabled)
	Logger *zerolog.Logger

	// HTTPClient overrides the transport, mostly for tests.
	HTTPClient *http.Client
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:           DefaultBaseURL,
		Timeout:           30 * time.Second,
		UploadTimeout:     5 * time.Minute,
		StreamIdleTimeout: 120 * time.Second,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client handles communication with the chat backend.
//
// The Client is safe for concurrent use.
type Client struct {
	config     *ClientConfig
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a client. A nil config means DefaultConfig.
func NewClient(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	// Fill in defaults for any zero values
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.UploadTimeout == 0 {
		config.UploadTimeout = 5 * time.Minute
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		// No client-level timeout: streams are long-lived and bounded by
		// context deadlines and the idle watchdog instead.
		httpClient = &http.Client{}
	}

	log := zerolog.Nop()
	if config.Logger != nil {
		log = config.Logger.With().Str("component", "backend").Logger()
	}

	return &Client{
		config:     config,
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: httpClient,
		log:        log,
	}
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// =============================================================================
// REQUEST HELPERS
// =============================================================================

// endpoint joins path segments onto the base URL and encodes query.
func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// doJSON sends a JSON request and decodes a JSON response into out.
// A nil body sends no payload; a nil out discards the response.
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &ClientError{Type: ErrTypeUnknown, Message: "failed to marshal request", Cause: err}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), reader)
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(ctx, err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("request completed")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	return nil
}

// transportError classifies a failure to get any response.
func transportError(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) && ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Cause: err}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return &ClientError{Type: ErrTypeUnavailable, Message: "backend is not reachable", Cause: err}
	}
	return &ClientError{Type: ErrTypeConnection, Message: "request failed", Cause: err}
}

// errorBody is the backend's error envelope.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

// statusError builds an error from a non-2xx response.
func statusError(resp *http.Response) *ClientError {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	errType := ErrTypeRejected
	switch {
	case resp.StatusCode == http.StatusNotFound:
		errType = ErrTypeNotFound
	case resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusBadGateway:
		errType = ErrTypeUnavailable
	case resp.StatusCode == http.StatusGatewayTimeout:
		errType = ErrTypeTimeout
	}

	return &ClientError{
		Type:    errType,
		Message: fmt.Sprintf("backend returned %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		Status:  resp.StatusCode,
		Detail:  parseDetail(data),
	}
}

// parseDetail extracts "detail" from an error body. FastAPI sends a string
// for HTTPException and a list of objects for validation errors.
func parseDetail(data []byte) string {
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil || len(body.Detail) == 0 {
		return strings.TrimSpace(string(data))
	}

	var s string
	if err := json.Unmarshal(body.Detail, &s); err == nil {
		return s
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(body.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return string(body.Detail)
}
