// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/docchat-tui/internal/backend"
	"github.com/jeranaias/docchat-tui/internal/config"
	"github.com/jeranaias/docchat-tui/internal/turn"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	// ExitUsageError means invalid arguments.
	ExitUsageError = 2
	// ExitConfigError means the config file could not be loaded or is invalid.
	ExitConfigError = 3
	// ExitNetworkError means the backend is unreachable or the stream broke.
	ExitNetworkError = 5
	// ExitNotFoundError means a chat or other resource does not exist.
	ExitNotFoundError = 7
	// ExitTimeoutError means an operation hit its deadline.
	ExitTimeoutError = 8
	// ExitStopped means the turn was stopped before it completed.
	ExitStopped = 130
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ValidationError is a rejected user input.
type ValidationError struct {
	Field   string
	Value   string
	Reason  string
	Example string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	if e.Example != "" {
		msg += fmt.Sprintf("\nExample: %s", e.Example)
	}
	return msg
}

// NewValidationError creates a validation error.
func NewValidationError(field, value, reason string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// ErrMissingArgument reports a required argument that was not given.
func ErrMissingArgument(argName, usage string) error {
	return &ValidationError{Field: argName, Reason: "required argument missing", Example: usage}
}

// ErrStopped is returned by one-shot commands whose turn was stopped.
var ErrStopped = errors.New("stopped")

// =============================================================================
// DISPLAY
// =============================================================================

// DisplayError writes err to w, as a JSON envelope in JSON mode.
func DisplayError(w io.Writer, command string, err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		_ = NewJSONErrorResponse(command, err).Write(w)
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[ERROR]"), err.Error())
}

// GetExitCode maps an error to a process exit code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return ExitUsageError
	}
	var configErrs config.ValidateErrors
	if errors.As(err, &configErrs) {
		return ExitConfigError
	}
	if errors.Is(err, ErrStopped) || errors.Is(err, context.Canceled) {
		return ExitStopped
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ExitTimeoutError
	}
	if backend.IsNotFound(err) {
		return ExitNotFoundError
	}
	if backend.IsUnavailable(err) {
		return ExitNetworkError
	}

	var turnErr *turn.Error
	if errors.As(err, &turnErr) && turnErr.Kind == turn.KindTransport {
		return ExitNetworkError
	}

	return ExitGeneralError
}
