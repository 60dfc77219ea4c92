// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package notify

import (
	"context"
	"encoding/json"
	"errors"
)

// Method names understood by the dispatcher. The rgo server sends the first
// four under a namespace prefix, see WithMethodPrefix.
const (
	MethodProgress  = "progress"
	MethodShowInfo  = "window_show_info"
	MethodShowWarn  = "window_show_warn"
	MethodShowError = "window_show_error"

	MethodShowMessage = "window/showMessage"
	MethodLogMessage  = "window/logMessage"

	// DefaultMethodPrefix is the namespace the rgo language server uses.
	DefaultMethodPrefix = "custom/rgo/"

	// unknownMethodLabel replaces unrecognised method names when reporting to an Observer.
	unknownMethodLabel = "unknown"
)

// Progress notification types.
const (
	ProgressStart = "start"
	ProgressStop  = "stop"
)

var (
	// ErrMalformed wraps every decode or validation failure of notification params.
	ErrMalformed = errors.New("malformed notification params")
	// ErrIgnored is returned by handlers for well-formed notifications that require no action.
	ErrIgnored = errors.New("notification ignored")
)

// Severity is the level of a user-visible message.
type Severity int

const (
	// SeverityInfo is an informational message.
	SeverityInfo Severity = iota
	// SeverityWarn is a warning.
	SeverityWarn
	// SeverityError is an error.
	SeverityError
)

// String implements the Stringer interface for Severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarn:
		return "warn"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Sink displays messages to the user. Show is called on the protocol receive
// path, so implementations must hand the message to the UI goroutine and return
// without waiting for it to be rendered.
type Sink interface {
	Show(severity Severity, message string)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(severity Severity, message string)

// Show implements Sink.
func (f SinkFunc) Show(severity Severity, message string) {
	f(severity, message)
}

// Progress is the part of the progress registry the dispatcher drives.
type Progress interface {
	Start(id, message string) bool
	Stop(id string) bool
}

// Outcome classifies what happened to a routed notification.
type Outcome int

const (
	// OutcomeHandled means the notification reached the registry or the sink.
	OutcomeHandled Outcome = iota
	// OutcomeIgnored covers unknown methods and well-formed notifications that need no action.
	OutcomeIgnored
	// OutcomeMalformed means the params did not decode and the notification was dropped.
	OutcomeMalformed
)

// String implements the Stringer interface for Outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeHandled:
		return "handled"
	case OutcomeIgnored:
		return "ignored"
	case OutcomeMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Observer is told about every routed notification, e.g. to count them.
type Observer interface {
	ObserveNotification(method string, outcome Outcome)
}

type nopObserver struct{}

func (nopObserver) ObserveNotification(string, Outcome) {}

// Handler processes the raw params of one notification.
// Returning an error wrapping ErrIgnored or ErrMalformed classifies the outcome;
// errors never leave the dispatcher.
type Handler func(ctx context.Context, params json.RawMessage) error

// Table maps method names to handlers.
type Table map[string]Handler

// ProgressParams are the params of the progress notification.
// Fields are pointers so that a missing field is told apart from an empty one:
// only missing or mistyped fields make the notification malformed.
type ProgressParams struct {
	ID      *string `json:"id"      validate:"required"`
	Message *string `json:"message" validate:"required_if=Type start"`
	Type    *string `json:"type"    validate:"required"`
}

// ShowParams are the params of the window_show_* notifications.
type ShowParams struct {
	Message *string `json:"message" validate:"required"`
}

// LSP message types, as used by window/showMessage and window/logMessage.
const (
	MessageTypeError   = 1
	MessageTypeWarning = 2
	MessageTypeInfo    = 3
	MessageTypeLog     = 4
	MessageTypeDebug   = 5
)

// LSPMessageParams are the params of the standard window/showMessage and window/logMessage notifications.
type LSPMessageParams struct {
	Type    int     `json:"type"    validate:"required,min=1,max=5"`
	Message *string `json:"message" validate:"required"`
}
