// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package progress

import (
	"time"
)

// Event is emitted by an indicator loop over the life of one progress entry.
// UIs render indicators from these events; they never read the registry map directly.
type Event struct {
	ID        string        // Entry ID supplied by the server
	Type      EventType     // What happened
	Message   string        // Human-readable description, fixed at Start
	Timestamp time.Time     // When the event occurred
	Reason    FinishReason  // Set on EventFinished only
	Elapsed   time.Duration // Time since the entry started
	Started   time.Time     // Start time of the entry; with ID it identifies one run
}

// EventType represents the type of progress event.
type EventType int

const (
	// EventStarted indicates an indicator should become visible.
	EventStarted EventType = iota
	// EventTick is emitted on every poll while the entry is still active.
	EventTick
	// EventFinished indicates the indicator loop has exited and the indicator should go away.
	EventFinished
)

// String implements the Stringer interface for EventType.
func (et EventType) String() string {
	switch et {
	case EventStarted:
		return "started"
	case EventTick:
		return "tick"
	case EventFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// FinishReason records why an entry left the registry.
type FinishReason int

const (
	// ReasonStopped means the server sent a stop for the entry.
	ReasonStopped FinishReason = iota
	// ReasonCancelled means the UI dismissed the indicator.
	ReasonCancelled
	// ReasonInterrupted means the registry context ended or the registry was cleared.
	ReasonInterrupted
)

// String implements the Stringer interface for FinishReason.
func (fr FinishReason) String() string {
	switch fr {
	case ReasonStopped:
		return "stopped"
	case ReasonCancelled:
		return "cancelled"
	case ReasonInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// Reporter is the interface for sending progress events.
type Reporter interface {
	// Report sends a progress event. Implementations must not block:
	// it is called from indicator loops while they hold no locks,
	// but a slow receiver would delay stop detection.
	Report(event Event)
	// Close signals that no more events will be sent and cleans up resources.
	Close()
}

// Listener receives progress events from a ChannelReporter.
type Listener interface {
	// OnEvent is called when a progress event is received.
	OnEvent(event Event)
}

// NullReporter is a no-op implementation of Reporter.
type NullReporter struct{}

// Report implements Reporter.Report by doing nothing.
func (nr *NullReporter) Report(_ Event) {}

// Close implements Reporter.Close by doing nothing.
func (nr *NullReporter) Close() {}

// NewNullReporter creates a new NullReporter.
func NewNullReporter() Reporter {
	return &NullReporter{}
}

// MultiReporter fans every event out to several reporters, in order.
type MultiReporter []Reporter

// Report implements Reporter.Report.
func (mr MultiReporter) Report(event Event) {
	for _, r := range mr {
		if r != nil {
			r.Report(event)
		}
	}
}

// Close implements Reporter.Close.
func (mr MultiReporter) Close() {
	for _, r := range mr {
		if r != nil {
			r.Close()
		}
	}
}
