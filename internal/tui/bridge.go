// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"sync"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/matt-FFFFFF/lspbridge/internal/notify"
	"github.com/matt-FFFFFF/lspbridge/internal/progress"
)

// DefaultQueueSize is used when a non-positive queue size is given.
const DefaultQueueSize = 256

var (
	_ notify.Sink       = (*Bridge)(nil)
	_ progress.Reporter = (*Bridge)(nil)
)

// Bridge hands messages from the protocol receive path and the indicator loops
// to the UI goroutine. Submission never blocks: messages are queued and
// delivered in order by a single pump goroutine.
//
// Once size messages are pending, progress ticks are shed. Every other message,
// including indicator start and finish, is always queued.
type Bridge struct {
	size    int
	send    func(tea.Msg)
	pending []tea.Msg
	closed  bool
	mutex   sync.Mutex
	wake    chan struct{}
	done    chan struct{}
	dropped atomic.Uint64
}

// NewBridge starts the pump goroutine. send is called for every message in
// submission order, e.g. tea.Program.Send.
func NewBridge(size int, send func(tea.Msg)) *Bridge {
	if size <= 0 {
		size = DefaultQueueSize
	}

	b := &Bridge{
		size: size,
		send: send,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}

	go b.pump()

	return b
}

// Show implements notify.Sink.
func (b *Bridge) Show(severity notify.Severity, message string) {
	b.enqueue(ShowMsg{Severity: severity, Message: message})
}

// Report implements progress.Reporter.
func (b *Bridge) Report(event progress.Event) {
	b.enqueue(ProgressEventMsg{Event: event})
}

// Send queues an arbitrary message, e.g. SessionEndedMsg.
func (b *Bridge) Send(msg tea.Msg) {
	b.enqueue(msg)
}

// Close implements progress.Reporter. Queued messages are still delivered.
func (b *Bridge) Close() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.closed {
		return
	}

	b.closed = true
	b.notify()
}

// Done is closed once the pump has delivered every queued message.
func (b *Bridge) Done() <-chan struct{} {
	return b.done
}

// Dropped returns how many progress ticks were shed because the queue was full.
func (b *Bridge) Dropped() uint64 {
	return b.dropped.Load()
}

func (b *Bridge) enqueue(msg tea.Msg) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.closed {
		return
	}

	if len(b.pending) >= b.size && isTick(msg) {
		b.dropped.Add(1)
		return
	}

	b.pending = append(b.pending, msg)
	b.notify()
}

// notify must be called with the mutex held.
func (b *Bridge) notify() {
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *Bridge) pump() {
	defer close(b.done)

	for {
		b.mutex.Lock()
		batch := b.pending
		b.pending = nil
		closed := b.closed
		b.mutex.Unlock()

		for _, msg := range batch {
			b.send(msg)
		}

		if len(batch) > 0 {
			continue
		}

		if closed {
			return
		}

		<-b.wake
	}
}

func isTick(msg tea.Msg) bool {
	m, ok := msg.(ProgressEventMsg)
	return ok && m.Event.Type == progress.EventTick
}
