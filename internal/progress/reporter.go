// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package progress

import (
	"context"
	"sync"
	"sync/atomic"
)

// ChannelReporter implements Reporter using a buffered Go channel.
// Ticks never hold up an indicator loop; lifecycle events wait only on a full
// buffer, which a listener such as the metrics collectors drains quickly.
type ChannelReporter struct {
	ch      chan Event
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

// NewChannelReporter creates a new ChannelReporter with the specified buffer size.
func NewChannelReporter(ctx context.Context, bufferSize int) *ChannelReporter {
	reporterCtx, cancel := context.WithCancel(ctx)

	return &ChannelReporter{
		ch:     make(chan Event, bufferSize),
		ctx:    reporterCtx,
		cancel: cancel,
	}
}

// Report implements Reporter.Report.
// A tick is dropped when the buffer is full. Started and finished events wait
// for room until the reporter is closed, so a listener never misses one.
func (cr *ChannelReporter) Report(event Event) {
	cr.mu.RLock()
	defer cr.mu.RUnlock()

	if cr.closed {
		return
	}

	if event.Type == EventTick {
		select {
		case cr.ch <- event:
		default:
			cr.dropped.Add(1)
		}

		return
	}

	select {
	case cr.ch <- event:
	case <-cr.ctx.Done():
	}
}

// Dropped returns how many ticks were discarded because the buffer was full.
func (cr *ChannelReporter) Dropped() uint64 {
	return cr.dropped.Load()
}

// Close implements Reporter.Close.
// It cancels the context, closes the channel and waits for a Listen goroutine to return.
func (cr *ChannelReporter) Close() {
	cr.once.Do(func() {
		cr.cancel()

		cr.mu.Lock()
		cr.closed = true
		close(cr.ch)
		cr.mu.Unlock()

		cr.wg.Wait()
	})
}

// Listen forwards events to listener on a separate goroutine until the reporter is closed.
func (cr *ChannelReporter) Listen(listener Listener) {
	cr.wg.Add(1)

	go func() {
		defer cr.wg.Done()

		for {
			select {
			case event, ok := <-cr.ch:
				if !ok {
					return
				}

				listener.OnEvent(event)
			case <-cr.ctx.Done():
				return
			}
		}
	}()
}

// Events returns a read-only channel of progress events.
func (cr *ChannelReporter) Events() <-chan Event {
	return cr.ch
}

// Context returns the reporter's context.
// The context is cancelled when the reporter is closed.
func (cr *ChannelReporter) Context() context.Context {
	return cr.ctx
}
