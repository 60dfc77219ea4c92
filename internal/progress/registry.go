// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package progress

import (
	"context"
	"sort"
	"sync"
	"time"
)

// DefaultPollInterval is how often an indicator loop re-checks its entry.
const DefaultPollInterval = 100 * time.Millisecond

// State is the lifecycle state of an entry.
type State int

const (
	// StateRunning entries are present in the registry.
	StateRunning State = iota
	// StateStopped only appears on snapshots taken after removal.
	StateStopped
)

// String implements the Stringer interface for State.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Entry is a snapshot of one in-flight background operation.
type Entry struct {
	ID      string    `json:"id"`
	Message string    `json:"message"`
	State   State     `json:"-"`
	Started time.Time `json:"started"`
}

type entry struct {
	Entry

	done   chan struct{} // closed exactly once, when the entry leaves the map
	reason FinishReason  // written under Registry.mu before done is closed
}

// Registry owns the set of active progress entries of one session.
// All methods are safe for concurrent use by the protocol receive path,
// indicator loops and the UI.
type Registry struct {
	ctx      context.Context
	interval time.Duration
	reporter Reporter

	mu      sync.RWMutex
	entries map[string]*entry

	wg sync.WaitGroup
}

// Option configures a Registry.
type Option func(*Registry)

// WithPollInterval sets the indicator loop poll interval. Non-positive values are ignored.
func WithPollInterval(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithReporter sets where indicator loops send their events.
func WithReporter(rep Reporter) Option {
	return func(r *Registry) {
		if rep != nil {
			r.reporter = rep
		}
	}
}

// NewRegistry creates an empty registry.
// When ctx is done every indicator loop exits and removes its entry.
func NewRegistry(ctx context.Context, opts ...Option) *Registry {
	r := &Registry{
		ctx:      ctx,
		interval: DefaultPollInterval,
		reporter: NewNullReporter(),
		entries:  make(map[string]*entry),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Start inserts a running entry for id and starts its indicator loop.
// A second Start for an id that is already present is ignored, as is any Start
// after the registry context has ended. It reports whether an entry was created.
func (r *Registry) Start(id, message string) bool {
	r.mu.Lock()

	if _, ok := r.entries[id]; ok || r.ctx.Err() != nil {
		r.mu.Unlock()
		return false
	}

	e := &entry{
		Entry: Entry{
			ID:      id,
			Message: message,
			State:   StateRunning,
			Started: time.Now(),
		},
		done: make(chan struct{}),
	}
	r.entries[id] = e
	r.wg.Add(1)
	r.mu.Unlock()

	go r.runIndicator(e)

	return true
}

// Stop removes the entry for id. Unknown ids are ignored.
// It reports whether an entry was removed.
func (r *Registry) Stop(id string) bool {
	return r.remove(id, ReasonStopped)
}

// Cancel removes the entry for id on behalf of the UI, e.g. when the user
// dismisses the indicator. It has the same effect on the registry as Stop.
func (r *Registry) Cancel(id string) bool {
	return r.remove(id, ReasonCancelled)
}

// IsActive reports whether an entry for id is present.
func (r *Registry) IsActive(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.entries[id]

	return ok
}

// Len returns the number of active entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries)
}

// Active returns a snapshot of the active entries, oldest first.
func (r *Registry) Active() []Entry {
	r.mu.RLock()
	out := make([]Entry, 0, len(r.entries))

	for _, e := range r.entries {
		out = append(out, e.Entry)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Started.Equal(out[j].Started) {
			return out[i].ID < out[j].ID
		}

		return out[i].Started.Before(out[j].Started)
	})

	return out
}

// Clear removes every entry. Their indicator loops finish with ReasonInterrupted.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, e := range r.entries {
		delete(r.entries, id)
		e.reason = ReasonInterrupted
		close(e.done)
	}
}

// Wait blocks until every indicator loop started so far has exited.
func (r *Registry) Wait() {
	r.wg.Wait()
}

func (r *Registry) remove(id string, reason FinishReason) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return false
	}

	delete(r.entries, id)
	e.reason = reason
	close(e.done)

	return true
}

// removeEntry removes e only if it is still the entry registered under its id.
func (r *Registry) removeEntry(e *entry, reason FinishReason) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.entries[e.ID]; ok && cur == e {
		delete(r.entries, e.ID)
		e.reason = reason
		close(e.done)
	}
}

// isCurrent reports whether e is still the entry registered under its id.
// A stop followed by a new start for the same id yields a different entry.
func (r *Registry) isCurrent(e *entry) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cur, ok := r.entries[e.ID]

	return ok && cur == e
}

func (r *Registry) reasonOf(e *entry) FinishReason {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return e.reason
}
